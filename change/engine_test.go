package change

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/itinerary"
	"github.com/wayfarer-ai/itinerary/store"
)

func seedItinerary(t *testing.T, gw store.Gateway, id string, days ...*itinerary.Day) *itinerary.Itinerary {
	t.Helper()
	doc := &itinerary.Itinerary{ItineraryID: id, Version: 1, Days: days}
	require.NoError(t, gw.Put(context.Background(), id, doc, 0))
	return doc
}

// day builds a Day and seeds NodeSeqHighWater from the nodes' own ids, the
// way a real document-construction path would by calling itinerary.Allocate
// for each node instead of hand-authoring ids.
func day(n int, nodes ...*itinerary.Node) *itinerary.Day {
	d := &itinerary.Day{DayNumber: n, Nodes: nodes}
	for _, nd := range nodes {
		if seq, err := itinerary.ExtractSeq(nd.ID); err == nil && seq > d.NodeSeqHighWater {
			d.NodeSeqHighWater = seq
		}
	}
	return d
}

func node(id, title string) *itinerary.Node {
	return &itinerary.Node{ID: id, Title: title, Type: itinerary.NodeAttraction, Status: itinerary.NodeStatusPlanned}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// S1: insert into an empty day allocates day{N}_node1.
func TestApply_InsertIntoEmptyDayAllocatesNode1(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(1))
	e := New(gw)

	d := 1
	cs := &ChangeSet{
		Scope: ScopeDay,
		Day:   &d,
		Ops: []Op{
			{Op: OpInsert, Day: &d, Node: &NodeInput{Title: strPtr("Breakfast")}},
		},
	}

	res, err := e.Apply(context.Background(), "trip-1", cs)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, res.State)
	require.Len(t, res.Ops, 1)
	assert.True(t, res.Ops[0].Succeeded)
	assert.Equal(t, "day1_node1", res.Ops[0].ResultID)
	assert.Equal(t, []string{"day1_node1"}, res.Diff.Added)
}

// S2: referencing a nonexistent id fails with a day-scoped available-ids list.
func TestApply_ReplaceNonexistentID_ReportsScopedAvailableIDs(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(4,
		node("day4_node1", "A"),
		node("day4_node2", "B"),
		node("day4_node3", "C"),
	))
	e := New(gw)

	cs := &ChangeSet{
		Scope: ScopeDay,
		Ops: []Op{
			{Op: OpReplace, ID: "day4_node9", Node: &NodeInput{Title: strPtr("X")}},
		},
	}

	res, err := e.Apply(context.Background(), "trip-1", cs)
	require.NoError(t, err)
	assert.Equal(t, StateNoChange, res.State)
	require.Len(t, res.Ops, 1)
	outcome := res.Ops[0]
	assert.False(t, outcome.Succeeded)
	assert.Equal(t, "NodeNotFound", outcome.Kind)
	assert.Equal(t, "Node with ID 'day4_node9' not found. Available: day4_node1, day4_node2, day4_node3.", outcome.Message)
}

// S4: a changeset with both a valid and an invalid op commits the valid one
// and reports the invalid one's failure, without aborting the whole commit.
func TestApply_PartialSuccess_CommitsSurvivingOps(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(2, node("day2_node1", "Museum")))
	e := New(gw)

	d := 2
	cs := &ChangeSet{
		Scope: ScopeDay,
		Day:   &d,
		Ops: []Op{
			{Op: OpUpdate, ID: "day2_node1", Fields: map[string]interface{}{"addLabels": []interface{}{"Booked"}}},
			{Op: OpDelete, ID: "day2_node404"},
		},
	}

	res, err := e.Apply(context.Background(), "trip-1", cs)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, res.State)
	require.Len(t, res.Ops, 2)
	assert.True(t, res.Ops[0].Succeeded)
	assert.False(t, res.Ops[1].Succeeded)
	assert.Equal(t, "NodeNotFound", res.Ops[1].Kind)
	assert.Equal(t, []string{"day2_node1"}, res.Diff.Updated)

	got, err := gw.Get(context.Background(), "trip-1")
	require.NoError(t, err)
	n, _ := got.FindNode("day2_node1")
	require.NotNil(t, n)
	assert.Contains(t, n.Labels, "Booked")
	assert.Equal(t, 2, got.Version)
}

// conflictOnceGateway wraps a Gateway and forces the first Put to report a
// version conflict, simulating a concurrent writer that committed between
// this caller's load and its own commit attempt.
type conflictOnceGateway struct {
	store.Gateway
	triggered bool
}

func (g *conflictOnceGateway) Put(ctx context.Context, itineraryID string, doc *itinerary.Itinerary, expectedVersion int) error {
	if !g.triggered {
		g.triggered = true
		return core.NewFrameworkError("store.Put", "VersionConflict", core.ErrVersionConflict)
	}
	return g.Gateway.Put(ctx, itineraryID, doc, expectedVersion)
}

// S5: a commit that loses a concurrent race surfaces VersionConflict and
// leaves the document untouched; retrying against the now-current version
// succeeds.
func TestApply_ConcurrentVersionConflict_ThenRetrySucceeds(t *testing.T) {
	inner := store.NewInMemoryGateway(5)
	seedItinerary(t, inner, "trip-1", day(1, node("day1_node1", "Museum")))
	gw := &conflictOnceGateway{Gateway: inner}
	e := New(gw)

	cs := &ChangeSet{
		Scope: ScopeDay,
		Ops:   []Op{{Op: OpDelete, ID: "day1_node1"}},
	}

	_, err := e.Apply(context.Background(), "trip-1", cs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrVersionConflict))

	res, err := e.Apply(context.Background(), "trip-1", cs)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, res.State)
}

// S6: a booking-lock update followed by a locked edit attempt is blocked.
func TestApply_LockedNodeBlocksSubsequentRespectLocksEdit(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(3, node("day3_node1", "Flight")))
	e := New(gw)

	locked := true
	lockCS := &ChangeSet{
		Scope:       ScopeDay,
		Preferences: Preferences{RespectLocks: false},
		Ops: []Op{
			{Op: OpUpdate, ID: "day3_node1", Fields: map[string]interface{}{"locked": true, "bookingRef": "PNR123"}},
		},
	}
	res, err := e.Apply(context.Background(), "trip-1", lockCS)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, res.State)

	editCS := &ChangeSet{
		Scope:       ScopeDay,
		Preferences: Preferences{RespectLocks: true},
		Ops: []Op{
			{Op: OpReplace, ID: "day3_node1", Node: &NodeInput{Title: strPtr("Different flight")}},
		},
	}
	res, err = e.Apply(context.Background(), "trip-1", editCS)
	require.NoError(t, err)
	assert.Equal(t, StateNoChange, res.State)
	require.Len(t, res.Ops, 1)
	assert.False(t, res.Ops[0].Succeeded)
	assert.Equal(t, "Locked", res.Ops[0].Kind)
	_ = locked
}

// Boundary: move never reclaims the source day's freed sequence number, and
// the destination gets a freshly allocated id.
func TestApply_MoveNeverReclaimsSourceID(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(1, node("day1_node1", "Lunch")), day(2))
	e := New(gw)

	cs := &ChangeSet{
		Scope: ScopeTrip,
		Ops: []Op{
			{Op: OpMove, ID: "day1_node1", ToDay: 2},
		},
	}
	res, err := e.Apply(context.Background(), "trip-1", cs)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, res.State)
	assert.Equal(t, []string{"day1_node1"}, res.Diff.Removed)
	assert.Equal(t, []string{"day2_node1"}, res.Diff.Added)

	// Inserting into day 1 again must not reuse day1_node1.
	d := 1
	insertCS := &ChangeSet{
		Scope: ScopeDay,
		Day:   &d,
		Ops:   []Op{{Op: OpInsert, Day: &d, Node: &NodeInput{Title: strPtr("New stop")}}},
	}
	res, err = e.Apply(context.Background(), "trip-1", insertCS)
	require.NoError(t, err)
	assert.Equal(t, []string{"day1_node2"}, res.Diff.Added)
}

// Boundary: delete then insert in the same day never reuses the freed M.
func TestApply_DeleteThenInsertNeverReusesID(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(1, node("day1_node1", "Old stop")))
	e := New(gw)

	deleteCS := &ChangeSet{Scope: ScopeDay, Ops: []Op{{Op: OpDelete, ID: "day1_node1"}}}
	_, err := e.Apply(context.Background(), "trip-1", deleteCS)
	require.NoError(t, err)

	d := 1
	insertCS := &ChangeSet{
		Scope: ScopeDay,
		Day:   &d,
		Ops:   []Op{{Op: OpInsert, Day: &d, Node: &NodeInput{Title: strPtr("New stop")}}},
	}
	res, err := e.Apply(context.Background(), "trip-1", insertCS)
	require.NoError(t, err)
	assert.Equal(t, []string{"day1_node2"}, res.Diff.Added)
}

// Invariant: an empty diff (e.g. all ops fail) never persists a new version.
func TestApply_AllOpsFail_NoChangeLeavesVersionUnchanged(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(1, node("day1_node1", "Lunch")))
	e := New(gw)

	cs := &ChangeSet{Scope: ScopeDay, Ops: []Op{{Op: OpDelete, ID: "day1_node999"}}}
	res, err := e.Apply(context.Background(), "trip-1", cs)
	require.NoError(t, err)
	assert.Equal(t, StateNoChange, res.State)

	got, err := gw.Get(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

// Idempotency: replaying a commit with the same key short-circuits to the
// recorded result instead of mutating again.
func TestApply_IdempotencyKeyShortCircuitsReplay(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(1))
	e := New(gw)

	d := 1
	cs := &ChangeSet{
		Scope:          ScopeDay,
		Day:            &d,
		IdempotencyKey: "req-42",
		Ops:            []Op{{Op: OpInsert, Day: &d, Node: &NodeInput{Title: strPtr("Breakfast")}}},
	}

	first, err := e.Apply(context.Background(), "trip-1", cs)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, first.State)

	second, err := e.Apply(context.Background(), "trip-1", cs)
	require.NoError(t, err)
	assert.Equal(t, first.Diff, second.Diff)

	got, err := gw.Get(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version, "replay must not mutate the document again")
}

// Propose computes a preview diff without persisting.
func TestPropose_DoesNotPersist(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(1))
	e := New(gw)

	d := 1
	cs := &ChangeSet{
		Scope: ScopeDay,
		Day:   &d,
		Ops:   []Op{{Op: OpInsert, Day: &d, Node: &NodeInput{Title: strPtr("Breakfast")}}},
	}

	res, err := e.Propose(context.Background(), "trip-1", cs)
	require.NoError(t, err)
	assert.Equal(t, StateProposed, res.State)
	assert.Equal(t, 2, res.Diff.PreviewVersion)

	got, err := gw.Get(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version, "propose must not persist")
}

// Undo restores a prior snapshot as a new version, not an algebraic inverse.
func TestUndo_RestoresSnapshotAsNewVersion(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(1, node("day1_node1", "Museum")))
	e := New(gw)

	deleteCS := &ChangeSet{Scope: ScopeDay, Ops: []Op{{Op: OpDelete, ID: "day1_node1"}}}
	_, err := e.Apply(context.Background(), "trip-1", deleteCS)
	require.NoError(t, err)

	res, err := e.Undo(context.Background(), "trip-1", 1)
	require.NoError(t, err)
	assert.Equal(t, StateCommitted, res.State)
	assert.Equal(t, 3, res.Itinerary.Version)
	n, _ := res.Itinerary.FindNode("day1_node1")
	assert.NotNil(t, n)
}

func TestApply_MoveToNonexistentDayFails(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(1, node("day1_node1", "Museum")))
	e := New(gw)

	cs := &ChangeSet{Scope: ScopeTrip, Ops: []Op{{Op: OpMove, ID: "day1_node1", ToDay: 9}}}
	res, err := e.Apply(context.Background(), "trip-1", cs)
	require.NoError(t, err)
	assert.Equal(t, StateNoChange, res.State)
	assert.Equal(t, "DayOutOfRange", res.Ops[0].Kind)
}

func TestApply_InsertAfterSpecificNodePositionsCorrectly(t *testing.T) {
	gw := store.NewInMemoryGateway(5)
	seedItinerary(t, gw, "trip-1", day(1, node("day1_node1", "A"), node("day1_node2", "C")))
	e := New(gw)

	d := 1
	after := "day1_node1"
	cs := &ChangeSet{
		Scope: ScopeDay,
		Day:   &d,
		Ops: []Op{
			{Op: OpInsert, Day: &d, After: &after, Node: &NodeInput{Title: strPtr("B")}},
		},
	}
	res, err := e.Apply(context.Background(), "trip-1", cs)
	require.NoError(t, err)
	require.Equal(t, StateCommitted, res.State)

	got, err := gw.Get(context.Background(), "trip-1")
	require.NoError(t, err)
	titles := []string{}
	for _, n := range got.Days[0].Nodes {
		titles = append(titles, n.Title)
	}
	assert.Equal(t, []string{"A", "B", "C"}, titles)
}
