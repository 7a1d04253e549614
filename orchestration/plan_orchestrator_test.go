package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-ai/itinerary/change"
	"github.com/wayfarer-ai/itinerary/itinerary"
	"github.com/wayfarer-ai/itinerary/store"
)

func seedOrchestratorItinerary(t *testing.T, gw store.Gateway, id string) {
	t.Helper()
	doc := &itinerary.Itinerary{
		ItineraryID: id,
		Version:     0,
		Origin:      "SFO",
		Destination: "NRT",
		Days: []*itinerary.Day{
			{DayNumber: 1, Nodes: []*itinerary.Node{{ID: "day1_node1", Title: "Arrival", Type: itinerary.NodeFreetime}}},
		},
	}
	require.NoError(t, gw.Put(context.Background(), id, doc, 0))
}

func newTestOrchestrator(t *testing.T, agents ...Agent) (*Orchestrator, store.Gateway) {
	t.Helper()
	gw := store.NewInMemoryGateway(8)
	r := NewRegistry()
	for _, a := range agents {
		require.NoError(t, r.Register(a))
	}
	eng := change.New(gw)
	o := NewOrchestrator(OrchestratorConfig{Registry: r, Change: eng, Store: gw})
	return o, gw
}

func TestOrchestrator_Execute_CommitsMergedChangeSet(t *testing.T) {
	title := "Museum"
	nodeType := itinerary.NodeAttraction
	agent := &fakeAgent{
		BaseAgent: NewBaseAgent("inserter", []TaskTag{TaskInitialGeneration}, 0, nil, false, true),
		execute: func(ctx context.Context, rc *RunContext) (*Patch, error) {
			return &Patch{ChangeSet: &change.ChangeSet{Ops: []change.Op{{
				Op:   change.OpInsert,
				Day:  intPtr(1),
				Node: &change.NodeInput{Title: &title, Type: &nodeType},
			}}}}, nil
		},
	}

	o, gw := newTestOrchestrator(t, agent)
	seedOrchestratorItinerary(t, gw, "trip-1")

	result, err := o.Execute(context.Background(), "trip-1", TaskInitialGeneration, nil)
	require.NoError(t, err)
	assert.False(t, result.Aborted)
	assert.Equal(t, []string{"day1_node2"}, result.ChangeDiff.Added)

	doc, err := gw.Get(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Len(t, doc.Days[0].Nodes, 2)
}

func TestOrchestrator_Execute_NoAgentsForTaskErrors(t *testing.T) {
	o, gw := newTestOrchestrator(t)
	seedOrchestratorItinerary(t, gw, "trip-1")

	_, err := o.Execute(context.Background(), "trip-1", TaskInitialGeneration, nil)
	assert.Error(t, err)
}

func TestOrchestrator_Execute_RequiredAgentFailureAbortsWithoutPersisting(t *testing.T) {
	agent := &fakeAgent{
		BaseAgent: NewBaseAgent("required", []TaskTag{TaskInitialGeneration}, 0, nil, true, true),
		execute: func(ctx context.Context, rc *RunContext) (*Patch, error) {
			return nil, assert.AnError
		},
	}

	o, gw := newTestOrchestrator(t, agent)
	seedOrchestratorItinerary(t, gw, "trip-1")

	result, err := o.Execute(context.Background(), "trip-1", TaskInitialGeneration, nil)
	require.NoError(t, err)
	assert.True(t, result.Aborted)

	doc, err := gw.Get(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Version)
}

func TestOrchestrator_Execute_SerializesConcurrentCallsPerItinerary(t *testing.T) {
	title := "Park"
	nodeType := itinerary.NodeAttraction
	agent := &fakeAgent{
		BaseAgent: NewBaseAgent("inserter", []TaskTag{TaskInitialGeneration}, 0, nil, false, true),
		execute: func(ctx context.Context, rc *RunContext) (*Patch, error) {
			return &Patch{ChangeSet: &change.ChangeSet{Ops: []change.Op{{
				Op:   change.OpInsert,
				Day:  intPtr(1),
				Node: &change.NodeInput{Title: &title, Type: &nodeType},
			}}}}, nil
		},
	}

	o, gw := newTestOrchestrator(t, agent)
	seedOrchestratorItinerary(t, gw, "trip-1")

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := o.Execute(context.Background(), "trip-1", TaskInitialGeneration, nil)
			done <- err
		}()
	}
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	doc, err := gw.Get(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Len(t, doc.Days[0].Nodes, 3)
}
