package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/itinerary"
)

func TestInMemoryGateway_PutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	g := NewInMemoryGateway(5)

	doc := &itinerary.Itinerary{ItineraryID: "trip-1", Version: 1}
	require.NoError(t, g.Put(ctx, "trip-1", doc, 0))

	got, err := g.Get(ctx, "trip-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestInMemoryGateway_VersionConflict(t *testing.T) {
	ctx := context.Background()
	g := NewInMemoryGateway(5)

	doc := &itinerary.Itinerary{ItineraryID: "trip-1", Version: 1}
	require.NoError(t, g.Put(ctx, "trip-1", doc, 0))

	stale := &itinerary.Itinerary{ItineraryID: "trip-1", Version: 2}
	err := g.Put(ctx, "trip-1", stale, 0) // expects 0, but current is 1
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrVersionConflict))

	// store state is unchanged after the rejected write
	got, err := g.Get(ctx, "trip-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestInMemoryGateway_GetAtVersionSupportsUndo(t *testing.T) {
	ctx := context.Background()
	g := NewInMemoryGateway(5)

	v1 := &itinerary.Itinerary{ItineraryID: "trip-1", Version: 1, Days: []*itinerary.Day{{DayNumber: 1}}}
	require.NoError(t, g.Put(ctx, "trip-1", v1, 0))

	v2 := &itinerary.Itinerary{ItineraryID: "trip-1", Version: 2, Days: []*itinerary.Day{{DayNumber: 1}, {DayNumber: 2}}}
	require.NoError(t, g.Put(ctx, "trip-1", v2, 1))

	old, err := g.GetAtVersion(ctx, "trip-1", 1)
	require.NoError(t, err)
	assert.Len(t, old.Days, 1)

	current, err := g.GetAtVersion(ctx, "trip-1", 2)
	require.NoError(t, err)
	assert.Len(t, current.Days, 2)

	_, err = g.GetAtVersion(ctx, "trip-1", 99)
	assert.Error(t, err)
}

func TestInMemoryGateway_RevisionHistoryIsBounded(t *testing.T) {
	ctx := context.Background()
	g := NewInMemoryGateway(2)

	for v := 1; v <= 5; v++ {
		doc := &itinerary.Itinerary{ItineraryID: "trip-1", Version: v}
		expected := v - 1
		require.NoError(t, g.Put(ctx, "trip-1", doc, expected))
	}

	// Only the last 2 superseded versions (3 and 4) plus the current (5)
	// should be reachable; version 1 fell out of the bounded history.
	_, err := g.GetAtVersion(ctx, "trip-1", 1)
	assert.Error(t, err, "oldest revision should have been trimmed")

	got, err := g.GetAtVersion(ctx, "trip-1", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Version)
}

func TestInMemoryGateway_GetMissingDocument(t *testing.T) {
	g := NewInMemoryGateway(5)
	_, err := g.Get(context.Background(), "does-not-exist")
	assert.True(t, errors.Is(err, core.ErrLoadFailed))
}
