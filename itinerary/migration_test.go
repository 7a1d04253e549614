package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_LegacyIDs(t *testing.T) {
	it := &Itinerary{
		ItineraryID: "trip-1",
		Version:     3,
		Days: []*Day{
			{
				DayNumber: 1,
				Nodes: []*Node{
					{ID: "node_att_day1_2274_7de9e730", Title: "Museum"},
					{ID: "node_meal_day1_1234_abc123", Title: "Lunch"},
				},
			},
		},
	}

	out, changed := Migrate(it, 1000)
	require.True(t, changed)
	require.Equal(t, "day1_node1", out.Days[0].Nodes[0].ID)
	require.Equal(t, "day1_node2", out.Days[0].Nodes[1].ID)
	assert.Equal(t, "Museum", out.Days[0].Nodes[0].Title, "visit order preserved")
	assert.Equal(t, 4, out.Version, "migration bumps version")
	assert.Equal(t, int64(1000), out.UpdatedAt)

	// Original document is untouched.
	assert.Equal(t, "node_att_day1_2274_7de9e730", it.Days[0].Nodes[0].ID)
}

func TestMigrate_Idempotent(t *testing.T) {
	it := &Itinerary{
		Days: []*Day{
			{DayNumber: 1, Nodes: []*Node{{ID: "legacy-a"}, {ID: "legacy-b"}}},
		},
	}

	once, changed1 := Migrate(it, 1000)
	require.True(t, changed1)

	twice, changed2 := Migrate(once, 2000)
	assert.False(t, changed2, "second migration must be a no-op")
	assert.Same(t, once, twice, "idempotent migration returns the same value unchanged")
}

func TestMigrate_AlreadyCanonicalIsNoOp(t *testing.T) {
	it := &Itinerary{
		Version: 5,
		Days: []*Day{
			{DayNumber: 1, Nodes: []*Node{{ID: "day1_node1"}, {ID: "day1_node2"}}},
		},
	}

	out, changed := Migrate(it, 9999)
	assert.False(t, changed)
	assert.Same(t, it, out)
	assert.Equal(t, 5, out.Version)
}
