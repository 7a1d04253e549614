package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCanonical(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"day1_node1", true},
		{"day12_node345", true},
		{"day0_node1", true},
		{"node_att_day1_2274_7de9e730", false},
		{"day1_node", false},
		{"day_node1", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCanonical(tt.id), tt.id)
	}
}

func TestExtractDayAndSeq(t *testing.T) {
	day, err := ExtractDay("day4_node9")
	require.NoError(t, err)
	assert.Equal(t, 4, day)

	seq, err := ExtractSeq("day4_node9")
	require.NoError(t, err)
	assert.Equal(t, 9, seq)

	_, err = ExtractDay("legacy-id")
	assert.Error(t, err)
}

func emptyItinerary(days int) *Itinerary {
	it := &Itinerary{ItineraryID: "trip-1"}
	for d := 1; d <= days; d++ {
		it.Days = append(it.Days, &Day{DayNumber: d})
	}
	return it
}

func TestAllocate_EmptyDay(t *testing.T) {
	it := emptyItinerary(4)
	id := Allocate(it, 4)
	assert.Equal(t, "day4_node1", id)
}

func TestAllocate_IncrementsPastMax(t *testing.T) {
	it := emptyItinerary(1)
	it.Days[0].Nodes = []*Node{
		{ID: "day1_node1"},
		{ID: "day1_node3"}, // gap from a prior delete
	}
	assert.Equal(t, "day1_node4", Allocate(it, 1))
}

func TestAllocate_DeleteThenInsertNeverReusesID(t *testing.T) {
	it := emptyItinerary(1)
	it.Days[0].Nodes = []*Node{{ID: "day1_node1"}, {ID: "day1_node2"}}

	// Simulate delete of day1_node2.
	it.Days[0].Nodes = it.Days[0].Nodes[:1]

	id := Allocate(it, 1)
	assert.Equal(t, "day1_node3", id, "deleted M must never be reused")
}

func TestAllocate_IgnoresLegacyIDs(t *testing.T) {
	it := emptyItinerary(1)
	it.Days[0].Nodes = []*Node{{ID: "node_att_day1_2274_7de9e730"}}
	assert.Equal(t, "day1_node1", Allocate(it, 1))
}
