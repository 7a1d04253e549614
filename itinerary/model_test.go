package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildTestItinerary() *Itinerary {
	return &Itinerary{
		ItineraryID: "trip-1",
		Version:     1,
		Days: []*Day{
			{DayNumber: 1, Nodes: []*Node{
				{ID: "day1_node1", Title: "Arrive", Labels: []string{"travel"}},
				{ID: "day1_node2", Title: "Dinner"},
			}},
			{DayNumber: 2, Nodes: []*Node{
				{ID: "day2_node1", Title: "Museum"},
			}},
		},
	}
}

func TestFindNode(t *testing.T) {
	it := buildTestItinerary()

	n, d := it.FindNode("day2_node1")
	assert.NotNil(t, n)
	assert.Equal(t, 2, d.DayNumber)
	assert.Equal(t, "Museum", n.Title)

	n, d = it.FindNode("day9_node9")
	assert.Nil(t, n)
	assert.Nil(t, d)
}

func TestNodeIDs(t *testing.T) {
	it := buildTestItinerary()
	assert.Equal(t, []string{"day1_node1", "day1_node2", "day2_node1"}, it.NodeIDs())
	assert.Equal(t, []string{"day1_node1", "day1_node2"}, it.DayNodeIDs(1))
}

func TestClone_IsDeep(t *testing.T) {
	it := buildTestItinerary()
	clone := it.Clone()

	clone.Days[0].Nodes[0].Title = "Changed"
	clone.Days[0].Nodes[0].Labels[0] = "mutated"

	assert.Equal(t, "Arrive", it.Days[0].Nodes[0].Title, "original must not see clone mutations")
	assert.Equal(t, "travel", it.Days[0].Nodes[0].Labels[0])
}

func TestTouch(t *testing.T) {
	it := buildTestItinerary()
	it.Touch(12345)
	assert.Equal(t, 2, it.Version)
	assert.Equal(t, int64(12345), it.UpdatedAt)
}
