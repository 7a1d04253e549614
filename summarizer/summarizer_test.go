package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-ai/itinerary/itinerary"
)

func buildItinerary() *itinerary.Itinerary {
	return &itinerary.Itinerary{
		ItineraryID: "trip-1",
		Days: []*itinerary.Day{
			{DayNumber: 1, Nodes: []*itinerary.Node{
				{
					ID: "day1_node1", Title: "Louvre", Type: itinerary.NodeAttraction,
					StartTime: "09:00", EndTime: "12:00",
					Tips:   []string{"buy tickets online", "arrive early"},
					Labels: []string{"museum", "indoor"},
				},
			}},
			{DayNumber: 2},
		},
	}
}

func TestRender_ExactFormat(t *testing.T) {
	s := New()
	text := s.Render(buildItinerary(), 0)

	require.Contains(t, text, "Day 1:")
	require.Contains(t, text, "  day1_node1: Louvre (attraction) [09:00-12:00]")
	require.Contains(t, text, "Day 2:")
	require.Contains(t, text, "  No nodes")
	require.Contains(t, text, "When referencing nodes in operations, use the EXACT IDs shown above.")
}

func TestRender_DegradesTipsThenLabelsBeforeDroppingNodes(t *testing.T) {
	s := New()
	it := buildItinerary()

	full := s.Render(it, 0)
	require.Contains(t, full, "tips:")
	require.Contains(t, full, "labels:")

	tight := s.countTokens(full) - 1
	degraded := s.Render(it, tight)

	assert.Contains(t, degraded, "day1_node1: Louvre (attraction) [09:00-12:00]", "node line survives truncation")
	assert.Contains(t, degraded, "Day 1:")
}

func TestRender_EmptyItinerary(t *testing.T) {
	s := New()
	text := s.Render(&itinerary.Itinerary{ItineraryID: "empty"}, 0)
	assert.True(t, strings.Contains(text, "EXACT IDs"))
}
