package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricInstruments_CountersAndHistogramsAreCached(t *testing.T) {
	m := NewMetricInstruments("test")

	require.NoError(t, m.RecordCounter(context.Background(), "orchestration.runs_total", 1))
	require.NoError(t, m.RecordCounter(context.Background(), "orchestration.runs_total", 1))
	assert.Len(t, m.counters, 1, "second call should reuse the cached instrument, not create a second one")

	require.NoError(t, m.RecordHistogram(context.Background(), "change.apply.duration_ms", 12.5))
	assert.Len(t, m.histograms, 1)
}

func TestContainsAny(t *testing.T) {
	assert.True(t, containsAny("orchestration.runs_total", "total"))
	assert.True(t, containsAny("change.apply.duration_ms", "duration"))
	assert.False(t, containsAny("orchestration.active_agents", "total", "count", "errors", "success"))
}
