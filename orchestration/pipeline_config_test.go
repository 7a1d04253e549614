package orchestration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPipelineConfig_MissingFileIsNoOverrides(t *testing.T) {
	cfg, err := LoadPipelineConfig(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Agents)
}

func TestLoadPipelineConfig_ParsesAndApplies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipelines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agents:
  enrichment_agent:
    enabled: false
  skeleton_planner:
    enabled: true
`), 0o644))

	cfg, err := LoadPipelineConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 2)
	assert.False(t, cfg.Agents["enrichment_agent"].Enabled)

	r := BuildDefaultRegistry()
	cfg.Apply(r)

	for _, a := range r.All() {
		if a.Name() == "enrichment_agent" {
			assert.False(t, a.Enabled())
		}
	}
}
