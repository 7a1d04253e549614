package orchestration

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PipelineConfig is the on-disk enable/disable toggle list for a
// Registry's agents, keyed by Agent.Name(). Grounded on the teacher's
// ParseWorkflowYAML in workflow_engine.go: a flat yaml.Unmarshal into a
// tagged struct, no custom decoder.
type PipelineConfig struct {
	Agents map[string]AgentToggle `yaml:"agents"`
}

// AgentToggle is one agent's entry in a pipeline config file.
type AgentToggle struct {
	Enabled bool `yaml:"enabled"`
}

// LoadPipelineConfig reads and parses a pipeline config file. A missing
// file is not an error: callers treat it as "no overrides" so a fresh
// checkout runs with every agent at its compiled-in default.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &PipelineConfig{Agents: map[string]AgentToggle{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("orchestration: read pipeline config %s: %w", path, err)
	}

	var cfg PipelineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("orchestration: parse pipeline config %s: %w", path, err)
	}
	if cfg.Agents == nil {
		cfg.Agents = map[string]AgentToggle{}
	}
	return &cfg, nil
}

// Apply pushes every toggle in cfg onto r via SetEnabled. An agent named
// in the config but not registered is skipped rather than treated as an
// error, since a pipeline config is expected to outlive any one build's
// agent roster.
func (cfg *PipelineConfig) Apply(r *Registry) {
	for name, toggle := range cfg.Agents {
		_ = r.SetEnabled(name, toggle.Enabled)
	}
}
