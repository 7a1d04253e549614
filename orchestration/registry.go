package orchestration

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wayfarer-ai/itinerary/core"
)

// Registry holds the process-wide, mutable set of agents (spec.md §5:
// "process-wide and mutable... guarded by a read-mostly lock"). Grounded
// on llm/registry.go's ProviderFactory registry shape, generalized from a
// name-keyed map to the task/priority overlap check spec.md §4.6 requires.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Agent)}
}

// Register adds an agent, enforcing the Registry invariant: for any task
// tag, at most one enabled agent may sit at a given priority.
func (r *Registry) Register(agent Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if agent.Enabled() {
		for _, existing := range r.agents {
			if !existing.Enabled() {
				continue
			}
			if existing.Priority() != agent.Priority() {
				continue
			}
			if sharesTask(existing, agent) {
				return core.NewFrameworkError(
					"orchestration.Register",
					"OverlappingAgents",
					core.ErrOverlappingAgents,
				)
			}
		}
	}

	r.agents[agent.Name()] = agent
	return nil
}

func sharesTask(a, b Agent) bool {
	for _, t := range a.SupportedTasks() {
		for _, u := range b.SupportedTasks() {
			if t == u {
				return true
			}
		}
	}
	return false
}

// SetEnabled toggles an agent at runtime without re-registering it.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.agents[name]
	if !ok {
		return core.NewFrameworkError("orchestration.SetEnabled", "AgentNotFound", core.ErrAgentNotFound)
	}
	if base, ok := agent.(interface{ setEnabled(bool) }); ok {
		base.setEnabled(enabled)
		return nil
	}
	return fmt.Errorf("agent %q does not support runtime enable/disable", name)
}

// AgentsForTask returns every currently-enabled agent that supports task,
// sorted by priority (lower first) and then by name.
func (r *Registry) AgentsForTask(task TaskTag) []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Agent
	for _, agent := range r.agents {
		if !agent.Enabled() {
			continue
		}
		for _, t := range agent.SupportedTasks() {
			if t == task {
				out = append(out, agent)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority() != out[j].Priority() {
			return out[i].Priority() < out[j].Priority()
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}

// All returns every registered agent, enabled or not, for diagnostics.
func (r *Registry) All() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	return out
}
