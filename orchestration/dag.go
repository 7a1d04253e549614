package orchestration

import (
	"fmt"
	"sync"
)

// AgentDAG tracks dependency state across one plan's agents while it
// executes. Adapted from the teacher's workflow_dag.go (WorkflowDAG):
// same node/status/ready-set/mark-terminal shape, renamed from workflow
// steps to agents. GetReadyNodes driving a dynamic poll-execute-mark loop
// (rather than precomputed static levels) is the same mechanism the
// teacher's executor.go uses to run a RoutingPlan.
type AgentDAG struct {
	mu    sync.RWMutex
	nodes map[string]*agentNode
}

type agentStatus int

const (
	agentPending agentStatus = iota
	agentRunning
	agentCompleted
	agentFailed
	agentSkipped
)

type agentNode struct {
	name         string
	dependsOn    []string
	dependents   []string
	status       agentStatus
}

// NewAgentDAG builds a DAG from a plan's agents, keyed by Agent.Name().
func NewAgentDAG(agents []Agent) (*AgentDAG, error) {
	d := &AgentDAG{nodes: make(map[string]*agentNode, len(agents))}
	for _, a := range agents {
		d.nodes[a.Name()] = &agentNode{name: a.Name(), dependsOn: a.DependsOn()}
	}
	d.rebuildDependents()
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *AgentDAG) rebuildDependents() {
	for _, n := range d.nodes {
		n.dependents = nil
	}
	for name, n := range d.nodes {
		for _, dep := range n.dependsOn {
			if depNode, ok := d.nodes[dep]; ok {
				depNode.dependents = append(depNode.dependents, name)
			}
		}
	}
}

func (d *AgentDAG) validate() error {
	for name, n := range d.nodes {
		for _, dep := range n.dependsOn {
			if _, ok := d.nodes[dep]; !ok {
				return fmt.Errorf("agent %q depends on %q, which is not part of this plan", name, dep)
			}
		}
	}
	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	for name := range d.nodes {
		if !visited[name] {
			if d.hasCycle(name, visited, inStack) {
				return fmt.Errorf("agent plan has a circular dependency involving %q", name)
			}
		}
	}
	return nil
}

func (d *AgentDAG) hasCycle(name string, visited, inStack map[string]bool) bool {
	visited[name] = true
	inStack[name] = true
	for _, dep := range d.nodes[name].dependsOn {
		if !visited[dep] {
			if d.hasCycle(dep, visited, inStack) {
				return true
			}
		} else if inStack[dep] {
			return true
		}
	}
	inStack[name] = false
	return false
}

// GetReadyNodes returns the names of pending agents whose dependencies are
// all in a terminal state (completed or skipped).
func (d *AgentDAG) GetReadyNodes() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var ready []string
	for name, n := range d.nodes {
		if n.status != agentPending {
			continue
		}
		if d.dependenciesSettled(name) {
			ready = append(ready, name)
		}
	}
	return ready
}

func (d *AgentDAG) dependenciesSettled(name string) bool {
	for _, dep := range d.nodes[name].dependsOn {
		depNode := d.nodes[dep]
		if depNode.status != agentCompleted && depNode.status != agentSkipped {
			return false
		}
	}
	return true
}

func (d *AgentDAG) MarkRunning(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.nodes[name]; ok {
		n.status = agentRunning
	}
}

func (d *AgentDAG) MarkCompleted(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.nodes[name]; ok {
		n.status = agentCompleted
	}
}

// MarkFailed marks name failed and, since a failed agent's output will
// never exist, transitively skips every pending agent that depends on it.
func (d *AgentDAG) MarkFailed(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.nodes[name]; ok {
		n.status = agentFailed
		d.skipDependents(name)
	}
}

func (d *AgentDAG) skipDependents(name string) {
	n := d.nodes[name]
	for _, dep := range n.dependents {
		if depNode := d.nodes[dep]; depNode != nil && depNode.status == agentPending {
			depNode.status = agentSkipped
			d.skipDependents(dep)
		}
	}
}

// IsComplete reports whether every agent has reached a terminal state.
func (d *AgentDAG) IsComplete() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, n := range d.nodes {
		if n.status == agentPending || n.status == agentRunning {
			return false
		}
	}
	return true
}

// SkippedNames returns the names of agents that were skipped because a
// dependency failed, for diagnostics.
func (d *AgentDAG) SkippedNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []string
	for name, n := range d.nodes {
		if n.status == agentSkipped {
			out = append(out, name)
		}
	}
	return out
}
