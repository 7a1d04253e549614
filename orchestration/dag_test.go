package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgent struct {
	BaseAgent
	execute func(ctx context.Context, rc *RunContext) (*Patch, error)
}

func (f *fakeAgent) Execute(ctx context.Context, rc *RunContext) (*Patch, error) {
	if f.execute != nil {
		return f.execute(ctx, rc)
	}
	return &Patch{}, nil
}

func newFakeAgent(name string, priority int, deps []string, required bool) *fakeAgent {
	return &fakeAgent{BaseAgent: NewBaseAgent(name, []TaskTag{TaskInitialGeneration}, priority, deps, required, true)}
}

func TestAgentDAG_ReadyNodesRespectDependencies(t *testing.T) {
	a := newFakeAgent("a", 0, nil, false)
	b := newFakeAgent("b", 1, []string{"a"}, false)
	c := newFakeAgent("c", 1, []string{"a"}, false)

	dag, err := NewAgentDAG([]Agent{a, b, c})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, dag.GetReadyNodes())

	dag.MarkRunning("a")
	assert.Empty(t, dag.GetReadyNodes())

	dag.MarkCompleted("a")
	ready := dag.GetReadyNodes()
	assert.ElementsMatch(t, []string{"b", "c"}, ready)
}

func TestAgentDAG_FailureSkipsDependents(t *testing.T) {
	a := newFakeAgent("a", 0, nil, false)
	b := newFakeAgent("b", 1, []string{"a"}, false)
	c := newFakeAgent("c", 2, []string{"b"}, false)

	dag, err := NewAgentDAG([]Agent{a, b, c})
	require.NoError(t, err)

	dag.MarkRunning("a")
	dag.MarkFailed("a")

	assert.True(t, dag.IsComplete())
	assert.ElementsMatch(t, []string{"b", "c"}, dag.SkippedNames())
}

func TestAgentDAG_RejectsCircularDependency(t *testing.T) {
	a := newFakeAgent("a", 0, []string{"b"}, false)
	b := newFakeAgent("b", 0, []string{"a"}, false)

	_, err := NewAgentDAG([]Agent{a, b})
	assert.Error(t, err)
}

func TestAgentDAG_RejectsUnknownDependency(t *testing.T) {
	a := newFakeAgent("a", 0, []string{"ghost"}, false)

	_, err := NewAgentDAG([]Agent{a})
	assert.Error(t, err)
}
