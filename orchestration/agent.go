// Package orchestration implements the Agent Registry and the
// Orchestrator (spec.md §4.6): a declarative mapping from task tag to an
// ordered, partially-parallel set of agents, and the classify -> fan-out
// -> fan-in -> commit state machine that runs them against a single
// itinerary.
package orchestration

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/wayfarer-ai/itinerary/change"
	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/itinerary"
	"github.com/wayfarer-ai/itinerary/llm"
	"github.com/wayfarer-ai/itinerary/summarizer"
)

// TaskTag names a pipeline an agent can participate in (spec.md §4.6's
// "supportedTasks"). Agents are free to support more than one.
type TaskTag string

const (
	TaskInitialGeneration TaskTag = "initial_generation"
	TaskChatEdit          TaskTag = "chat_edit"
)

// RunContext is what an agent's Execute receives: a read-only snapshot of
// the itinerary as of plan start, the shared LLM Gateway and Summarizer,
// and a Scratch bag agents earlier in the same run can use to pass data
// (e.g. the Intent Classifier's extracted entities) to agents that depend
// on them. Scratch is guarded by ScratchMu since Phase-A agents run
// concurrently and may both read it.
type RunContext struct {
	ItineraryID string
	Itinerary   *itinerary.Itinerary
	Payload     map[string]interface{}

	LLM        *llm.Gateway
	Summarizer *summarizer.Summarizer
	Logger     core.Logger

	Scratch   map[string]interface{}
	ScratchMu *sync.Mutex
}

// Put and Get give agents race-free access to Scratch.
func (rc *RunContext) Put(key string, value interface{}) {
	rc.ScratchMu.Lock()
	defer rc.ScratchMu.Unlock()
	rc.Scratch[key] = value
}

func (rc *RunContext) Get(key string) (interface{}, bool) {
	rc.ScratchMu.Lock()
	defer rc.ScratchMu.Unlock()
	v, ok := rc.Scratch[key]
	return v, ok
}

// Patch is what Execute returns: at most one ChangeSet to merge into the
// document via the Change Engine. A nil ChangeSet means the agent
// contributed only to Scratch (e.g. a classifier) and has nothing to
// commit itself.
type Patch struct {
	ChangeSet *change.ChangeSet
}

// Agent is one unit of orchestration work (spec.md §4.6's agent
// abstraction).
type Agent interface {
	Name() string
	SupportedTasks() []TaskTag
	// Priority orders agents within a task's plan; lower runs first. Two
	// enabled agents supporting the same task at the same priority is a
	// registration-time error (the Registry invariant).
	Priority() int
	Enabled() bool
	// DependsOn names agents (by Name()) that must complete, successfully
	// or not, before this agent becomes eligible to run.
	DependsOn() []string
	// Required, when true, aborts the whole plan if this agent fails.
	// Not part of spec.md's literal agent field list, but needed to carry
	// the "required agent aborts the plan" failure policy somewhere; it
	// is declared on the agent itself rather than as separate plan
	// metadata since this repo has no other place for per-agent-per-plan
	// configuration to live (see DESIGN.md).
	Required() bool
	Execute(ctx context.Context, rc *RunContext) (*Patch, error)
}

// BaseAgent implements the declarative fields of Agent, leaving Execute to
// the embedding type. Mirrors the teacher's small-struct-plus-embedding
// style for shared boilerplate (core.NoOpLogger-style defaults). enabled
// is an atomic.Bool, grounded on resilience/circuit_breaker.go's
// lock-free enable/disable flags, since SetEnabled can race with
// concurrent Enabled() reads from in-flight plan execution.
type BaseAgent struct {
	AgentName     string
	Tasks         []TaskTag
	AgentPriority int
	Deps          []string
	IsRequired    bool

	enabled atomic.Bool
}

// NewBaseAgent constructs a BaseAgent with its initial enabled state set.
func NewBaseAgent(name string, tasks []TaskTag, priority int, deps []string, required, enabled bool) BaseAgent {
	b := BaseAgent{AgentName: name, Tasks: tasks, AgentPriority: priority, Deps: deps, IsRequired: required}
	b.enabled.Store(enabled)
	return b
}

func (b *BaseAgent) Name() string              { return b.AgentName }
func (b *BaseAgent) SupportedTasks() []TaskTag { return b.Tasks }
func (b *BaseAgent) Priority() int             { return b.AgentPriority }
func (b *BaseAgent) Enabled() bool             { return b.enabled.Load() }
func (b *BaseAgent) DependsOn() []string       { return b.Deps }
func (b *BaseAgent) Required() bool            { return b.IsRequired }
func (b *BaseAgent) setEnabled(enabled bool)   { b.enabled.Store(enabled) }
