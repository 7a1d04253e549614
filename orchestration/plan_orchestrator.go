package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wayfarer-ai/itinerary/change"
	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/itinerary"
	"github.com/wayfarer-ai/itinerary/llm"
	"github.com/wayfarer-ai/itinerary/store"
	"github.com/wayfarer-ai/itinerary/summarizer"
)

// EventPublisher is the subset of eventbus.Bus / eventbus.RedisBus the
// Orchestrator needs; kept local to avoid an import cycle, the same way
// change.EventSink is declared in the change package.
type EventPublisher interface {
	Publish(itineraryID, kind string, payload map[string]interface{})
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, string, map[string]interface{}) {}

// Orchestrator implements spec.md §4.6's execute(itineraryId, taskKind,
// payload) contract: classify the task against the Registry, fan out the
// resulting agents, fan the resulting patches in through the Change
// Engine, and commit. Per-itinerary mutation is serialized with a keyed
// mutex (spec.md §5): a lazily filled map of per-itinerary mutexes guarded
// by locksMu.
type Orchestrator struct {
	registry  *Registry
	change    *change.Engine
	store     store.Gateway
	llm       *llm.Gateway
	summ      *summarizer.Summarizer
	events    EventPublisher
	logger    core.Logger
	telemetry core.Telemetry

	maxConcurrency  int
	deadline        time.Duration
	maxVersionRetry int

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// OrchestratorConfig wires an Orchestrator's dependencies.
type OrchestratorConfig struct {
	Registry        *Registry
	Change          *change.Engine
	Store           store.Gateway
	LLM             *llm.Gateway
	Summarizer      *summarizer.Summarizer
	Events          EventPublisher
	Logger          core.Logger
	Telemetry       core.Telemetry
	MaxConcurrency  int
	Deadline        time.Duration
	MaxVersionRetry int
}

// NewOrchestrator builds an Orchestrator from cfg, filling in defaults for
// zero-valued fields (spec.md §4.6: 60s per-task deadline, 3 version-
// conflict retries).
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	events := cfg.Events
	if events == nil {
		events = noopPublisher{}
	}
	telemetry := cfg.Telemetry
	if telemetry == nil {
		telemetry = &core.NoOpTelemetry{}
	}
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = 60 * time.Second
	}
	maxRetry := cfg.MaxVersionRetry
	if maxRetry <= 0 {
		maxRetry = 3
	}
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Orchestrator{
		registry:        cfg.Registry,
		change:          cfg.Change,
		store:           cfg.Store,
		llm:             cfg.LLM,
		summ:            cfg.Summarizer,
		events:          events,
		logger:          logger,
		telemetry:       telemetry,
		maxConcurrency:  maxConcurrency,
		deadline:        deadline,
		maxVersionRetry: maxRetry,
		locks:           make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) lockFor(itineraryID string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()
	m, ok := o.locks[itineraryID]
	if !ok {
		m = &sync.Mutex{}
		o.locks[itineraryID] = m
	}
	return m
}

// OrchestratorResult is execute's return value (spec.md §4.6).
type OrchestratorResult struct {
	RunID       string
	ItineraryID string
	TaskKind    TaskTag
	ChangeDiff  change.Diff
	AgentErrors map[string]string
	Aborted     bool
}

// Execute runs taskKind's plan of agents against itineraryID, merging
// their patches into one ChangeSet and committing it through the Change
// Engine. The whole call is serialized per itinerary (spec.md §5: the
// mutex spans ID allocation, Change Engine apply, and any Migration) and
// bounded by o.deadline; on deadline or caller cancellation, in-flight
// agent work is abandoned and nothing is persisted.
func (o *Orchestrator) Execute(ctx context.Context, itineraryID string, taskKind TaskTag, payload map[string]interface{}) (*OrchestratorResult, error) {
	runID := uuid.NewString()
	ctx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	ctx, span := o.telemetry.StartSpan(ctx, "orchestration.Execute")
	defer span.End()
	span.SetAttribute("itineraryId", itineraryID)
	span.SetAttribute("taskKind", string(taskKind))
	span.SetAttribute("runId", runID)

	lock := o.lockFor(itineraryID)
	lock.Lock()
	defer lock.Unlock()

	o.events.Publish(itineraryID, "orchestration.started", map[string]interface{}{"runId": runID, "taskKind": string(taskKind)})

	agents := o.registry.AgentsForTask(taskKind)
	if len(agents) == 0 {
		err := core.NewFrameworkError("orchestration.Execute", "NoAgentsForTask", fmt.Errorf("no enabled agents support task %q", taskKind))
		span.RecordError(err)
		return nil, err
	}

	doc, err := o.loadForMigration(ctx, itineraryID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	rc := &RunContext{
		ItineraryID: itineraryID,
		Itinerary:   doc,
		Payload:     payload,
		LLM:         o.llm,
		Summarizer:  o.summ,
		Logger:      o.logger,
		Scratch:     make(map[string]interface{}),
		ScratchMu:   &sync.Mutex{},
	}

	results, planErr := runPlan(ctx, agents, rc, o.maxConcurrency, o.logger)

	agentErrors := make(map[string]string)
	var sets []*change.ChangeSet
	for _, r := range results {
		if r.err != nil {
			agentErrors[r.name] = r.err.Error()
			o.events.Publish(itineraryID, "agent.failed", map[string]interface{}{"runId": runID, "agent": r.name, "error": r.err.Error()})
			continue
		}
		o.events.Publish(itineraryID, "agent.succeeded", map[string]interface{}{"runId": runID, "agent": r.name})
		if r.patch != nil && r.patch.ChangeSet != nil {
			sets = append(sets, r.patch.ChangeSet)
		}
	}

	if planErr != nil && errors.Is(planErr, core.ErrRequiredAgentFailed) {
		o.events.Publish(itineraryID, "orchestration.aborted", map[string]interface{}{"runId": runID, "reason": "required_agent_failed"})
		return &OrchestratorResult{RunID: runID, ItineraryID: itineraryID, TaskKind: taskKind, AgentErrors: agentErrors, Aborted: true}, nil
	}
	if ctx.Err() != nil {
		o.events.Publish(itineraryID, "orchestration.cancelled", map[string]interface{}{"runId": runID})
		err := core.NewFrameworkError("orchestration.Execute", "DeadlineExceeded", core.ErrDeadlineExceeded)
		span.RecordError(err)
		return nil, err
	}

	merged := mergeChangeSets(sets)
	if merged == nil {
		return &OrchestratorResult{RunID: runID, ItineraryID: itineraryID, TaskKind: taskKind, AgentErrors: agentErrors}, nil
	}

	diff, err := o.applyWithRetry(ctx, itineraryID, merged)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	o.telemetry.RecordMetric("orchestration.runs_total", 1, map[string]string{"taskKind": string(taskKind)})
	o.telemetry.RecordMetric("orchestration.agents_failed_total", float64(len(agentErrors)), map[string]string{"taskKind": string(taskKind)})
	o.events.Publish(itineraryID, "orchestration.completed", map[string]interface{}{"runId": runID, "toVersion": diff.ToVersion})
	return &OrchestratorResult{RunID: runID, ItineraryID: itineraryID, TaskKind: taskKind, ChangeDiff: diff, AgentErrors: agentErrors}, nil
}

// loadForMigration loads the current document, migrating it in place if
// its schema version is behind. Runs inside the per-itinerary lock so a
// migration never races a concurrent Execute for the same itinerary.
func (o *Orchestrator) loadForMigration(ctx context.Context, itineraryID string) (*itinerary.Itinerary, error) {
	doc, err := o.store.Get(ctx, itineraryID)
	if err != nil {
		return nil, core.NewFrameworkError("orchestration.Execute", "LoadFailed", err)
	}
	migrated, changed := itinerary.Migrate(doc, itinerary.NowMillis())
	if changed {
		if err := o.store.Put(ctx, itineraryID, migrated, doc.Version); err != nil {
			return nil, core.NewFrameworkError("orchestration.Execute", "MigrationPersistFailed", err)
		}
	}
	return migrated, nil
}

// applyWithRetry commits cs via the Change Engine, retrying up to
// maxVersionRetry times on a VersionConflict (spec.md §5: another process
// committed between this run's load and its apply). Each retry re-applies
// the same ChangeSet against the freshly reloaded document; the Change
// Engine's own Get-then-Put inside Apply handles the reload.
func (o *Orchestrator) applyWithRetry(ctx context.Context, itineraryID string, cs *change.ChangeSet) (change.Diff, error) {
	var lastErr error
	for attempt := 0; attempt <= o.maxVersionRetry; attempt++ {
		result, err := o.change.Apply(ctx, itineraryID, cs)
		if err == nil {
			return result.Diff, nil
		}
		if !errors.Is(err, core.ErrVersionConflict) {
			return change.Diff{}, core.NewFrameworkError("orchestration.Execute", "ApplyFailed", err)
		}
		lastErr = err
		o.logger.Warn("version conflict applying change set, retrying", map[string]interface{}{
			"itineraryId": itineraryID, "attempt": attempt,
		})
	}
	return change.Diff{}, core.NewFrameworkError("orchestration.Execute", "VersionConflictExhausted", lastErr)
}

// mergeChangeSets concatenates every agent's ops into one ChangeSet,
// preserving each agent's relative op order and carrying the first
// non-default Preferences found (agents in a single plan are expected to
// agree on flags like RespectLocks).
func mergeChangeSets(sets []*change.ChangeSet) *change.ChangeSet {
	if len(sets) == 0 {
		return nil
	}
	merged := &change.ChangeSet{}
	for _, cs := range sets {
		if cs == nil {
			continue
		}
		merged.Ops = append(merged.Ops, cs.Ops...)
		if merged.Scope == "" {
			merged.Scope = cs.Scope
		}
		if merged.Preferences == (change.Preferences{}) {
			merged.Preferences = cs.Preferences
		}
	}
	if len(merged.Ops) == 0 {
		return nil
	}
	return merged
}
