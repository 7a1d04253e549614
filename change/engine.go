package change

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/itinerary"
	"github.com/wayfarer-ai/itinerary/store"
)

// EventSink is the minimal notification surface the Engine uses on a
// successful commit. It is satisfied structurally by the Event Bus so this
// package does not need to import it, keeping the dependency flow the same
// direction as the rest of the domain stack (leaf packages first).
type EventSink interface {
	Publish(itineraryID string, kind string, payload map[string]interface{})
}

type noopSink struct{}

func (noopSink) Publish(string, string, map[string]interface{}) {}

// Engine is the Change Engine.
type Engine struct {
	store     store.Gateway
	logger    core.Logger
	sink      EventSink
	telemetry core.Telemetry

	idemMu    sync.Mutex
	idemCache map[string]*Result // key: itineraryID + "\x00" + idempotencyKey
	idemOrder []string
}

const maxIdempotencyEntries = 1024

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger core.Logger) Option {
	return func(e *Engine) {
		if logger == nil {
			return
		}
		if aware, ok := logger.(core.ComponentAwareLogger); ok {
			e.logger = aware.WithComponent("change")
			return
		}
		e.logger = logger
	}
}

func WithEventSink(sink EventSink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithTelemetry attaches a tracer/metrics sink used to span Apply/Propose
// calls. Omit to discard spans and metrics.
func WithTelemetry(t core.Telemetry) Option {
	return func(e *Engine) {
		if t != nil {
			e.telemetry = t
		}
	}
}

// New creates an Engine backed by gw.
func New(gw store.Gateway, opts ...Option) *Engine {
	e := &Engine{
		store:     gw,
		logger:    &core.NoOpLogger{},
		sink:      noopSink{},
		telemetry: &core.NoOpTelemetry{},
		idemCache: make(map[string]*Result),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Propose computes the would-be diff without persisting (spec.md §4.5's
// "propose mode"). PreviewVersion is currentVersion + 1.
func (e *Engine) Propose(ctx context.Context, itineraryID string, cs *ChangeSet) (*Result, error) {
	ctx, span := e.telemetry.StartSpan(ctx, "change.Propose")
	defer span.End()
	span.SetAttribute("itineraryId", itineraryID)

	cur, err := e.store.Get(ctx, itineraryID)
	if err != nil {
		span.RecordError(err)
		return &Result{State: StateLoadFailed}, err
	}

	working := cur.Clone()
	diff, ops := e.runOps(working, cs)
	diff.FromVersion = cur.Version
	diff.ToVersion = cur.Version
	diff.PreviewVersion = cur.Version + 1

	return &Result{State: StateProposed, Diff: diff, Ops: ops, Itinerary: working}, nil
}

// Apply runs the state machine in spec.md §4.5: load, validate, mutate
// per-op, and persist if at least one op succeeded.
func (e *Engine) Apply(ctx context.Context, itineraryID string, cs *ChangeSet) (*Result, error) {
	ctx, span := e.telemetry.StartSpan(ctx, "change.Apply")
	defer span.End()
	span.SetAttribute("itineraryId", itineraryID)
	span.SetAttribute("opCount", len(cs.Ops))

	if cs.IdempotencyKey != "" {
		if cached, ok := e.lookupIdempotent(itineraryID, cs.IdempotencyKey); ok {
			return cached, nil
		}
	}

	cur, err := e.store.Get(ctx, itineraryID)
	if err != nil {
		span.RecordError(err)
		return &Result{State: StateLoadFailed}, err
	}

	working := cur.Clone()
	diff, ops := e.runOps(working, cs)

	if diff.isEmpty() {
		result := &Result{State: StateNoChange, Diff: diff, Ops: ops}
		result.Diff.FromVersion = cur.Version
		result.Diff.ToVersion = cur.Version
		e.rememberIdempotent(itineraryID, cs.IdempotencyKey, result)
		return result, nil
	}

	fromVersion := cur.Version
	working.Touch(itinerary.NowMillis())
	if err := e.store.Put(ctx, itineraryID, working, fromVersion); err != nil {
		span.RecordError(err)
		return &Result{State: StateLoadFailed}, err
	}
	e.telemetry.RecordMetric("change.apply.ops_committed_total", float64(len(ops)), map[string]string{"itineraryId": itineraryID})

	diff.FromVersion = fromVersion
	diff.ToVersion = working.Version
	result := &Result{State: StateCommitted, Diff: diff, Ops: ops, Itinerary: working}
	e.rememberIdempotent(itineraryID, cs.IdempotencyKey, result)

	e.sink.Publish(itineraryID, "change.committed", map[string]interface{}{
		"fromVersion": diff.FromVersion,
		"toVersion":   diff.ToVersion,
		"added":       diff.Added,
		"removed":     diff.Removed,
		"updated":     diff.Updated,
	})
	return result, nil
}

// Undo restores the snapshot at toVersion as a new commit (spec.md §4.5:
// "the engine does not invert operations algebraically").
func (e *Engine) Undo(ctx context.Context, itineraryID string, toVersion int) (*Result, error) {
	ctx, span := e.telemetry.StartSpan(ctx, "change.Undo")
	defer span.End()
	span.SetAttribute("itineraryId", itineraryID)
	span.SetAttribute("toVersion", toVersion)

	snapshot, err := e.store.GetAtVersion(ctx, itineraryID, toVersion)
	if err != nil {
		span.RecordError(err)
		return &Result{State: StateLoadFailed}, err
	}
	cur, err := e.store.Get(ctx, itineraryID)
	if err != nil {
		span.RecordError(err)
		return &Result{State: StateLoadFailed}, err
	}

	restored := snapshot.Clone()
	restored.Version = cur.Version
	restored.Touch(itinerary.NowMillis())

	if err := e.store.Put(ctx, itineraryID, restored, cur.Version); err != nil {
		span.RecordError(err)
		return &Result{State: StateLoadFailed}, err
	}

	result := &Result{
		State:     StateCommitted,
		Itinerary: restored,
		Diff:      Diff{FromVersion: cur.Version, ToVersion: restored.Version},
	}
	e.sink.Publish(itineraryID, "change.undone", map[string]interface{}{
		"fromVersion": cur.Version,
		"toVersion":   restored.Version,
		"restoredTo":  toVersion,
	})
	return result, nil
}

func (e *Engine) lookupIdempotent(itineraryID, key string) (*Result, bool) {
	e.idemMu.Lock()
	defer e.idemMu.Unlock()
	r, ok := e.idemCache[itineraryID+"\x00"+key]
	return r, ok
}

func (e *Engine) rememberIdempotent(itineraryID, key string, result *Result) {
	if key == "" {
		return
	}
	e.idemMu.Lock()
	defer e.idemMu.Unlock()
	cacheKey := itineraryID + "\x00" + key
	if _, exists := e.idemCache[cacheKey]; !exists {
		e.idemOrder = append(e.idemOrder, cacheKey)
		if len(e.idemOrder) > maxIdempotencyEntries {
			evict := e.idemOrder[0]
			e.idemOrder = e.idemOrder[1:]
			delete(e.idemCache, evict)
		}
	}
	e.idemCache[cacheKey] = result
}

// runOps applies cs.Ops to working in order, mutating it in place, and
// returns the accumulated diff and per-op outcomes. A failing op never
// aborts the remaining ops (spec.md §4.5).
func (e *Engine) runOps(working *itinerary.Itinerary, cs *ChangeSet) (Diff, []OpOutcome) {
	diff := Diff{}
	outcomes := make([]OpOutcome, 0, len(cs.Ops))

	for i, op := range cs.Ops {
		outcome := OpOutcome{Index: i, Op: op.Op}
		var err *opError
		var resultID string

		switch op.Op {
		case OpInsert:
			resultID, err = e.applyInsert(working, cs.Preferences, op)
		case OpReplace:
			resultID, err = e.applyReplace(working, cs.Preferences, op)
			if err == nil {
				diff.Updated = append(diff.Updated, resultID)
			}
		case OpDelete:
			resultID, err = e.applyDelete(working, cs.Preferences, op)
			if err == nil {
				diff.Removed = append(diff.Removed, resultID)
			}
		case OpMove:
			var oldID, newID string
			oldID, newID, err = e.applyMove(working, cs.Preferences, op)
			if err == nil {
				diff.Removed = append(diff.Removed, oldID)
				diff.Added = append(diff.Added, newID)
				resultID = newID
			}
		case OpUpdate:
			resultID, err = e.applyUpdate(working, cs.Preferences, op)
			if err == nil {
				diff.Updated = append(diff.Updated, resultID)
			}
		default:
			err = &opError{kind: "InvalidShape", message: fmt.Sprintf("unknown op kind %q", op.Op)}
		}

		if op.Op == OpInsert && err == nil {
			diff.Added = append(diff.Added, resultID)
		}

		if err != nil {
			outcome.Succeeded = false
			outcome.Kind = err.kind
			outcome.Message = err.message
		} else {
			outcome.Succeeded = true
			outcome.ResultID = resultID
		}
		outcomes = append(outcomes, outcome)
	}

	return diff, outcomes
}

type opError struct {
	kind    string
	message string
	err     error
}

func nodeNotFound(it *itinerary.Itinerary, id string) *opError {
	available := it.NodeIDs()
	if day, derr := itinerary.ExtractDay(id); derr == nil {
		if scoped := it.DayNodeIDs(day); len(scoped) > 0 {
			available = scoped
		}
	}
	return &opError{
		kind:    "NodeNotFound",
		message: fmt.Sprintf("Node with ID '%s' not found. Available: %s.", id, joinIDs(available)),
		err:     core.ErrNodeNotFound,
	}
}

func lockedErr(id string) *opError {
	return &opError{
		kind:    "Locked",
		message: fmt.Sprintf("Node with ID '%s' is locked.", id),
		err:     core.ErrLocked,
	}
}

func joinIDs(ids []string) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}

func decodeUpdateFields(raw map[string]interface{}) (*UpdateFields, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var out UpdateFields
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
