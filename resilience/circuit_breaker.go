// Package resilience implements the CircuitBreaker interface declared in
// core, protecting the LLM Gateway's provider calls and the Redis document
// store against cascading failures. Grounded on the teacher's
// resilience/circuit_breaker.go: same three-state machine (closed, open,
// half-open), the same force-open/force-closed manual override via
// atomic.Bool, and the same "don't count user errors against the breaker"
// classifier. Trimmed down from the teacher's sliding-window bucket
// implementation to a consecutive-failure counter, since this system runs a
// handful of circuits (one per LLM provider, one for Redis) rather than the
// teacher's per-agent-endpoint fleet.
package resilience

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wayfarer-ai/itinerary/core"
)

// ErrorClassifier decides whether an error should count toward the breaker's
// failure threshold. Context cancellation and caller mistakes should not
// trip the breaker; infrastructure failures should.
type ErrorClassifier func(error) bool

// DefaultErrorClassifier counts everything except context cancellation.
func DefaultErrorClassifier(err error) bool {
	return err != nil && err != context.Canceled
}

// CircuitBreaker implements core.CircuitBreaker with a consecutive-failure
// counter (reset by any success) and a sleep window before probing recovery.
type CircuitBreaker struct {
	name       string
	threshold  int
	sleepWindow time.Duration
	halfOpenMax int
	classifier ErrorClassifier
	logger     core.Logger

	mu             sync.Mutex
	current        circuitState
	openedAt       time.Time
	consecutiveErr int
	halfOpenInFlight int

	forceOpen   atomic.Bool
	forceClosed atomic.Bool

	totalCalls    atomic.Uint64
	totalFailures atomic.Uint64
	totalRejects  atomic.Uint64
}

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// New constructs a CircuitBreaker named name. A zero params.Config applies
// sensible defaults (5 consecutive failures, 30s sleep window, 3 half-open
// probes).
func New(params core.CircuitBreakerParams) *CircuitBreaker {
	threshold := params.Config.Threshold
	if threshold <= 0 {
		threshold = 5
	}
	sleepWindow := params.Config.Timeout
	if sleepWindow <= 0 {
		sleepWindow = 30 * time.Second
	}
	halfOpenMax := params.Config.HalfOpenRequests
	if halfOpenMax <= 0 {
		halfOpenMax = 3
	}
	logger := params.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &CircuitBreaker{
		name:        params.Name,
		threshold:   threshold,
		sleepWindow: sleepWindow,
		halfOpenMax: halfOpenMax,
		classifier:  DefaultErrorClassifier,
		logger:      logger,
	}
}

// Execute runs fn with circuit breaker protection.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	return cb.ExecuteWithTimeout(ctx, 0, fn)
}

// ExecuteWithTimeout runs fn, optionally bounded by timeout, and records the
// outcome against the breaker's state machine.
func (cb *CircuitBreaker) ExecuteWithTimeout(ctx context.Context, timeout time.Duration, fn func() error) error {
	if !cb.CanExecute() {
		cb.totalRejects.Add(1)
		return fmt.Errorf("circuit breaker %q is open: %w", cb.name, core.ErrCircuitBreakerOpen)
	}

	cb.totalCalls.Add(1)

	var err error
	if timeout <= 0 {
		err = fn()
	} else {
		done := make(chan error, 1)
		go func() { done <- fn() }()
		select {
		case err = <-done:
		case <-time.After(timeout):
			err = fmt.Errorf("circuit breaker %q: call exceeded %s: %w", cb.name, timeout, core.ErrTimeout)
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	if err != nil && cb.classifier(err) {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
	return err
}

// CanExecute reports whether Execute would currently allow a call through.
func (cb *CircuitBreaker) CanExecute() bool {
	if cb.forceClosed.Load() {
		return true
	}
	if cb.forceOpen.Load() {
		return false
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.current {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(cb.openedAt) >= cb.sleepWindow {
			cb.transitionLocked(stateHalfOpen)
			cb.halfOpenInFlight = 0
			return true
		}
		return false
	case stateHalfOpen:
		if cb.halfOpenInFlight < cb.halfOpenMax {
			cb.halfOpenInFlight++
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.totalFailures.Add(1)
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.current {
	case stateHalfOpen:
		cb.transitionLocked(stateOpen)
		cb.openedAt = time.Now()
	case stateClosed:
		cb.consecutiveErr++
		if cb.consecutiveErr >= cb.threshold {
			cb.transitionLocked(stateOpen)
			cb.openedAt = time.Now()
		}
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.current {
	case stateHalfOpen:
		cb.transitionLocked(stateClosed)
		cb.consecutiveErr = 0
	case stateClosed:
		cb.consecutiveErr = 0
	}
}

// transitionLocked must be called with cb.mu held.
func (cb *CircuitBreaker) transitionLocked(to circuitState) {
	if cb.current == to {
		return
	}
	from := cb.current
	cb.current = to
	cb.logger.Info("circuit breaker state change", map[string]interface{}{
		"name": cb.name, "from": from.String(), "to": to.String(),
	})
}

// GetState returns "closed", "open", or "half-open".
func (cb *CircuitBreaker) GetState() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.current.String()
}

// GetMetrics returns counters describing recent circuit behavior.
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"name":           cb.name,
		"state":          cb.GetState(),
		"total_calls":    cb.totalCalls.Load(),
		"total_failures": cb.totalFailures.Load(),
		"total_rejects":  cb.totalRejects.Load(),
	}
}

// Reset forces the circuit back to closed, clearing failure counts.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(stateClosed)
	cb.consecutiveErr = 0
	cb.halfOpenInFlight = 0
}

// ForceOpen manually holds the circuit open regardless of observed state,
// used by operators during a known provider outage.
func (cb *CircuitBreaker) ForceOpen()  { cb.forceOpen.Store(true); cb.forceClosed.Store(false) }

// ForceClosed manually holds the circuit closed, overriding the state
// machine. Clear with ClearOverride.
func (cb *CircuitBreaker) ForceClosed() { cb.forceClosed.Store(true); cb.forceOpen.Store(false) }

// ClearOverride removes any ForceOpen/ForceClosed override.
func (cb *CircuitBreaker) ClearOverride() {
	cb.forceOpen.Store(false)
	cb.forceClosed.Store(false)
}

var _ core.CircuitBreaker = (*CircuitBreaker)(nil)
