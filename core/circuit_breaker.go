// This file defines the CircuitBreaker interface used to protect the LLM
// Gateway's provider calls against cascading failures. The concrete
// implementation lives in package resilience (a consecutive-failure
// counter); core declares the contract plus the config and params types
// that llm and store pass to resilience.New.
//
// States: closed (normal), open (fail fast), half-open (probing recovery).
package core

import (
	"context"
	"time"
)

// CircuitBreaker protects a downstream call (an LLM provider, the document
// store) against cascading failures by tracking recent outcomes and
// temporarily rejecting calls once a failure threshold is crossed.
type CircuitBreaker interface {
	// Execute runs fn with circuit breaker protection. If the circuit is
	// open it returns an error immediately without calling fn.
	Execute(ctx context.Context, fn func() error) error

	// ExecuteWithTimeout additionally bounds fn's execution time.
	ExecuteWithTimeout(ctx context.Context, timeout time.Duration, fn func() error) error

	// GetState returns "closed", "open", or "half-open".
	GetState() string

	// GetMetrics returns counters describing recent circuit behavior.
	GetMetrics() map[string]interface{}

	// Reset forces the circuit back to closed, clearing failure counts.
	Reset()

	// CanExecute reports whether Execute would currently allow a call.
	CanExecute() bool
}

// CircuitBreakerParams configures a CircuitBreaker implementation.
type CircuitBreakerParams struct {
	Name      string
	Config    CircuitBreakerConfig
	Logger    Logger
	Telemetry Telemetry
}

// CircuitBreakerConfig is the serializable portion of circuit breaker
// configuration (loadable from environment via Config, see config.go).
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled"`
	Threshold        int           `json:"threshold"`
	Timeout          time.Duration `json:"timeout"`
	HalfOpenRequests int           `json:"half_open_requests"`
}

// DefaultCircuitBreakerParams returns sensible defaults.
func DefaultCircuitBreakerParams(name string) CircuitBreakerParams {
	return CircuitBreakerParams{
		Name: name,
		Config: CircuitBreakerConfig{
			Enabled:          true,
			Threshold:        5,
			Timeout:          30 * time.Second,
			HalfOpenRequests: 3,
		},
	}
}
