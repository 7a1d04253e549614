package core

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is(). These are the
// generic kinds described in spec.md §7; higher layers wrap them with
// FrameworkError to attach operation-specific context (the offending id,
// the list of currently-valid ids, and so on) without losing the ability
// to classify the failure with errors.Is.
var (
	// Change Engine: per-operation errors. Reported and skipped within a
	// ChangeSet; a per-op failure never aborts the whole commit.
	ErrNodeNotFound     = errors.New("node not found")
	ErrLocked           = errors.New("node is locked")
	ErrInvalidShape     = errors.New("invalid operation shape")
	ErrDayOutOfRange    = errors.New("day out of range")
	ErrIDFormatConflict = errors.New("id format conflict")

	// Change Engine: commit-level errors. These abort the whole commit and
	// leave the document unchanged.
	ErrLoadFailed      = errors.New("failed to load document")
	ErrPersistFailed   = errors.New("failed to persist document")
	ErrVersionConflict = errors.New("optimistic concurrency version conflict")

	// ID Allocator / Migration
	ErrInvalidIDFormat = errors.New("invalid node id format")
	ErrMigrationFailed = errors.New("migration failed")

	// LLM Gateway
	ErrLLMTransient      = errors.New("transient llm provider error")
	ErrLLMSchemaMismatch = errors.New("llm response did not match schema")
	ErrLLMRateLimited    = errors.New("llm provider rate limited the request")
	ErrLLMTimeout        = errors.New("llm provider call timed out")
	ErrNoProvider        = errors.New("no llm provider configured for task kind")

	// Orchestrator / Agent Registry
	ErrAgentFailed         = errors.New("agent execution failed")
	ErrCancelled           = errors.New("orchestration cancelled")
	ErrDeadlineExceeded    = errors.New("orchestration deadline exceeded")
	ErrAgentNotFound       = errors.New("agent not found in registry")
	ErrOverlappingAgents   = errors.New("two enabled agents at the same priority support the same task")
	ErrRequiredAgentFailed = errors.New("a required agent failed, aborting the plan")

	// Resilience
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")
	ErrTimeout            = errors.New("call timed out")

	// Generic / shared
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")
	ErrContextCanceled      = errors.New("context canceled")
	ErrMaxRetriesExceeded   = errors.New("maximum retries exceeded")
)

// FrameworkError provides structured error information with context. It
// implements the error interface and supports error wrapping via Unwrap so
// callers can still use errors.Is/errors.As against the sentinels above.
type FrameworkError struct {
	Op      string // operation that failed, e.g. "change.Apply"
	Kind    string // error kind, e.g. "NodeNotFound"
	ID      string // id of the entity involved, if any
	Message string // human-readable message; spec.md §7 requires naming the op + valid ids
	Err     error  // underlying sentinel error
}

func (e *FrameworkError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *FrameworkError) Unwrap() error {
	return e.Err
}

// NewFrameworkError creates a new FrameworkError wrapping a sentinel.
func NewFrameworkError(op, kind string, err error) *FrameworkError {
	return &FrameworkError{Op: op, Kind: kind, Err: err}
}

// IsRetryable reports whether an error is transient and worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLLMTransient) ||
		errors.Is(err, ErrLLMRateLimited) ||
		errors.Is(err, ErrLLMTimeout) ||
		errors.Is(err, ErrVersionConflict)
}

// IsNotFound reports whether an error represents a "not found" condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound) || errors.Is(err, ErrAgentNotFound)
}

// IsPerOperation reports whether an error is one of the per-op Change
// Engine failures that must be reported and skipped rather than aborting
// the whole commit (spec.md §7).
func IsPerOperation(err error) bool {
	return errors.Is(err, ErrNodeNotFound) ||
		errors.Is(err, ErrLocked) ||
		errors.Is(err, ErrInvalidShape) ||
		errors.Is(err, ErrDayOutOfRange) ||
		errors.Is(err, ErrIDFormatConflict)
}

// IsConfigurationError reports whether an error is configuration-related.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) || errors.Is(err, ErrMissingConfiguration)
}
