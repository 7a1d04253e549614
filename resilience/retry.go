package resilience

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/wayfarer-ai/itinerary/core"
)

// RetryConfig configures Retry's backoff schedule.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig mirrors the Redis store's expected failure profile:
// a handful of fast retries rather than the LLM Gateway's longer backoff
// (which is handled separately by cenkalti/backoff in package llm).
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      1 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// Retry calls fn until it succeeds, the context is cancelled, or
// config.MaxAttempts is exhausted.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt == config.MaxAttempts {
			break
		}

		if attempt > 1 {
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
		if config.JitterEnabled {
			delay += time.Duration(float64(delay) * 0.1 * math.Sin(float64(attempt)))
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded for %v: %w", config.MaxAttempts, lastErr, core.ErrMaxRetriesExceeded)
}

// RetryWithBreaker combines Retry with a CircuitBreaker: each attempt checks
// CanExecute first so a breaker that trips mid-retry fails fast instead of
// spending the remaining attempts against a known-bad dependency.
func RetryWithBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return Retry(ctx, config, func() error {
		return cb.Execute(ctx, fn)
	})
}
