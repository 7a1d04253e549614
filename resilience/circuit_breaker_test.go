package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-ai/itinerary/core"
)

func newTestBreaker(threshold int, sleepWindow time.Duration) *CircuitBreaker {
	return New(core.CircuitBreakerParams{
		Name: "test",
		Config: core.CircuitBreakerConfig{
			Threshold:        threshold,
			Timeout:          sleepWindow,
			HalfOpenRequests: 1,
		},
	})
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(3, time.Hour)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.Equal(t, "open", cb.GetState())
	err := cb.Execute(context.Background(), func() error { return nil })
	assert.ErrorIs(t, err, core.ErrCircuitBreakerOpen)
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	cb := newTestBreaker(1, 10*time.Millisecond)
	require.Error(t, cb.Execute(context.Background(), func() error { return errors.New("boom") }))
	require.Equal(t, "open", cb.GetState())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
	assert.Equal(t, "closed", cb.GetState())
}

func TestCircuitBreaker_ForceOpenOverridesState(t *testing.T) {
	cb := newTestBreaker(5, time.Hour)
	cb.ForceOpen()
	assert.False(t, cb.CanExecute())
	cb.ClearOverride()
	assert.True(t, cb.CanExecute())
}

func TestCircuitBreaker_ExecuteWithTimeoutTripsOnSlowCall(t *testing.T) {
	cb := newTestBreaker(1, time.Hour)
	err := cb.ExecuteWithTimeout(context.Background(), 10*time.Millisecond, func() error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	assert.ErrorIs(t, err, core.ErrTimeout)
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1}
	err := Retry(context.Background(), cfg, func() error { return errors.New("always fails") })
	assert.ErrorIs(t, err, core.ErrMaxRetriesExceeded)
}
