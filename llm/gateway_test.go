package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/llm"
	"github.com/wayfarer-ai/itinerary/llm/providers/mock"
)

type classifyResult struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

func TestInvoke_DecodesSchemaOnSuccess(t *testing.T) {
	mock.Shared().SetResponses(`{"intent":"add_activity","confidence":0.9}`)
	gw := llm.NewGateway(&llm.Config{DefaultProvider: "mock", RetryAttempts: 1})

	result, err := llm.Invoke[classifyResult](context.Background(), gw, &llm.Request{
		TaskKind: llm.TaskIntentClassification,
		Prompt:   "what's the vibe of this trip?",
	})
	require.NoError(t, err)
	assert.Equal(t, "add_activity", result.Intent)
	assert.Equal(t, 0.9, result.Confidence)
}

func TestInvoke_SchemaMismatchIsNotRetried(t *testing.T) {
	mock.Shared().SetResponses("not json at all")
	gw := llm.NewGateway(&llm.Config{DefaultProvider: "mock", RetryAttempts: 5})

	_, err := llm.Invoke[classifyResult](context.Background(), gw, &llm.Request{
		TaskKind: llm.TaskChangeSetGeneration,
		Prompt:   "produce a changeset",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrLLMSchemaMismatch))
	assert.Equal(t, 1, mock.Shared().CallCount, "schema mismatch must not be retried")
}

func TestInvoke_RetriesTransientProviderErrors(t *testing.T) {
	mock.Shared().SetResponses(`{"intent":"ok"}`)
	mock.Shared().Err = core.NewFrameworkError("mock.Generate", "Transient", core.ErrLLMTransient)
	defer func() { mock.Shared().Err = nil }()

	gw := llm.NewGateway(&llm.Config{DefaultProvider: "mock", RetryAttempts: 3, RetryDelay: time.Millisecond})
	_, err := llm.Invoke[classifyResult](context.Background(), gw, &llm.Request{
		TaskKind: llm.TaskIntentClassification,
		Prompt:   "anything",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrLLMTransient))
	assert.Equal(t, 3, mock.Shared().CallCount, "transient errors are retried until attempts run out")
}

func TestInvoke_NoProviderConfigured(t *testing.T) {
	gw := llm.NewGateway(&llm.Config{})
	_, err := llm.Invoke[classifyResult](context.Background(), gw, &llm.Request{
		TaskKind: llm.TaskIntentClassification,
		Prompt:   "anything",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNoProvider))
}
