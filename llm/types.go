// Package llm implements the LLM Gateway (spec.md §4.4): it routes a typed
// prompt request to one of several providers and returns a parsed,
// schema-validated response, retrying transient provider failures with
// exponential backoff and jitter and failing fast on a schema mismatch.
package llm

import (
	"context"
	"time"
)

// TaskKind identifies what the prompt is being used for. Provider selection
// is configured per task kind (spec.md §4.4).
type TaskKind string

const (
	TaskIntentClassification TaskKind = "intent_classification"
	TaskChangeSetGeneration  TaskKind = "change_set_generation"
	TaskSkeletonPlanning     TaskKind = "skeleton_planning"
	TaskActivityPopulation   TaskKind = "activity_population"
	TaskMealPopulation       TaskKind = "meal_population"
	TaskTransportPopulation  TaskKind = "transport_population"
	TaskEnrichment           TaskKind = "enrichment"
)

// Request is a single typed prompt invocation.
type Request struct {
	TaskKind     TaskKind
	Prompt       string
	SystemPrompt string
	Model        string
	Temperature  float32
	MaxTokens    int
	Deadline     time.Time
}

// Response is a provider's raw answer before schema decoding.
type Response struct {
	Content string
	Model   string
	Usage   TokenUsage
}

// TokenUsage mirrors what every provider's API reports back.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Provider is the minimal surface the Gateway needs from any LLM backend.
// Implementations live under llm/providers/*.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*Response, error)
}
