package orchestration

import (
	"context"
	"fmt"

	"github.com/wayfarer-ai/itinerary/llm"
)

// intentClassification is what the LLM returns for a chat utterance.
type intentClassification struct {
	Intent     string                 `json:"intent"`
	Confidence float64                `json:"confidence"`
	Entities   map[string]interface{} `json:"entities"`
}

// ScratchIntentKey is where IntentClassifier leaves its result for
// EditorAgent to read via RunContext.Get.
const ScratchIntentKey = "intent_classification"

// IntentClassifier turns a chat utterance into an intent label and
// extracted entities (spec.md §4.6), using a small/fast LLM call. It
// contributes nothing to the document itself, only to RunContext.Scratch,
// so Execute always returns a nil ChangeSet.
type IntentClassifier struct {
	BaseAgent
}

func NewIntentClassifier() *IntentClassifier {
	return &IntentClassifier{
		BaseAgent: NewBaseAgent("intent_classifier", []TaskTag{TaskChatEdit}, 0, nil, true, true),
	}
}

func (a *IntentClassifier) Execute(ctx context.Context, rc *RunContext) (*Patch, error) {
	utterance, _ := rc.Payload["message"].(string)
	if utterance == "" {
		return nil, fmt.Errorf("intent_classifier: payload missing \"message\"")
	}

	result, err := llm.Invoke[intentClassification](ctx, rc.LLM, &llm.Request{
		TaskKind:     llm.TaskIntentClassification,
		Prompt:       utterance,
		SystemPrompt: "Classify the user's itinerary edit request. Respond with JSON matching the requested schema only.",
	})
	if err != nil {
		return nil, fmt.Errorf("intent_classifier: %w", err)
	}

	rc.Put(ScratchIntentKey, result)
	return &Patch{}, nil
}
