package orchestration

import (
	"context"
	"fmt"

	"github.com/wayfarer-ai/itinerary/change"
	"github.com/wayfarer-ai/itinerary/llm"
)

// EditorAgent turns a classified chat edit into a ChangeSet (spec.md
// §4.6): it renders the current itinerary through the Summarizer, asks
// the LLM for a ChangeSet in one schema-forced call, and hands the result
// back as this run's Patch for the Orchestrator to apply. It depends on
// IntentClassifier so the classified intent and entities are available in
// Scratch when it prompts.
type EditorAgent struct {
	BaseAgent
}

func NewEditorAgent() *EditorAgent {
	return &EditorAgent{
		BaseAgent: NewBaseAgent("editor_agent", []TaskTag{TaskChatEdit}, 1, []string{"intent_classifier"}, true, true),
	}
}

func (a *EditorAgent) Execute(ctx context.Context, rc *RunContext) (*Patch, error) {
	utterance, _ := rc.Payload["message"].(string)

	summary := ""
	if rc.Summarizer != nil {
		summary = rc.Summarizer.Render(rc.Itinerary, 6000)
	}

	var intentHint string
	if v, ok := rc.Get(ScratchIntentKey); ok {
		if intent, ok := v.(intentClassification); ok {
			intentHint = fmt.Sprintf("Classified intent: %s (confidence %.2f). Entities: %v\n", intent.Intent, intent.Confidence, intent.Entities)
		}
	}

	prompt := fmt.Sprintf(
		"%sUser request: %q\n\nCurrent itinerary:\n%s\n\nRespond with a ChangeSet JSON (scope, day, preferences, ops) that satisfies the request.",
		intentHint, utterance, summary,
	)

	cs, err := llm.Invoke[change.ChangeSet](ctx, rc.LLM, &llm.Request{
		TaskKind:     llm.TaskChangeSetGeneration,
		Prompt:       prompt,
		SystemPrompt: "You edit travel itineraries by emitting ChangeSet operations. Respond with JSON matching the requested schema only.",
	})
	if err != nil {
		return nil, fmt.Errorf("editor_agent: %w", err)
	}
	if len(cs.Ops) == 0 {
		return &Patch{}, nil
	}
	return &Patch{ChangeSet: &cs}, nil
}
