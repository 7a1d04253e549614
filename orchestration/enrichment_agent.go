package orchestration

import (
	"context"
	"fmt"

	"github.com/wayfarer-ai/itinerary/change"
	"github.com/wayfarer-ai/itinerary/llm"
)

// nodeEnrichment is one suggested enrichment (a tip and/or extra links) for
// an existing node.
type nodeEnrichment struct {
	NodeID string   `json:"nodeId"`
	Tips   []string `json:"tips"`
	Links  []string `json:"links"`
}

type enrichmentResponse struct {
	Enrichments []nodeEnrichment `json:"enrichments"`
}

// EnrichmentAgent is the Phase-B agent (spec.md §4.6): it runs after the
// Phase-A population agents complete and adds tips/links to the nodes they
// produced, standing in for an external places-lookup service. It is not
// Required: a failed enrichment pass should not block an otherwise
// complete itinerary from committing.
type EnrichmentAgent struct {
	BaseAgent
}

func NewEnrichmentAgent() *EnrichmentAgent {
	return &EnrichmentAgent{
		BaseAgent: NewBaseAgent(
			"enrichment_agent",
			[]TaskTag{TaskInitialGeneration},
			2,
			[]string{"activity_agent", "meal_agent", "transport_agent"},
			false,
			true,
		),
	}
}

func (a *EnrichmentAgent) Execute(ctx context.Context, rc *RunContext) (*Patch, error) {
	summary := ""
	if rc.Summarizer != nil {
		summary = rc.Summarizer.Render(rc.Itinerary, 6000)
	}

	resp, err := llm.Invoke[enrichmentResponse](ctx, rc.LLM, &llm.Request{
		TaskKind:     llm.TaskEnrichment,
		Prompt:       fmt.Sprintf("For each node below, suggest 1-2 practical tips and any useful reference links.\n\n%s", summary),
		SystemPrompt: "You enrich travel itinerary nodes with practical tips. Respond with JSON matching the requested schema only.",
	})
	if err != nil {
		return nil, fmt.Errorf("enrichment_agent: %w", err)
	}

	cs := &change.ChangeSet{Scope: change.ScopeTrip}
	for _, e := range resp.Enrichments {
		if _, day := rc.Itinerary.FindNode(e.NodeID); day == nil {
			continue
		}
		fields := map[string]interface{}{}
		if len(e.Tips) > 0 {
			fields["tips"] = e.Tips
		}
		if len(e.Links) > 0 {
			fields["links"] = e.Links
		}
		if len(fields) == 0 {
			continue
		}
		cs.Ops = append(cs.Ops, change.Op{Op: change.OpUpdate, ID: e.NodeID, Fields: fields})
	}
	if len(cs.Ops) == 0 {
		return &Patch{}, nil
	}
	return &Patch{ChangeSet: cs}, nil
}
