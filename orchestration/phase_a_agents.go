package orchestration

import (
	"context"
	"fmt"

	"github.com/wayfarer-ai/itinerary/change"
	"github.com/wayfarer-ai/itinerary/itinerary"
	"github.com/wayfarer-ai/itinerary/llm"
)

// nodeSuggestion is the shape a phase-A agent asks the LLM for per node it
// wants inserted.
type nodeSuggestion struct {
	DayNumber int      `json:"dayNumber"`
	Title     string   `json:"title"`
	StartTime string   `json:"startTime"`
	EndTime   string   `json:"endTime"`
	Cost      float64  `json:"cost"`
	Labels    []string `json:"labels"`
}

// populationResponse is the schema every phase-A agent's LLM call decodes
// into (spec.md §4.6's "returning update-mode ChangeSets" generalized to
// "insert-mode", since these agents populate empty days rather than edit
// existing nodes).
type populationResponse struct {
	Nodes []nodeSuggestion `json:"nodes"`
}

// phaseAAgent is the shared shape of ActivityAgent, MealAgent, and
// TransportAgent: each asks the LLM to suggest nodes of one NodeType for
// every day of the trip, running in parallel with its siblings against the
// skeleton SkeletonPlanner produced. Grounded on llm/gateway.go's
// Invoke[T] generic decode, generalized from a single call to one call per
// component since each needs its own prompt and node type.
type phaseAAgent struct {
	BaseAgent
	nodeType itinerary.NodeType
	taskKind llm.TaskKind
	label    string
}

func newPhaseAAgent(name string, priority int, nodeType itinerary.NodeType, taskKind llm.TaskKind, label string) phaseAAgent {
	return phaseAAgent{
		BaseAgent: NewBaseAgent(name, []TaskTag{TaskInitialGeneration}, priority, []string{"skeleton_planner"}, false, true),
		nodeType:  nodeType,
		taskKind:  taskKind,
		label:     label,
	}
}

func (a *phaseAAgent) Execute(ctx context.Context, rc *RunContext) (*Patch, error) {
	summary := ""
	if rc.Summarizer != nil {
		summary = rc.Summarizer.Render(rc.Itinerary, 4000)
	}

	prompt := fmt.Sprintf(
		"Trip from %s to %s (%s to %s). Suggest %s for every day of this itinerary.\n\nCurrent itinerary:\n%s",
		rc.Itinerary.Origin, rc.Itinerary.Destination, rc.Itinerary.StartDate, rc.Itinerary.EndDate, a.label, summary,
	)

	resp, err := llm.Invoke[populationResponse](ctx, rc.LLM, &llm.Request{
		TaskKind:     a.taskKind,
		Prompt:       prompt,
		SystemPrompt: fmt.Sprintf("You plan %s. Respond with JSON matching the requested schema only.", a.label),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.AgentName, err)
	}

	cs := &change.ChangeSet{Scope: change.ScopeTrip}
	for _, n := range resp.Nodes {
		if rc.Itinerary.DayByNumber(n.DayNumber) == nil {
			continue
		}
		title, startTime, endTime := n.Title, n.StartTime, n.EndTime
		nodeType := a.nodeType
		cost := n.Cost
		cs.Ops = append(cs.Ops, change.Op{
			Op:  change.OpInsert,
			Day: intPtr(n.DayNumber),
			Node: &change.NodeInput{
				Title:     &title,
				Type:      &nodeType,
				StartTime: &startTime,
				EndTime:   &endTime,
				Cost:      &cost,
				Labels:    n.Labels,
			},
		})
	}
	if len(cs.Ops) == 0 {
		return &Patch{}, nil
	}
	return &Patch{ChangeSet: cs}, nil
}

// ActivityAgent suggests attractions for each day.
type ActivityAgent struct{ phaseAAgent }

func NewActivityAgent() *ActivityAgent {
	return &ActivityAgent{newPhaseAAgent("activity_agent", 1, itinerary.NodeAttraction, llm.TaskActivityPopulation, "attractions and activities")}
}

// MealAgent suggests restaurants for each day.
type MealAgent struct{ phaseAAgent }

func NewMealAgent() *MealAgent {
	return &MealAgent{newPhaseAAgent("meal_agent", 1, itinerary.NodeMeal, llm.TaskMealPopulation, "meals and restaurants")}
}

// TransportAgent suggests transit legs between a day's stops.
type TransportAgent struct{ phaseAAgent }

func NewTransportAgent() *TransportAgent {
	return &TransportAgent{newPhaseAAgent("transport_agent", 1, itinerary.NodeTransport, llm.TaskTransportPopulation, "transport between stops")}
}
