package orchestration

import (
	"context"
	"fmt"

	"github.com/wayfarer-ai/itinerary/change"
	"github.com/wayfarer-ai/itinerary/itinerary"
)

// SkeletonPlanner is the first agent in the initial-generation plan
// (spec.md §4.6): it scaffolds every day with one placeholder node so
// Phase-A agents always have an After anchor to insert around. It runs
// alone at the lowest priority and is Required, since nothing downstream
// can sensibly run against an empty day.
type SkeletonPlanner struct {
	BaseAgent
}

// NewSkeletonPlanner builds the skeleton agent, enabled by default.
func NewSkeletonPlanner() *SkeletonPlanner {
	return &SkeletonPlanner{
		BaseAgent: NewBaseAgent("skeleton_planner", []TaskTag{TaskInitialGeneration}, 0, nil, true, true),
	}
}

// Execute inserts one freetime placeholder node into every day that has
// none yet. It never calls the LLM: the scaffold is purely structural,
// grounded on the Change Engine's own Allocate-then-insert idiom used
// throughout change/ops.go.
func (a *SkeletonPlanner) Execute(_ context.Context, rc *RunContext) (*Patch, error) {
	cs := &change.ChangeSet{Scope: change.ScopeTrip}

	for _, day := range rc.Itinerary.Days {
		if len(day.Nodes) > 0 {
			continue
		}
		title := fmt.Sprintf("Day %d", day.DayNumber)
		nodeType := itinerary.NodeFreetime
		cs.Ops = append(cs.Ops, change.Op{
			Op:  change.OpInsert,
			Day: intPtr(day.DayNumber),
			Node: &change.NodeInput{
				Title: &title,
				Type:  &nodeType,
			},
		})
	}

	if len(cs.Ops) == 0 {
		return &Patch{}, nil
	}
	return &Patch{ChangeSet: cs}, nil
}

func intPtr(v int) *int { return &v }
