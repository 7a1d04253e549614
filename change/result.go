package change

import "github.com/wayfarer-ai/itinerary/itinerary"

// OpOutcome is the per-operation status reported alongside a commit
// (spec.md §4.5: "the caller receives one status per operation").
type OpOutcome struct {
	Index     int    `json:"index"`
	Op        OpKind `json:"op"`
	Succeeded bool   `json:"succeeded"`
	// Kind is the error kind (NodeNotFound, Locked, InvalidShape,
	// DayOutOfRange, IdFormatConflict) when Succeeded is false.
	Kind string `json:"kind,omitempty"`
	// Message follows spec.md §7's user-visible message contract: names
	// the failing operation and lists the valid ids in scope.
	Message string `json:"message,omitempty"`
	// ResultID is the node id the op produced or acted on: the allocated
	// id for insert/move's destination, the target id for replace/delete/
	// update.
	ResultID string `json:"resultId,omitempty"`
}

// Diff summarizes what changed (spec.md §4.5).
type Diff struct {
	Added          []string `json:"added"`
	Removed        []string `json:"removed"`
	Updated        []string `json:"updated"`
	PreviewVersion int      `json:"previewVersion,omitempty"`
	FromVersion    int      `json:"fromVersion"`
	ToVersion      int      `json:"toVersion"`
}

// State names the terminal state of a commit attempt (spec.md §4.5's state
// machine) or, for Propose, the "proposed" pseudo-state.
type State string

const (
	StateCommitted  State = "committed"
	StateNoChange   State = "no_change"
	StateLoadFailed State = "load_failed"
	StateProposed   State = "proposed"
)

// Result is returned by Propose, Apply, and Undo.
type Result struct {
	State     State       `json:"state"`
	Diff      Diff        `json:"diff"`
	Ops       []OpOutcome `json:"ops"`
	Itinerary *itinerary.Itinerary `json:"-"`
}

func (d *Diff) isEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}
