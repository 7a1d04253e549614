// Package change implements the Change Engine (spec.md §4.5): it applies an
// ordered ChangeSet to a loaded itinerary, producing a new version and a
// diff, with strict id resolution and no silent fallback (spec.md §9).
package change

import "github.com/wayfarer-ai/itinerary/itinerary"

// Scope narrows what a ChangeSet is conceptually about. It is advisory: an
// op's own id determines what it touches, regardless of Scope (spec.md §9's
// resolved reading of the scope/day ambiguity).
type Scope string

const (
	ScopeDay  Scope = "day"
	ScopeTrip Scope = "trip"
)

// OpKind tags which variant an Op is.
type OpKind string

const (
	OpInsert  OpKind = "insert"
	OpReplace OpKind = "replace"
	OpDelete  OpKind = "delete"
	OpMove    OpKind = "move"
	OpUpdate  OpKind = "update"
)

// Preferences are ChangeSet-wide behavior flags (spec.md §4.5).
type Preferences struct {
	// UserFirst prefers user-supplied fields over agent-supplied ones on
	// conflict. The Change Engine itself has no notion of provenance
	// beyond what a caller encodes in an op's fields; this flag is
	// surfaced for callers (e.g. the EditorAgent merging a user edit over
	// an agent-authored field) that need to decide which side wins before
	// building the ChangeSet.
	UserFirst bool `json:"userFirst"`
	// RespectLocks, when true, fails any op touching a locked node with Locked.
	RespectLocks bool `json:"respectLocks"`
	// PreserveTiming asks insert to shift a neighboring node's start time
	// forward when the new node's end time would overlap it.
	PreserveTiming bool `json:"preserveTiming"`
}

// NodeInput is a partial patch to a Node. Every field is a pointer (or a
// nil-able slice) so the engine can tell "not supplied" from "supplied as
// zero value" — required for replace's "overwrite provided fields" contract.
type NodeInput struct {
	Title      *string              `json:"title,omitempty"`
	Type       *itinerary.NodeType  `json:"type,omitempty"`
	StartTime  *string              `json:"startTime,omitempty"`
	EndTime    *string              `json:"endTime,omitempty"`
	Location   *itinerary.Location  `json:"location,omitempty"`
	Cost       *float64             `json:"cost,omitempty"`
	Labels     []string             `json:"labels,omitempty"`
	Tips       []string             `json:"tips,omitempty"`
	Links      []string             `json:"links,omitempty"`
	BookingRef *string              `json:"bookingRef,omitempty"`
	Locked     *bool                `json:"locked,omitempty"`
	Status     *itinerary.NodeStatus `json:"status,omitempty"`
}

// UpdateFields is the decoded shape of an `update` op's Fields map,
// covering the metadata the spec names (labels, locked, bookingRef,
// status, cost, links). Labels support either a full replacement or an
// additive/subtractive delta, since spec.md §8's S6 scenario describes an
// additive label change ("labels+=\"Booked\""). Links and tips support
// full replacement only.
type UpdateFields struct {
	Labels       []string              `json:"labels,omitempty"`
	AddLabels    []string              `json:"addLabels,omitempty"`
	RemoveLabels []string              `json:"removeLabels,omitempty"`
	Locked       *bool                 `json:"locked,omitempty"`
	BookingRef   *string               `json:"bookingRef,omitempty"`
	Status       *itinerary.NodeStatus `json:"status,omitempty"`
	Cost         *float64              `json:"cost,omitempty"`
	Links        []string              `json:"links,omitempty"`
	Tips         []string              `json:"tips,omitempty"`
}

// Op is a single tagged-union operation (spec.md §6's ChangeSet wire shape).
// Only the fields relevant to Op's own Op kind are consulted.
type Op struct {
	Op OpKind `json:"op"`

	// insert
	After *string    `json:"after,omitempty"`
	Day   *int       `json:"day,omitempty"`
	Node  *NodeInput `json:"node,omitempty"`

	// replace, delete, move, update
	ID string `json:"id,omitempty"`

	// replace reuses Node above.

	// move
	ToDay    int  `json:"toDay,omitempty"`
	Position *int `json:"position,omitempty"`

	// update
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// ChangeSet is an ordered list of operations plus preferences, applied
// atomically-per-op to an itinerary (spec.md §6).
type ChangeSet struct {
	Scope       Scope       `json:"scope"`
	Day         *int        `json:"day,omitempty"`
	Preferences Preferences `json:"preferences"`
	Ops         []Op        `json:"ops"`

	// IdempotencyKey, when set, lets a replayed commit with the same key
	// against the same itinerary short-circuit to the previously recorded
	// result instead of re-mutating (SPEC_FULL.md supplemented feature).
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}
