package itinerary

import (
	"fmt"

	"github.com/wayfarer-ai/itinerary/core"
)

// Migrate rewrites legacy node ids to the canonical day{N}_node{M} scheme,
// per spec.md §4.2. For each day in document order, the k-th node (1-based,
// in its stored order) is assigned day{dayNumber}_node{k}; visit order is
// preserved.
//
// Migrate is idempotent: if every node is already canonical and already
// numbered exactly as a fresh migration would number it, the input is
// returned unchanged (no clone, no version bump) so that
// Migrate(Migrate(x)) == Migrate(x) holds bit-for-bit, including version.
//
// If anything goes wrong partway through (a panic while rewriting ids),
// the rewrite is abandoned and the original document is
// returned unchanged — graceful degradation per spec.md §4.2 — rather
// than persisting a half-migrated document.
func Migrate(it *Itinerary, nowMillis int64) (migrated *Itinerary, changed bool) {
	if it == nil {
		return it, false
	}
	if !needsMigration(it) {
		return it, false
	}

	out, err := rewriteIDs(it)
	if err != nil {
		// Graceful degradation: return the original, unmodified.
		return it, false
	}

	out.Touch(nowMillis)
	return out, true
}

func needsMigration(it *Itinerary) bool {
	for _, d := range it.Days {
		for k, n := range d.Nodes {
			want := fmt.Sprintf("day%d_node%d", d.DayNumber, k+1)
			if n.ID != want {
				return true
			}
		}
	}
	return false
}

func rewriteIDs(it *Itinerary) (out *Itinerary, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = core.NewFrameworkError("itinerary.Migrate", "MigrationFailed", core.ErrMigrationFailed)
		}
	}()

	out = it.Clone()
	for _, d := range out.Days {
		for k, n := range d.Nodes {
			n.ID = fmt.Sprintf("day%d_node%d", d.DayNumber, k+1)
		}
	}
	return out, nil
}
