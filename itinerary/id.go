package itinerary

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/wayfarer-ai/itinerary/core"
)

// canonicalID matches the canonical node id form day{N}_node{M}, per
// spec.md §3 invariant 2 and §6 "Node ID format".
var canonicalID = regexp.MustCompile(`^day(\d+)_node(\d+)$`)

// IsCanonical reports whether id matches day\d+_node\d+.
func IsCanonical(id string) bool {
	return canonicalID.MatchString(id)
}

// ExtractDay parses the N component of a canonical id.
func ExtractDay(id string) (int, error) {
	m := canonicalID.FindStringSubmatch(id)
	if m == nil {
		return 0, core.NewFrameworkError("itinerary.ExtractDay", "InvalidIdFormat", core.ErrInvalidIDFormat)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, core.NewFrameworkError("itinerary.ExtractDay", "InvalidIdFormat", core.ErrInvalidIDFormat)
	}
	return n, nil
}

// ExtractSeq parses the M component of a canonical id.
func ExtractSeq(id string) (int, error) {
	m := canonicalID.FindStringSubmatch(id)
	if m == nil {
		return 0, core.NewFrameworkError("itinerary.ExtractSeq", "InvalidIdFormat", core.ErrInvalidIDFormat)
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, core.NewFrameworkError("itinerary.ExtractSeq", "InvalidIdFormat", core.ErrInvalidIDFormat)
	}
	return seq, nil
}

// Allocate returns the next canonical node id for dayNumber. It tracks a
// high-water mark on the Day (NodeSeqHighWater) rather than scanning only
// the nodes currently present, so a deleted node's number — or a node
// that moved away to another day — is never reissued (spec.md §8's
// boundary behaviors: "delete-then-insert never reuses M", "move never
// reclaims the source M"). The day's existing nodes are still scanned
// once, to recover the high-water mark for a day loaded from storage
// before this field existed.
//
// Callers must hold the per-itinerary mutation lock (spec.md §5) before
// calling Allocate; it does not lock internally.
func Allocate(it *Itinerary, dayNumber int) string {
	d := it.DayByNumber(dayNumber)
	if d == nil {
		return fmt.Sprintf("day%d_node1", dayNumber)
	}
	max := d.NodeSeqHighWater
	for _, n := range d.Nodes {
		if ExtractDayNumberMatches(n.ID, dayNumber) {
			if seq, err := ExtractSeq(n.ID); err == nil && seq > max {
				max = seq
			}
		}
	}
	d.NodeSeqHighWater = max + 1
	return fmt.Sprintf("day%d_node%d", dayNumber, d.NodeSeqHighWater)
}

// ExtractDayNumberMatches reports whether id is canonical and its N
// component equals dayNumber. Non-canonical ids never contribute to
// allocation (a legacy id sitting in a day that hasn't been migrated
// yet must not perturb the sequence once migration does run).
func ExtractDayNumberMatches(id string, dayNumber int) bool {
	n, err := ExtractDay(id)
	return err == nil && n == dayNumber
}
