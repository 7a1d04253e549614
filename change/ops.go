package change

import (
	"fmt"

	"github.com/wayfarer-ai/itinerary/itinerary"
)

// applyInsert allocates a new id in the target day and inserts the new node
// immediately after `after`, or at the end if after is nil (spec.md §4.5).
func (e *Engine) applyInsert(it *itinerary.Itinerary, prefs Preferences, op Op) (string, *opError) {
	dayNumber, derr := resolveInsertDay(op)
	if derr != nil {
		return "", derr
	}
	day := it.DayByNumber(dayNumber)
	if day == nil {
		return "", &opError{kind: "DayOutOfRange", message: fmt.Sprintf("day %d does not exist in this itinerary", dayNumber)}
	}
	if op.Node == nil {
		return "", &opError{kind: "InvalidShape", message: "insert requires a node payload"}
	}

	insertAt := len(day.Nodes)
	if op.After != nil {
		idx := indexOfNode(day, *op.After)
		if idx < 0 {
			return "", nodeNotFound(it, *op.After)
		}
		insertAt = idx + 1
	}

	id := itinerary.Allocate(it, dayNumber)
	node := buildNode(op.Node)
	node.ID = id
	if node.Status == "" {
		node.Status = itinerary.NodeStatusPlanned
	}

	day.Nodes = append(day.Nodes, nil)
	copy(day.Nodes[insertAt+1:], day.Nodes[insertAt:])
	day.Nodes[insertAt] = node

	if prefs.PreserveTiming {
		avoidOverlap(day, insertAt)
	}
	return id, nil
}

func resolveInsertDay(op Op) (int, *opError) {
	if op.Day != nil {
		return *op.Day, nil
	}
	return 0, &opError{kind: "InvalidShape", message: "insert requires a day"}
}

func indexOfNode(day *itinerary.Day, id string) int {
	for i, n := range day.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// avoidOverlap nudges the node after idx forward if the inserted node's end
// time would otherwise overlap it. This is a best-effort shift along one
// axis, not a full rescheduling pass.
func avoidOverlap(day *itinerary.Day, idx int) {
	if idx+1 >= len(day.Nodes) {
		return
	}
	inserted := day.Nodes[idx]
	next := day.Nodes[idx+1]
	if inserted.EndTime == "" || next.StartTime == "" {
		return
	}
	if next.StartTime < inserted.EndTime {
		next.StartTime = inserted.EndTime
	}
}

func buildNode(in *NodeInput) *itinerary.Node {
	n := &itinerary.Node{}
	applyNodeInput(n, in)
	return n
}

func applyNodeInput(n *itinerary.Node, in *NodeInput) {
	if in == nil {
		return
	}
	if in.Title != nil {
		n.Title = *in.Title
	}
	if in.Type != nil {
		n.Type = *in.Type
	}
	if in.StartTime != nil {
		n.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		n.EndTime = *in.EndTime
	}
	if in.Location != nil {
		n.Location = *in.Location
	}
	if in.Cost != nil {
		n.Cost = *in.Cost
	}
	if in.Labels != nil {
		n.Labels = append([]string(nil), in.Labels...)
	}
	if in.Tips != nil {
		n.Tips = append([]string(nil), in.Tips...)
	}
	if in.Links != nil {
		n.Links = append([]string(nil), in.Links...)
	}
	if in.BookingRef != nil {
		n.BookingRef = *in.BookingRef
	}
	if in.Locked != nil {
		n.Locked = *in.Locked
	}
	if in.Status != nil {
		n.Status = *in.Status
	}
}

// applyReplace finds the node by exact id and overwrites only the provided
// fields; the id is preserved.
func (e *Engine) applyReplace(it *itinerary.Itinerary, prefs Preferences, op Op) (string, *opError) {
	node, _ := it.FindNode(op.ID)
	if node == nil {
		return "", nodeNotFound(it, op.ID)
	}
	if prefs.RespectLocks && node.Locked {
		return "", lockedErr(op.ID)
	}
	applyNodeInput(node, op.Node)
	return op.ID, nil
}

// applyDelete removes the node by exact id. The id is never reused by a
// later insert in the same day (itinerary.Allocate tracks the high-water
// mark independently of which nodes currently exist).
func (e *Engine) applyDelete(it *itinerary.Itinerary, prefs Preferences, op Op) (string, *opError) {
	node, day := it.FindNode(op.ID)
	if node == nil {
		return "", nodeNotFound(it, op.ID)
	}
	if prefs.RespectLocks && node.Locked {
		return "", lockedErr(op.ID)
	}
	idx := indexOfNode(day, op.ID)
	day.Nodes = append(day.Nodes[:idx], day.Nodes[idx+1:]...)
	return op.ID, nil
}

// applyMove is implemented as delete-then-insert, per spec.md §9's resolved
// open question: it removes the node from its current day and re-inserts a
// copy under a freshly allocated id in the destination day. The old id is
// never reclaimed.
func (e *Engine) applyMove(it *itinerary.Itinerary, prefs Preferences, op Op) (oldID, newID string, oerr *opError) {
	node, sourceDay := it.FindNode(op.ID)
	if node == nil {
		return "", "", nodeNotFound(it, op.ID)
	}
	if prefs.RespectLocks && node.Locked {
		return "", "", lockedErr(op.ID)
	}
	destDay := it.DayByNumber(op.ToDay)
	if destDay == nil {
		return "", "", &opError{kind: "DayOutOfRange", message: fmt.Sprintf("destination day %d does not exist in this itinerary", op.ToDay)}
	}

	idx := indexOfNode(sourceDay, op.ID)
	sourceDay.Nodes = append(sourceDay.Nodes[:idx], sourceDay.Nodes[idx+1:]...)

	moved := *node
	moved.ID = itinerary.Allocate(it, op.ToDay)

	insertAt := len(destDay.Nodes)
	if op.Position != nil && *op.Position >= 0 && *op.Position <= len(destDay.Nodes) {
		insertAt = *op.Position
	}
	destDay.Nodes = append(destDay.Nodes, nil)
	copy(destDay.Nodes[insertAt+1:], destDay.Nodes[insertAt:])
	destDay.Nodes[insertAt] = &moved

	return op.ID, moved.ID, nil
}

// applyUpdate applies a field-level diff on node metadata (spec.md §4.5).
func (e *Engine) applyUpdate(it *itinerary.Itinerary, prefs Preferences, op Op) (string, *opError) {
	node, _ := it.FindNode(op.ID)
	if node == nil {
		return "", nodeNotFound(it, op.ID)
	}
	if prefs.RespectLocks && node.Locked {
		return "", lockedErr(op.ID)
	}

	fields, err := decodeUpdateFields(op.Fields)
	if err != nil {
		return "", &opError{kind: "InvalidShape", message: "update: malformed fields: " + err.Error()}
	}

	if fields.Labels != nil {
		node.Labels = append([]string(nil), fields.Labels...)
	}
	node.Labels = applyLabelDelta(node.Labels, fields.AddLabels, fields.RemoveLabels)
	if fields.Locked != nil {
		node.Locked = *fields.Locked
	}
	if fields.BookingRef != nil {
		node.BookingRef = *fields.BookingRef
	}
	if fields.Status != nil {
		node.Status = *fields.Status
	}
	if fields.Cost != nil {
		node.Cost = *fields.Cost
	}
	if fields.Links != nil {
		node.Links = append([]string(nil), fields.Links...)
	}
	if fields.Tips != nil {
		node.Tips = append([]string(nil), fields.Tips...)
	}
	return op.ID, nil
}

func applyLabelDelta(labels, add, remove []string) []string {
	if len(add) == 0 && len(remove) == 0 {
		return labels
	}
	out := append([]string(nil), labels...)
	for _, l := range add {
		if !contains(out, l) {
			out = append(out, l)
		}
	}
	if len(remove) > 0 {
		filtered := out[:0]
		for _, l := range out {
			if !contains(remove, l) {
				filtered = append(filtered, l)
			}
		}
		out = filtered
	}
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
