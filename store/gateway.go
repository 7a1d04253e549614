// Package store implements the Document Store Gateway (spec.md §6): an
// opaque key/value contract of (itineraryId -> serialized itinerary +
// version) with optimistic concurrency on put and a bounded revision log
// for undo. Two backends are provided: an in-memory one for tests and
// single-process use, and a Redis-backed one using a Lua script for the
// compare-and-set, grounded on the teacher's
// orchestration/hitl_checkpoint_store.go Lua-script pattern.
package store

import (
	"context"

	"github.com/wayfarer-ai/itinerary/itinerary"
)

// Gateway is the contract the Change Engine and Orchestrator use to load
// and persist itineraries. It never interprets document contents beyond
// the version field needed for optimistic concurrency.
type Gateway interface {
	// Get loads the current document for itineraryID.
	Get(ctx context.Context, itineraryID string) (*itinerary.Itinerary, error)

	// Put persists doc if the store's current version for itineraryID
	// equals expectedVersion; otherwise it returns core.ErrVersionConflict
	// without modifying anything. doc.Version is the new version to store
	// (callers bump it before calling Put). On success, doc is appended
	// to the revision log.
	Put(ctx context.Context, itineraryID string, doc *itinerary.Itinerary, expectedVersion int) error

	// GetAtVersion loads a historical snapshot from the revision log, used
	// by undo. Returns core.ErrNodeNotFound-shaped errors are not
	// applicable here; an absent version returns a LoadFailed-kind error.
	GetAtVersion(ctx context.Context, itineraryID string, version int) (*itinerary.Itinerary, error)
}
