package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/wayfarer-ai/itinerary/core"
	"github.com/wayfarer-ai/itinerary/itinerary"
)

type record struct {
	current  *itinerary.Itinerary
	revision []*itinerary.Itinerary // index 0 is the oldest retained revision
}

// InMemoryGateway is a process-local Gateway backed by a map, used for tests
// and single-process deployments. It is safe for concurrent use.
type InMemoryGateway struct {
	mu              sync.RWMutex
	records         map[string]*record
	revisionHistory int
}

// NewInMemoryGateway creates a Gateway that retains at most revisionHistory
// past versions per itinerary for undo. A non-positive revisionHistory
// disables undo entirely (GetAtVersion finds only the current version).
func NewInMemoryGateway(revisionHistory int) *InMemoryGateway {
	return &InMemoryGateway{
		records:         make(map[string]*record),
		revisionHistory: revisionHistory,
	}
}

func (g *InMemoryGateway) Get(ctx context.Context, itineraryID string) (*itinerary.Itinerary, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, ok := g.records[itineraryID]
	if !ok {
		return nil, core.NewFrameworkError("store.Get", "LoadFailed", core.ErrLoadFailed)
	}
	return rec.current.Clone(), nil
}

func (g *InMemoryGateway) Put(ctx context.Context, itineraryID string, doc *itinerary.Itinerary, expectedVersion int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[itineraryID]
	if !ok {
		if expectedVersion != 0 {
			return core.NewFrameworkError("store.Put", "VersionConflict", core.ErrVersionConflict)
		}
		rec = &record{}
		g.records[itineraryID] = rec
	} else if rec.current.Version != expectedVersion {
		return &core.FrameworkError{
			Op:      "store.Put",
			Kind:    "VersionConflict",
			ID:      itineraryID,
			Message: fmt.Sprintf("store.Put: version conflict, expected %d but current is %d", expectedVersion, rec.current.Version),
			Err:     core.ErrVersionConflict,
		}
	}

	snapshot := doc.Clone()
	if rec.current != nil && g.revisionHistory > 0 {
		rec.revision = append(rec.revision, rec.current)
		if len(rec.revision) > g.revisionHistory {
			rec.revision = rec.revision[len(rec.revision)-g.revisionHistory:]
		}
	}
	rec.current = snapshot
	return nil
}

func (g *InMemoryGateway) GetAtVersion(ctx context.Context, itineraryID string, version int) (*itinerary.Itinerary, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, ok := g.records[itineraryID]
	if !ok {
		return nil, core.NewFrameworkError("store.GetAtVersion", "LoadFailed", core.ErrLoadFailed)
	}
	if rec.current.Version == version {
		return rec.current.Clone(), nil
	}
	for _, snap := range rec.revision {
		if snap.Version == version {
			return snap.Clone(), nil
		}
	}
	return nil, &core.FrameworkError{
		Op:      "store.GetAtVersion",
		Kind:    "LoadFailed",
		ID:      itineraryID,
		Message: fmt.Sprintf("store.GetAtVersion: version %d not retained in revision history", version),
		Err:     core.ErrLoadFailed,
	}
}
