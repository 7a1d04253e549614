// Package eventbus implements the Progress Event Bus (spec.md §4.7):
// best-effort, non-blocking fan-out of per-itinerary lifecycle events to
// zero or more subscribers. Publish never blocks on a slow subscriber; a
// subscriber whose backlog fills is dropped rather than allowed to stall
// the publisher, the same non-blocking-select-with-default idiom the
// teacher uses around its own cancellation checks.
package eventbus

import (
	"sync"

	"github.com/wayfarer-ai/itinerary/core"
)

// Status is the lifecycle state an event reports.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Event is one lifecycle notification (spec.md §4.7's exact shape).
type Event struct {
	AgentID     string  `json:"agentId"`
	AgentKind   string  `json:"agentKind"`
	Status      Status  `json:"status"`
	Progress    int     `json:"progress,omitempty"` // 0-100
	Message     string  `json:"message,omitempty"`
	ItineraryID string  `json:"itineraryId"`
	Timestamp   int64   `json:"timestamp"`
}

// Subscription is a handle returned by Subscribe. Events arrive on C.
// Callers must eventually call Close to release the backlog channel and
// deregister from the bus.
type Subscription struct {
	C <-chan Event

	bus         *Bus
	itineraryID string
	ch          chan Event
	id          uint64
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.itineraryID, s.id)
}

// Bus is a process-local, per-itinerary pub/sub of lifecycle events. It
// satisfies change.EventSink structurally via Publish.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[uint64]chan Event // itineraryID -> subscriberID -> channel
	nextID      uint64
	backlog     int
	logger      core.Logger
	dropped     core.MetricsRegistry
}

// Option configures a Bus.
type Option func(*Bus)

// WithBacklog sets the per-subscriber buffered channel size. Default 32.
func WithBacklog(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.backlog = n
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(b *Bus) {
		if logger == nil {
			return
		}
		if aware, ok := logger.(core.ComponentAwareLogger); ok {
			b.logger = aware.WithComponent("eventbus")
			return
		}
		b.logger = logger
	}
}

func WithMetrics(m core.MetricsRegistry) Option {
	return func(b *Bus) {
		if m != nil {
			b.dropped = m
		}
	}
}

// New creates an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		subscribers: make(map[string]map[uint64]chan Event),
		backlog:     32,
		logger:      &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers for events on a single itinerary. Unregistration
// happens on Close, or implicitly the next time Publish observes the
// channel is full (spec.md §4.7: "a slow subscriber may be dropped").
func (b *Bus) Subscribe(itineraryID string) *Subscription {
	ch := make(chan Event, b.backlog)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subscribers[itineraryID] == nil {
		b.subscribers[itineraryID] = make(map[uint64]chan Event)
	}
	b.subscribers[itineraryID][id] = ch
	b.mu.Unlock()

	return &Subscription{C: ch, bus: b, itineraryID: itineraryID, ch: ch, id: id}
}

func (b *Bus) unsubscribe(itineraryID string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.subscribers[itineraryID]
	if !ok {
		return
	}
	if ch, ok := subs[id]; ok {
		delete(subs, id)
		close(ch)
	}
	if len(subs) == 0 {
		delete(b.subscribers, itineraryID)
	}
}

// PublishEvent fans ev out to every subscriber of ev.ItineraryID. It never
// blocks: a full subscriber channel is treated as a slow consumer and
// dropped outright rather than stalling the publishing goroutine.
func (b *Bus) PublishEvent(ev Event) {
	b.mu.RLock()
	subs := b.subscribers[ev.ItineraryID]
	targets := make(map[uint64]chan Event, len(subs))
	for id, ch := range subs {
		targets[id] = ch
	}
	b.mu.RUnlock()

	var slow []uint64
	for id, ch := range targets {
		select {
		case ch <- ev:
		default:
			slow = append(slow, id)
		}
	}

	for _, id := range slow {
		b.logger.Warn("dropping slow event bus subscriber", map[string]interface{}{
			"itineraryId": ev.ItineraryID,
			"subscriberId": id,
		})
		if b.dropped != nil {
			b.dropped.Counter("eventbus_subscriber_dropped_total", "itinerary", ev.ItineraryID)
		}
		b.unsubscribe(ev.ItineraryID, id)
	}
}

// Publish adapts the narrower change.EventSink contract (itineraryID, kind,
// payload) onto PublishEvent, so the Change Engine's commit/undo
// notifications flow onto the same bus agents publish lifecycle events to.
func (b *Bus) Publish(itineraryID string, kind string, payload map[string]interface{}) {
	ev := Event{ItineraryID: itineraryID, AgentKind: kind, Status: StatusSucceeded}
	if ts, ok := payload["timestamp"].(int64); ok {
		ev.Timestamp = ts
	}
	if msg, ok := payload["message"].(string); ok {
		ev.Message = msg
	}
	b.PublishEvent(ev)
}

// SubscriberCount reports how many subscribers are currently registered
// for itineraryID, for tests and diagnostics.
func (b *Bus) SubscriberCount(itineraryID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[itineraryID])
}
