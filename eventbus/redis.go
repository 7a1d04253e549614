package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/wayfarer-ai/itinerary/core"
)

// RedisBus fans events out across processes via Redis Pub/Sub, for
// deployments where the Orchestrator and a subscriber (e.g. the SSE
// transport) run in different processes. The publish/subscribe shape is
// grounded directly on orchestration/hitl_command_store.go's
// RedisCommandStore: one channel per scope, a pubsub.Channel() drain
// goroutine per subscription, context-cancellation-driven cleanup.
type RedisBus struct {
	client    *redis.Client
	keyPrefix string
	logger    core.Logger

	mu   sync.Mutex
	subs map[string]context.CancelFunc // subscription id -> cancel
	next uint64
}

// NewRedisBus creates a RedisBus. keyPrefix scopes the pub/sub channel
// names (e.g. "wayfarer").
func NewRedisBus(client *redis.Client, keyPrefix string, opts ...Option) *RedisBus {
	b := &RedisBus{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    &core.NoOpLogger{},
		subs:      make(map[string]context.CancelFunc),
	}
	cfg := New(opts...)
	b.logger = cfg.logger
	return b
}

func (b *RedisBus) channel(itineraryID string) string {
	return fmt.Sprintf("%s:events:%s", b.keyPrefix, itineraryID)
}

// PublishEvent publishes ev to every process subscribed to its itinerary.
func (b *RedisBus) PublishEvent(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return core.NewFrameworkError("eventbus.PublishEvent", "InvalidShape", err)
	}
	if err := b.client.Publish(ctx, b.channel(ev.ItineraryID), data).Err(); err != nil {
		return core.NewFrameworkError("eventbus.PublishEvent", "PersistFailed", err)
	}
	return nil
}

// Publish adapts change.EventSink's narrower contract onto PublishEvent,
// using context.Background() since the Change Engine's commit path does
// not thread a context through to the sink.
func (b *RedisBus) Publish(itineraryID string, kind string, payload map[string]interface{}) {
	ev := Event{ItineraryID: itineraryID, AgentKind: kind, Status: StatusSucceeded}
	if msg, ok := payload["message"].(string); ok {
		ev.Message = msg
	}
	if err := b.PublishEvent(context.Background(), ev); err != nil {
		b.logger.Warn("eventbus: failed to publish change notification", map[string]interface{}{
			"itineraryId": itineraryID,
			"error":       err.Error(),
		})
	}
}

// SubscribeCtx subscribes to a single itinerary's channel, returning a
// receive-only channel of decoded events and a cancel function. The
// returned channel is closed once cancel is called or ctx is done.
func (b *RedisBus) SubscribeCtx(ctx context.Context, itineraryID string) (<-chan Event, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := b.client.Subscribe(subCtx, b.channel(itineraryID))
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		return nil, nil, core.NewFrameworkError("eventbus.SubscribeCtx", "LoadFailed", err)
	}

	b.mu.Lock()
	id := fmt.Sprintf("%s-%d", itineraryID, b.next)
	b.next++
	b.subs[id] = cancel
	b.mu.Unlock()

	out := make(chan Event, 32)
	go func() {
		defer func() {
			_ = pubsub.Close()
			close(out)
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		}()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("eventbus: failed to decode event", map[string]interface{}{"error": err.Error()})
					continue
				}
				select {
				case out <- ev:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return out, cancel, nil
}

// Close cancels every live subscription.
func (b *RedisBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, cancel := range b.subs {
		cancel()
		delete(b.subs, id)
	}
}
