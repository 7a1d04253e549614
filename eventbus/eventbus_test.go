package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_ReceivesPublishedEvent(t *testing.T) {
	b := New()
	sub := b.Subscribe("trip-1")
	defer sub.Close()

	b.PublishEvent(Event{ItineraryID: "trip-1", AgentKind: "skeleton", Status: StatusRunning, Progress: 10})

	select {
	case ev := <-sub.C:
		assert.Equal(t, "skeleton", ev.AgentKind)
		assert.Equal(t, StatusRunning, ev.Status)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishEvent_DoesNotDeliverToOtherItineraries(t *testing.T) {
	b := New()
	sub := b.Subscribe("trip-1")
	defer sub.Close()

	b.PublishEvent(Event{ItineraryID: "trip-2", AgentKind: "skeleton", Status: StatusRunning})

	select {
	case ev := <-sub.C:
		t.Fatalf("unexpected event delivered: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishEvent_DropsSlowSubscriberWithoutBlocking(t *testing.T) {
	b := New(WithBacklog(1))
	sub := b.Subscribe("trip-1")
	defer sub.Close()

	// Fill the backlog, then publish one more: PublishEvent must return
	// immediately rather than block, and the subscriber gets dropped.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			b.PublishEvent(Event{ItineraryID: "trip-1", AgentKind: "agent", Status: StatusRunning})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishEvent blocked on a slow subscriber")
	}

	assert.Eventually(t, func() bool {
		return b.SubscriberCount("trip-1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestClose_UnregistersAndClosesChannel(t *testing.T) {
	b := New()
	sub := b.Subscribe("trip-1")
	require.Equal(t, 1, b.SubscriberCount("trip-1"))

	sub.Close()
	assert.Equal(t, 0, b.SubscriberCount("trip-1"))

	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed")
}

func TestPublish_AdaptsChangeEngineNotificationShape(t *testing.T) {
	b := New()
	sub := b.Subscribe("trip-1")
	defer sub.Close()

	b.Publish("trip-1", "change.committed", map[string]interface{}{"message": "2 ops applied"})

	select {
	case ev := <-sub.C:
		assert.Equal(t, "change.committed", ev.AgentKind)
		assert.Equal(t, "2 ops applied", ev.Message)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}
