package hub

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theapemachine/agui-go/pkg/agui"
)

func TestPublishReachesEverySubscriber(t *testing.T) {
	h := New()

	one := h.Subscribe("s1")
	two := h.Subscribe("s1")
	other := h.Subscribe("s2")

	h.Publish("s1", agui.NewRunStarted("s1", "run-1"))

	for _, sub := range []*Subscriber{one, two} {
		select {
		case ev := <-sub.Events:
			assert.Equal(t, agui.EventTypeRunStarted, ev.Type)
		default:
			t.Fatalf("subscriber %s missed the event", sub.ID)
		}
	}

	select {
	case <-other.Events:
		t.Fatal("subscriber of another session received the event")
	default:
	}
}

func TestDeliveryPreservesPublishOrder(t *testing.T) {
	h := New()
	sub := h.Subscribe("s1")

	for i := 0; i < 10; i++ {
		h.Publish("s1", agui.NewTextMessageContent("m1", fmt.Sprintf("%d", i)))
	}

	for i := 0; i < 10; i++ {
		ev := <-sub.Events
		assert.Equal(t, fmt.Sprintf("%d", i), ev.Delta)
	}
}

func TestSlowSubscriberLosesOnlyItsOwnEvents(t *testing.T) {
	h := New(WithBufferSize(1))

	slow := h.Subscribe("s1")
	fast := h.Subscribe("s1")

	go func() {
		for range fast.Events {
		}
	}()

	h.Publish("s1", agui.NewTextMessageContent("m1", "first"))
	h.Publish("s1", agui.NewTextMessageContent("m1", "second"))

	// The slow buffer held only the first event; the second was dropped
	// for it alone.
	ev := <-slow.Events
	assert.Equal(t, "first", ev.Delta)

	select {
	case ev := <-slow.Events:
		t.Fatalf("unexpected buffered event: %s", ev.Delta)
	default:
	}

	h.Unsubscribe(slow)
	h.Unsubscribe(fast)
}

func TestTerminalEventEvictsOldestBufferedEvent(t *testing.T) {
	h := New(WithBufferSize(1))
	sub := h.Subscribe("s1")

	h.Publish("s1", agui.NewTextMessageContent("m1", "stale"))
	h.Publish("s1", agui.NewRunFinished("s1", "run-1", "done"))

	// The terminal event displaced the buffered delta.
	ev := <-sub.Events
	assert.Equal(t, agui.EventTypeRunFinished, ev.Type)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := New()
	sub := h.Subscribe("s1")

	h.Unsubscribe(sub)

	_, open := <-sub.Events
	assert.False(t, open)
	assert.Equal(t, 0, h.SubscriberCount("s1"))

	// A second unsubscribe is a no-op, not a double close.
	h.Unsubscribe(sub)
}

func TestCloseSessionDisconnectsAllSubscribers(t *testing.T) {
	h := New()

	one := h.Subscribe("s1")
	two := h.Subscribe("s1")
	require.Equal(t, 2, h.SubscriberCount("s1"))

	h.CloseSession("s1")

	for _, sub := range []*Subscriber{one, two} {
		_, open := <-sub.Events
		assert.False(t, open)
	}

	assert.Equal(t, 0, h.SubscriberCount("s1"))
}

func TestPublishToSessionWithoutSubscribers(t *testing.T) {
	h := New()

	// Fire-and-forget: nothing listens, nothing blocks.
	h.Publish("nobody", agui.NewRunStarted("nobody", "run-1"))
}
