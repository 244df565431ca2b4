package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// A subscriber receives events published after it subscribes.
func TestBrokerPublishDeliversToSubscriber(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Event{Type: EventBlockReceived, Message: "block arrived"})

	select {
	case ev := <-sub:
		require.Equal(t, EventBlockReceived, ev.Type)
		require.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the event")
	}
}

// Multiple subscribers each get their own copy of the same event.
func TestBrokerFanOutToMultipleSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)
	require.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{Type: EventMergeCompleted})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			require.Equal(t, EventMergeCompleted, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("a subscriber never received the event")
		}
	}
}

// Unsubscribe drops a subscriber from the fan-out and closes its channel.
func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	require.Equal(t, 0, b.SubscriberCount())

	_, ok := <-sub
	require.False(t, ok)
}

// A full subscriber buffer drops events rather than blocking the bus for
// everyone else.
func TestBrokerDropsOnFullSubscriberBuffer(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	for i := 0; i < 100; i++ {
		b.Publish(&Event{Type: EventGCCompleted})
	}

	// The bus itself should still accept new events promptly, whether or
	// not the slow subscriber keeps up.
	done := make(chan struct{})
	go func() {
		b.Publish(&Event{Type: EventGCCompleted})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}
