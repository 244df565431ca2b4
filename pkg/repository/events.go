package repository

import (
	"sync"
	"time"
)

// EventType identifies what changed inside a repository (§9 background
// workers subscribe to this stream instead of polling the store).
type EventType string

const (
	EventBranchChanged   EventType = "branch.changed"
	EventBlockReceived   EventType = "block.received"
	EventBlockMissing    EventType = "block.missing"
	EventBranchApproved  EventType = "branch.approved"
	EventBranchRejected  EventType = "branch.rejected"
	EventMergeCompleted  EventType = "merge.completed"
	EventGCCompleted     EventType = "gc.completed"
)

// Event is one notification on the repository's event bus.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Message   string
}

// Subscriber is a channel that receives events.
type Subscriber chan *Event

// Broker manages event subscriptions and distribution, adapted from the
// teacher's pkg/events.Broker: a single unbuffered-feeling fan-out point
// so every background worker and every open client/server channel can
// react to local state changes without polling the store.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[Subscriber]bool
	eventCh     chan *Event
	stopCh      chan struct{}
}

// NewBroker creates a new event broker.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop.
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 64)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers.
func (b *Broker) Publish(event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full; drop rather than block the bus.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
