// Package events is Strata's internal notification bus: it fans out
// EntityWritten/EntityDeleted notifications to in-process subscribers after
// a write is published to storage. It has no durability of its own —
// subscribers that need to survive a crash replay from the WAL, not from
// here. The graph primitive's cascade policy subscribes to this bus rather
// than being called inline from the session; a subscriber whose buffer is
// full misses the event instead of stalling the fan-out. The auto-embed
// hook does not use the bus: pkg/session calls it inline after the write.
package events

import (
	"sync"
	"time"

	"github.com/strata-db/strata/pkg/value"
)

// Kind discriminates the two notifications the bus carries.
type Kind string

const (
	EntityWritten Kind = "entity.written"
	EntityDeleted Kind = "entity.deleted"
)

// Event describes one committed write or delete, enough for a subscriber
// to re-derive what changed without re-reading storage.
type Event struct {
	Kind      Kind
	Ref       value.EntityRef
	Version   value.Version
	Timestamp time.Time
}

// Subscriber is a channel that receives events.
type Subscriber chan Event

// Broker distributes committed-write notifications to subscribers. Events
// queue on an internal channel (256 deep) and are fanned out by a
// background goroutine. Publish blocks while that queue is full (for
// example before Start has been called) until room frees up or Stop is
// called.
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan Event
	stopCh      chan struct{}
}

// NewBroker returns a Broker that has not yet started its dispatch loop.
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan Event, 256),
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's dispatch loop in a background goroutine.
func (b *Broker) Start() {
	go b.run()
}

// Stop halts dispatch. Queued events not yet delivered are dropped.
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe registers a new subscriber and returns its channel.
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 64)
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes a subscriber's channel.
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish enqueues an event for fan-out. Called after a write is durably
// published to storage, never before — subscribers must only observe
// committed state.
func (b *Broker) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	select {
	case b.eventCh <- evt:
	case <-b.stopCh:
	}
}

func (b *Broker) run() {
	for {
		select {
		case evt := <-b.eventCh:
			b.broadcast(evt)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- evt:
		default:
			// subscriber buffer full: drop rather than stall the bus.
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
