// Package events is an in-process pub/sub bus for catalog change
// notifications. Admin mutations publish on it; the server purges result
// caches and streams the events to SSE subscribers.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	EventModelCreated    EventType = "model_created"
	EventModelUpdated    EventType = "model_updated"
	EventModelDeleted    EventType = "model_deleted"
	EventModelsBulk      EventType = "models_bulk_updated"
	EventMetricsUpdated  EventType = "metrics_updated"
	EventCatalogSeeded   EventType = "catalog_seeded"
	EventAPIKeyIssued    EventType = "apikey_issued"
	EventAPIKeyRevoked   EventType = "apikey_revoked"
	EventCachePurged     EventType = "cache_purged"
	EventBreakerStateSet EventType = "breaker_state"
)

// Types lists every event type the server publishes.
var Types = []EventType{
	EventModelCreated, EventModelUpdated, EventModelDeleted, EventModelsBulk,
	EventMetricsUpdated, EventCatalogSeeded, EventAPIKeyIssued, EventAPIKeyRevoked,
	EventCachePurged, EventBreakerStateSet,
}

// Known reports whether t is one of Types.
func (t EventType) Known() bool {
	for _, k := range Types {
		if k == t {
			return true
		}
	}
	return false
}

// ChangesCatalog reports whether events of this type can alter scored
// results.
func (t EventType) ChangesCatalog() bool {
	switch t {
	case EventModelCreated, EventModelUpdated, EventModelDeleted,
		EventModelsBulk, EventMetricsUpdated, EventCatalogSeeded:
		return true
	}
	return false
}

// Event is a single notification published on the bus.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Slug      string   `json:"slug,omitempty"`
	Slugs     []string `json:"slugs,omitempty"`
	Count     int      `json:"count,omitempty"`
	KeyID     string   `json:"key_id,omitempty"`
	RequestID string   `json:"request_id,omitempty"`

	// Breaker fields (populated for breaker_state events).
	OldState string `json:"old_state,omitempty"`
	NewState string `json:"new_state,omitempty"`
}

// JSON returns the event as a JSON byte slice.
func (e *Event) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Subscriber receives events on a channel.
type Subscriber struct {
	C    chan Event
	done chan struct{}
}

// Bus is an in-memory pub/sub event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[*Subscriber]struct{}),
	}
}

// Subscribe creates a new subscriber with a buffered channel.
func (b *Bus) Subscribe(bufSize int) *Subscriber {
	if bufSize <= 0 {
		bufSize = 64
	}
	s := &Subscriber{
		C:    make(chan Event, bufSize),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.subscribers[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes a subscriber. Calling it twice is a no-op.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	_, ok := b.subscribers[s]
	delete(b.subscribers, s)
	b.mu.Unlock()
	if ok {
		close(s.done)
	}
}

// Publish sends an event to all subscribers without blocking. Slow
// subscribers miss events.
func (b *Bus) Publish(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subscribers {
		select {
		case s.C <- e:
		default:
		}
	}
}

// Listen subscribes and calls fn for every event until ctx is cancelled. It
// blocks; run it in its own goroutine.
func (b *Bus) Listen(ctx context.Context, fn func(Event)) {
	sub := b.Subscribe(256)
	defer b.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-sub.C:
			fn(e)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
