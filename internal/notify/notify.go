// Package notify carries change events from the storage layer to
// interested subscribers. Delivery is fire and forget: publishing never
// blocks and a failing subscriber never affects the mutation that
// triggered the event.
package notify

import (
	"log"
	"sync"
)

// Event is one change notification. Name is table-qualified
// ("todos:create", "todos:update", "todos:delete"); Tenant identifies the
// instance the change happened in.
type Event struct {
	Name    string      `json:"name"`
	Tenant  string      `json:"tenant"`
	Payload interface{} `json:"payload,omitempty"`
}

// Bus fans events out to subscriber channels.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make([]chan<- Event, 0)}
}

// Subscribe adds a subscriber channel. Subscribers should buffer; a full
// channel causes events to be dropped for that subscriber.
func (b *Bus) Subscribe(ch chan<- Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = append(b.subscribers, ch)
}

// Publish delivers event to every subscriber that can receive it
// immediately. A panic below (a closed subscriber channel) is contained
// here so the publishing mutation is never disturbed.
func (b *Bus) Publish(event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event publish recovered: %v", r)
		}
	}()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
