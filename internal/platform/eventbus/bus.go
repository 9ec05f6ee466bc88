// Package eventbus is the process-wide hub for domain events. Components
// subscribe at startup; emitters publish after their state mutation commits.
// Delivery is in-process and synchronous, so handlers must hand off slow work
// (network delivery, retries) to their own queues.
package eventbus

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Wildcard subscribes a handler to every event type.
const Wildcard = "*"

// Event is a domain event. PaymentID is the zero UUID for booking-only
// events and vice versa. From/To carry the prior and new state for
// transition events.
type Event struct {
	Type      string    `json:"type"`
	BookingID uuid.UUID `json:"booking_id,omitempty"`
	PaymentID uuid.UUID `json:"payment_id,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	At        time.Time `json:"at"`
}

// Handler receives published events.
type Handler func(Event)

type subscription struct {
	id      int
	handler Handler
}

// Bus fans events out to registered subscribers.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription // event type -> subscribers
	closed bool
}

func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for the given event type (or Wildcard) and
// returns a function that removes the subscription.
func (b *Bus) Subscribe(eventType string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[eventType]
		for i, s := range subs {
			if s.id == id {
				b.subs[eventType] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to subscribers of its type and to wildcard
// subscribers. Publishing on a closed bus is a no-op.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.subs[evt.Type])+len(b.subs[Wildcard]))
	for _, s := range b.subs[evt.Type] {
		handlers = append(handlers, s.handler)
	}
	for _, s := range b.subs[Wildcard] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

// Close stops delivery and drops all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string][]subscription)
}
