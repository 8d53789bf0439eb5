package event

import (
	"log"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// Handler is a function that handles an event.
type Handler func(Event)

// TypeAll subscribes a handler to every event kind.
const TypeAll Type = "*"

// subscription pairs a handler with the ID used to cancel it.
type subscription struct {
	id      string
	handler Handler
}

// Bus is a synchronous pub-sub event bus keyed by event Type. Handlers run
// on the publisher's goroutine; a slow handler delays the publisher, not
// other subscribers' registration.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]subscription
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]subscription),
	}
}

// Subscribe registers a handler for one event kind and returns the
// subscription ID for Unsubscribe.
func (b *Bus) Subscribe(eventType Type, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})
	return id
}

// SubscribeAll registers a handler for every event kind and returns the
// subscription ID for Unsubscribe.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(TypeAll, handler)
}

// Unsubscribe cancels a subscription by ID. Returns false if the ID is
// unknown or already cancelled.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.handlers {
		for i, sub := range subs {
			if sub.id == id {
				b.handlers[eventType] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Publish dispatches an event synchronously: first to handlers subscribed to
// its kind, then to TypeAll handlers, each group in registration order. A
// panicking handler is recovered and logged so the remaining handlers still
// run. Publishing with no subscribers is a no-op.
func (b *Bus) Publish(event Event) {
	for _, sub := range b.snapshot(event.EventType()) {
		dispatch(sub.handler, event)
	}
}

// snapshot copies the handlers to run for an event kind so Publish never
// holds the mutex while user code executes.
func (b *Bus) snapshot(eventType Type) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	specific := b.handlers[eventType]
	wildcard := b.handlers[TypeAll]

	subs := make([]subscription, 0, len(specific)+len(wildcard))
	subs = append(subs, specific...)
	subs = append(subs, wildcard...)
	return subs
}

// dispatch runs one handler, converting a panic into a logged error with the
// handler's stack.
func dispatch(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: event handler panicked for event %s: %v\n%s",
				event.EventType(), r, debug.Stack())
		}
	}()
	handler(event)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[Type][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.handlers {
		count += len(subs)
	}
	return count
}
