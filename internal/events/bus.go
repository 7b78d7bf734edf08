package events

import (
	"sync"
	"time"
)

// Handler is invoked for each event delivered to a subscriber.
type Handler func(event *Event)

// Bus is an in-process publish/subscribe hub. Delivery is synchronous on the
// emitting goroutine; handlers that may block (e.g. SSE writers) must buffer
// on their own channel and drop rather than stall the publisher.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for an event type. There is no unsubscribe;
// subscribers live for the process lifetime, matching the single-operator
// deployment model.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit delivers an event to all handlers subscribed to its type.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := b.handlers[eventType]
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}
