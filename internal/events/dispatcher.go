package events

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Handler handles a published event.
type Handler func(context.Context, Event) error

// Subscription is a registered handler; Unsubscribe removes it.
type Subscription struct {
	id         uint64
	eventType  Type
	dispatcher *Dispatcher
	once       sync.Once
}

// Unsubscribe detaches the handler. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.dispatcher.remove(s.eventType, s.id)
	})
}

type entry struct {
	id      uint64
	handler Handler
}

// allTypes is the key for handlers interested in every event.
const allTypes Type = "*"

// Dispatcher delivers events synchronously to subscribers, in subscription order.
// There is no queueing: late subscribers never see earlier events.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[Type][]entry
	nextID    atomic.Uint64
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher instance.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		listeners: make(map[Type][]entry),
		logger:    logger,
	}
}

// Subscribe registers a handler for one event type.
func (d *Dispatcher) Subscribe(eventType Type, handler Handler) *Subscription {
	id := d.nextID.Add(1)

	d.mu.Lock()
	d.listeners[eventType] = append(d.listeners[eventType], entry{id: id, handler: handler})
	d.mu.Unlock()

	return &Subscription{id: id, eventType: eventType, dispatcher: d}
}

// SubscribeAll registers a handler for every event type.
func (d *Dispatcher) SubscribeAll(handler Handler) *Subscription {
	return d.Subscribe(allTypes, handler)
}

// Publish invokes handlers for the event. Handler errors and panics are logged and
// never stop delivery to the remaining handlers.
func (d *Dispatcher) Publish(ctx context.Context, event Event) {
	d.mu.RLock()
	handlers := make([]entry, 0, len(d.listeners[event.Type])+len(d.listeners[allTypes]))
	handlers = append(handlers, d.listeners[event.Type]...)
	handlers = append(handlers, d.listeners[allTypes]...)
	d.mu.RUnlock()

	for _, h := range handlers {
		d.deliver(ctx, h, event)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, h entry, event Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event handler panicked",
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r),
			)
		}
	}()
	if err := h.handler(ctx, event); err != nil {
		d.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) remove(eventType Type, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	entries := d.listeners[eventType]
	for i, e := range entries {
		if e.id == id {
			d.listeners[eventType] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(d.listeners[eventType]) == 0 {
		delete(d.listeners, eventType)
	}
}
