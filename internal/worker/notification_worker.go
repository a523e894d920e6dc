package worker

import (
	"sync"

	"github.com/spec-kit/storefront-session/internal/events"
	"github.com/spec-kit/storefront-session/internal/service"
)

// NotificationWorker feeds every session event to the notification service.
type NotificationWorker struct {
	dispatcher    *events.Dispatcher
	notifications *service.NotificationService

	mu  sync.Mutex
	sub *events.Subscription
}

// NewNotificationWorker wires the worker.
func NewNotificationWorker(dispatcher *events.Dispatcher, notifications *service.NotificationService) *NotificationWorker {
	return &NotificationWorker{dispatcher: dispatcher, notifications: notifications}
}

// Start subscribes to the dispatcher. Calling it twice is a no-op.
func (w *NotificationWorker) Start() {
	if w == nil || w.dispatcher == nil || w.notifications == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil {
		return
	}
	w.sub = w.dispatcher.SubscribeAll(w.notifications.Handle)
}

// Stop unsubscribes; events published afterwards are not delivered.
func (w *NotificationWorker) Stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sub != nil {
		w.sub.Unsubscribe()
		w.sub = nil
	}
}
