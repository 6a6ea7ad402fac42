package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/events"
)

// EventHandler consumes domain events routed by type.
type EventHandler interface {
	HandleEvent(ctx context.Context, event events.Event) error
}

// NotificationWorker feeds domain events from the dispatcher to a handler.
// Handler errors go back to the dispatcher, which logs them.
type NotificationWorker struct {
	dispatcher events.Dispatcher
	handler    EventHandler
	eventTypes []events.EventType
	logger     *zap.Logger
}

// NewNotificationWorker builds a worker for the given event types.
func NewNotificationWorker(dispatcher events.Dispatcher, handler EventHandler, eventTypes []events.EventType, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		dispatcher: dispatcher,
		handler:    handler,
		eventTypes: eventTypes,
		logger:     logger.Named("notifications"),
	}
}

// Start subscribes the handler and returns how many event types it receives.
func (w *NotificationWorker) Start() int {
	if w.dispatcher == nil || w.handler == nil {
		return 0
	}
	for _, eventType := range w.eventTypes {
		w.dispatcher.Subscribe(eventType, w.deliver)
	}
	w.logger.Info("notification worker subscribed", zap.Int("event_types", len(w.eventTypes)))
	return len(w.eventTypes)
}

func (w *NotificationWorker) deliver(ctx context.Context, event events.Event) error {
	if err := w.handler.HandleEvent(ctx, event); err != nil {
		return fmt.Errorf("notify %s: %w", event.Type, err)
	}
	w.logger.Debug("event delivered",
		zap.String("event_type", string(event.Type)),
		zap.String("organization_id", event.OrganizationID))
	return nil
}
