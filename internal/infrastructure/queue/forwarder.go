package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/erp/shopledger/internal/infrastructure/event"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Enqueuer is the part of *asynq.Client the forwarder needs
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// EventForwarder is an event handler that hands events to the queue instead of
// processing them in the request goroutine
type EventForwarder struct {
	enqueuer   Enqueuer
	serializer *event.EventSerializer
	cfg        config.QueueConfig
	eventTypes []string
	logger     *zap.Logger
}

// NewEventForwarder creates a forwarder for the given event types
func NewEventForwarder(enqueuer Enqueuer, serializer *event.EventSerializer, cfg config.QueueConfig, logger *zap.Logger, eventTypes ...string) *EventForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventForwarder{
		enqueuer:   enqueuer,
		serializer: serializer,
		cfg:        cfg,
		eventTypes: eventTypes,
		logger:     logger,
	}
}

// EventTypes returns the forwarded event types
func (f *EventForwarder) EventTypes() []string {
	return f.eventTypes
}

// Handle enqueues the event. A task that already exists for the event is not an error.
func (f *EventForwarder) Handle(ctx context.Context, e shared.DomainEvent) error {
	task, err := NewEventTask(f.serializer, e, f.cfg)
	if err != nil {
		return err
	}
	info, err := f.enqueuer.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		f.logger.Debug("event already queued",
			zap.String("event_id", e.EventID().String()),
			zap.String("event_type", e.EventType()),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", e.EventType(), err)
	}
	f.logger.Debug("event queued",
		zap.String("event_id", e.EventID().String()),
		zap.String("event_type", e.EventType()),
		zap.String("queue", info.Queue),
	)
	return nil
}

var _ shared.EventHandler = (*EventForwarder)(nil)
