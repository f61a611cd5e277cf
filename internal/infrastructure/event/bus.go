package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erp/shopledger/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish after Stop
var ErrBusStopped = errors.New("event bus is stopped")

// InMemoryEventBus dispatches events to subscribed handlers in the publisher's goroutine.
// Events are published after the originating transaction has committed, so a failing
// handler is logged and never reaches the caller.
type InMemoryEventBus struct {
	registry       *HandlerRegistry
	logger         *zap.Logger
	handlerTimeout time.Duration

	// publishing holds a read lock for the duration of one Publish; Stop takes the write lock
	publishing sync.RWMutex
	stopped    atomic.Bool
	failures   atomic.Int64
}

// BusOption configures an InMemoryEventBus
type BusOption func(*InMemoryEventBus)

// WithHandlerTimeout bounds how long a single handler may run
func WithHandlerTimeout(d time.Duration) BusOption {
	return func(b *InMemoryEventBus) {
		b.handlerTimeout = d
	}
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers events to every interested handler. Handler errors are logged.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.publishing.RLock()
	defer b.publishing.RUnlock()
	if b.stopped.Load() {
		return ErrBusStopped
	}

	for _, event := range events {
		if err := b.Dispatch(ctx, event); err != nil {
			b.logger.Error("handler failed to process event",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Dispatch delivers one event and returns the joined handler errors.
// The queue worker uses it to decide whether a task should be retried.
func (b *InMemoryEventBus) Dispatch(ctx context.Context, event shared.DomainEvent) error {
	var errs []error
	for _, handler := range b.registry.HandlersFor(event.EventType()) {
		if err := b.dispatchToHandler(ctx, handler, event); err != nil {
			b.failures.Add(1)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler. Without explicit types the handler's own EventTypes are used.
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed",
		zap.Strings("event_types", eventTypes),
	)
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Start starts the event bus
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.stopped.Store(false)
	b.logger.Info("event bus started", zap.Int("handlers", b.registry.Len()))
	return nil
}

// Stop rejects new events and waits for in-flight Publish calls
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.stopped.Store(true)

	done := make(chan struct{})
	go func() {
		// Acquiring the write lock means every in-flight Publish has returned
		b.publishing.Lock()
		b.publishing.Unlock()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped", zap.Int64("handler_failures", b.failures.Load()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Failures returns the number of handler invocations that failed since start
func (b *InMemoryEventBus) Failures() int64 {
	return b.failures.Load()
}

// dispatchToHandler runs one handler, turning a panic into an error
func (b *InMemoryEventBus) dispatchToHandler(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked",
				zap.String("event_type", event.EventType()),
				zap.Any("panic", r),
			)
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()

	if b.handlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.handlerTimeout)
		defer cancel()
	}
	return handler.Handle(ctx, event)
}

// Ensure InMemoryEventBus implements EventBus
var _ shared.EventBus = (*InMemoryEventBus)(nil)
