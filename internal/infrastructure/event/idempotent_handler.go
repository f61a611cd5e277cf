package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/erp/shopledger/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultEventTTL is how long a handled event id is remembered
const DefaultEventTTL = 24 * time.Hour

// IdempotencyMetrics tracks idempotency-related statistics
type IdempotencyMetrics struct {
	EventsProcessed atomic.Int64
	EventsDuplicate atomic.Int64
	EventsFailed    atomic.Int64
}

// Stats returns a snapshot of the current metrics
func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: m.EventsProcessed.Load(),
		EventsDuplicate: m.EventsDuplicate.Load(),
		EventsFailed:    m.EventsFailed.Load(),
	}
}

// IdempotencyStats is a snapshot of idempotency metrics
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// IdempotentHandler wraps an EventHandler so a redelivered event is handled once.
// Queue delivery is at-least-once; the wrapper turns it into effectively-once.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	ttl     time.Duration
	prefix  string
	logger  *zap.Logger
	metrics *IdempotencyMetrics
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithEventTTL sets how long handled event ids are kept
func WithEventTTL(ttl time.Duration) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.ttl = ttl
	}
}

// WithIdempotencyMetrics sets the metrics collector
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.metrics = metrics
	}
}

// NewIdempotentHandler creates a new idempotent handler wrapper.
// name separates the keys of different handlers sharing one store.
func NewIdempotentHandler(
	name string,
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		ttl:     DefaultEventTTL,
		prefix:  "event:" + name + ":",
		logger:  logger,
		metrics: &IdempotencyMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the event types this handler is interested in
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle processes the event unless its id was already handled
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	eventID := event.EventID().String()
	key := h.prefix + eventID

	isNew, err := h.store.MarkProcessed(ctx, key, h.ttl)
	if err != nil {
		h.logger.Warn("failed to check idempotency, processing anyway",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	} else if !isNew {
		h.metrics.EventsDuplicate.Add(1)
		h.logger.Debug("duplicate event detected, skipping",
			zap.String("event_id", eventID),
			zap.String("event_type", event.EventType()),
		)
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.metrics.EventsFailed.Add(1)
		// Forget the claim so the queue's retry is not mistaken for a duplicate
		if relErr := h.store.Release(ctx, key); relErr != nil {
			h.logger.Warn("failed to release idempotency key",
				zap.String("event_id", eventID),
				zap.Error(relErr),
			)
		}
		return err
	}

	h.metrics.EventsProcessed.Add(1)
	return nil
}

// GetMetrics returns the metrics for this handler
func (h *IdempotentHandler) GetMetrics() *IdempotencyMetrics {
	return h.metrics
}

// Ensure IdempotentHandler implements EventHandler
var _ shared.EventHandler = (*IdempotentHandler)(nil)
