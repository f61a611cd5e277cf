package ledger

import (
	"context"

	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"go.uber.org/zap"
)

// PriceHistoryHandler forwards the prices of a new sale to the price history sink.
// It runs after the sale is committed; a failure is reported and never undoes the sale.
type PriceHistoryHandler struct {
	sink   sales.PriceHistorySink
	logger *zap.Logger
}

// NewPriceHistoryHandler creates a new PriceHistoryHandler
func NewPriceHistoryHandler(sink sales.PriceHistorySink, logger *zap.Logger) *PriceHistoryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceHistoryHandler{sink: sink, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *PriceHistoryHandler) EventTypes() []string {
	return []string{sales.EventTypeSaleCreated}
}

// Handle records one price history entry per line item
func (h *PriceHistoryHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	created, ok := event.(*sales.SaleCreatedEvent)
	if !ok {
		return nil
	}
	entries := sales.PriceHistoryFromEvent(created)
	if len(entries) == 0 {
		return nil
	}
	if err := h.sink.Record(ctx, entries); err != nil {
		warning := shared.NewIntegrityWarning("price history not recorded for sale "+created.SaleNumber, err)
		h.logger.Warn(warning.Error(),
			zap.String("sale_id", created.SaleID.String()),
			zap.Int("entries", len(entries)),
			zap.Error(err),
		)
	}
	return nil
}
