package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceHistoryEntry records the price a customer paid for a product on one sale
type PriceHistoryEntry struct {
	CustomerID uuid.UUID       `json:"customer_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	SaleID     uuid.UUID       `json:"sale_id"`
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// PriceHistorySink accepts price history entries. Delivery is best effort.
type PriceHistorySink interface {
	Record(ctx context.Context, entries []PriceHistoryEntry) error
}

// PriceHistoryFromEvent builds one entry per line item
func PriceHistoryFromEvent(e *SaleCreatedEvent) []PriceHistoryEntry {
	entries := make([]PriceHistoryEntry, 0, len(e.Items))
	for _, item := range e.Items {
		price := item.ActualPrice
		if price.IsZero() {
			price = item.UnitPrice
		}
		entries = append(entries, PriceHistoryEntry{
			CustomerID: e.CustomerID,
			ProductID:  item.ProductID,
			SaleID:     e.SaleID,
			Price:      price,
			Quantity:   item.Quantity,
			RecordedAt: e.SaleDate,
		})
	}
	return entries
}
