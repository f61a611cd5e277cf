package persistence

import (
	"context"
	"time"

	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPriceHistorySink writes price history rows directly.
// Rows are keyed by (sale_id, line_no) so redelivery of the same sale is a no-op.
type GormPriceHistorySink struct {
	db *gorm.DB
}

// NewGormPriceHistorySink creates a new GormPriceHistorySink
func NewGormPriceHistorySink(db *gorm.DB) *GormPriceHistorySink {
	return &GormPriceHistorySink{db: db}
}

// Record stores entries. Line numbers are assigned per sale in slice order.
func (s *GormPriceHistorySink) Record(ctx context.Context, entries []sales.PriceHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	lines := make(map[uuid.UUID]int)
	rows := make([]models.PriceHistoryModel, 0, len(entries))
	for _, e := range entries {
		lines[e.SaleID]++
		rows = append(rows, models.PriceHistoryModel{
			ID:         uuid.New(),
			CustomerID: e.CustomerID,
			ProductID:  e.ProductID,
			SaleID:     e.SaleID,
			LineNo:     lines[e.SaleID],
			Price:      e.Price,
			Quantity:   e.Quantity,
			RecordedAt: e.RecordedAt.UTC(),
			CreatedAt:  now,
		})
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sale_id"}, {Name: "line_no"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

var _ sales.PriceHistorySink = (*GormPriceHistorySink)(nil)
