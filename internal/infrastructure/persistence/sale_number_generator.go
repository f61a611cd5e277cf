package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const saleNumberDayLayout = "20060102"

// GormSaleNumberGenerator issues sale numbers of the form PREFIX-YYYYMMDD-NNNNN
// from a per-day counter row. The counter is bumped with a single upsert so two
// callers can never read the same value.
type GormSaleNumberGenerator struct {
	db     *gorm.DB
	prefix string
}

// NewGormSaleNumberGenerator creates a new GormSaleNumberGenerator
func NewGormSaleNumberGenerator(db *gorm.DB, prefix string) *GormSaleNumberGenerator {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "SL"
	}
	return &GormSaleNumberGenerator{db: db, prefix: prefix}
}

// Next returns the next sale number for the UTC day of at
func (g *GormSaleNumberGenerator) Next(ctx context.Context, at time.Time) (string, error) {
	at = at.UTC()
	counter := models.SaleCounterModel{
		Day:       at.Format(saleNumberDayLayout),
		Value:     1,
		UpdatedAt: time.Now().UTC(),
	}
	err := g.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "day"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"value":      gorm.Expr("sale_counters.value + 1"),
					"updated_at": counter.UpdatedAt,
				}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "value"}}},
		).
		Create(&counter).Error
	if err != nil {
		return "", fmt.Errorf("allocate sale number: %w", err)
	}
	return FormatSaleNumber(g.prefix, at, counter.Value), nil
}

// FormatSaleNumber renders a sale number
func FormatSaleNumber(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%05d", prefix, at.UTC().Format(saleNumberDayLayout), seq)
}

var _ sales.NumberGenerator = (*GormSaleNumberGenerator)(nil)
