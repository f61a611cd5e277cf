package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormPriceHistorySink_Record(t *testing.T) {
	db := newTestDB(t)
	sink := NewGormPriceHistorySink(db)
	ctx := context.Background()

	sale := newSale(t, uuid.New(), "120", "120", time.Now())
	sale.Items = append(sale.Items, sales.SaleItem{
		ProductID: uuid.New(), ProductName: "Sugar", Quantity: dec("2"),
		UnitPrice: dec("10"), Total: dec("20"),
	})
	entries := sales.PriceHistoryFromEvent(sales.NewSaleCreatedEvent(sale))
	require.Len(t, entries, 2)

	require.NoError(t, sink.Record(ctx, entries))
	// redelivery of the same sale does not duplicate rows
	require.NoError(t, sink.Record(ctx, entries))
	require.NoError(t, sink.Record(ctx, nil))

	var rows []models.PriceHistoryModel
	require.NoError(t, db.Order("line_no").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].LineNo)
	assert.True(t, dec("120").Equal(rows[0].Price))
	assert.True(t, dec("10").Equal(rows[1].Price), "falls back to unit price")
}
