package persistence

import (
	"fmt"
	"testing"
	"time"

	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a migrated in-memory SQLite database.
// A single connection keeps every query on the same in-memory schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=private", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(AllModels()...))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newSale(t *testing.T, customerID uuid.UUID, grand, paid string, saleDate time.Time) *sales.Sale {
	t.Helper()
	s, err := sales.NewSale(sales.NewSaleInput{
		SaleNumber: "SL-" + uuid.NewString()[:8],
		CustomerID: customerID,
		SupplierID: uuid.New(),
		Items: []sales.SaleItem{{
			ProductID:   uuid.New(),
			ProductName: "Rice 5kg",
			Quantity:    dec("1"),
			UnitPrice:   dec(grand),
			ActualPrice: dec(grand),
			Total:       dec(grand),
		}},
		AmountPaid:    dec(paid),
		PaymentMethod: sales.PaymentCash,
		SaleDate:      saleDate,
	})
	require.NoError(t, err)
	return s
}

// insertLegacySale writes a row the way the pre-ledger schema did: ledger columns NULL
func insertLegacySale(t *testing.T, db *gorm.DB, customerID uuid.UUID, grand, paid string, status sales.PaymentStatus, saleDate time.Time) uuid.UUID {
	t.Helper()
	s := &sales.Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SaleNumber:        "INV-" + uuid.NewString()[:8],
		CustomerID:        customerID,
		SupplierID:        uuid.New(),
		Items:             []sales.SaleItem{},
		SaleDate:          saleDate,
		PaymentMethod:     sales.PaymentCash,
		Subtotal:          dec(grand),
		DiscountType:      sales.DiscountNone,
		GrandTotal:        dec(grand),
		AmountPaid:        dec(paid),
		PaymentStatus:     status,
	}
	require.NoError(t, db.Create(models.SaleModelFromDomain(s)).Error)
	return s.ID
}
