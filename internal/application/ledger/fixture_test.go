package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/erp/shopledger/internal/application/ledger"
	"github.com/erp/shopledger/internal/domain/partner"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/cache"
	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/erp/shopledger/internal/infrastructure/idgen"
	"github.com/erp/shopledger/internal/infrastructure/lock"
	"github.com/erp/shopledger/internal/infrastructure/persistence"
	"github.com/erp/shopledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

// testClock is a settable clock shared by every service of a fixture
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	db          *gorm.DB
	clock       *testClock
	idempotency *cache.InMemoryIdempotencyStore
	sales       *ledger.SaleService
	recoveries  *ledger.RecoveryService
	migration   *ledger.MigrationService
	queries     *ledger.QueryService
	customer    *partner.Customer
	supplier    *partner.Supplier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	database, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         fmt.Sprintf("file:%s?mode=memory&cache=private", uuid.NewString()),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.AutoMigrate())
	return newFixtureOn(t, database.DB)
}

// newFixtureOn wires every ledger service over an already migrated db
func newFixtureOn(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()

	clock := &testClock{t: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)}
	opts := ledger.Options{
		MaxRetries: 3,
		BatchSize:  2,
		Logger:     zaptest.NewLogger(t),
		Now:        clock.Now,
	}

	customers := persistence.NewGormCustomerRepository(db)
	suppliers := persistence.NewGormSupplierRepository(db)
	saleRepo := persistence.NewGormSaleRepository(db)
	recoveryRepo := persistence.NewGormRecoveryRepository(db)
	scope := persistence.NewGormTransactionScope(db, "SL")
	locker := lock.NewKeyedMutex(5 * time.Second)
	receipts, err := idgen.NewReceiptGenerator(1, "")
	require.NoError(t, err)

	store := cache.NewInMemoryIdempotencyStore(time.Hour)
	t.Cleanup(func() { _ = store.Close() })

	recoveries := ledger.NewRecoveryService(scope, saleRepo, recoveryRepo, customers, receipts, locker, opts)
	recoveries.SetIdempotencyStore(store)

	f := &fixture{
		db:          db,
		clock:       clock,
		idempotency: store,
		sales:       ledger.NewSaleService(scope, saleRepo, customers, suppliers, locker, opts),
		recoveries:  recoveries,
		migration:   ledger.NewMigrationService(scope, saleRepo, locker, opts),
		queries:     ledger.NewQueryService(saleRepo, recoveryRepo, customers, opts),
	}

	f.customer, err = partner.NewCustomer("Amina Traders", "0300-1234567", "amina@example.com")
	require.NoError(t, err)
	require.NoError(t, customers.Save(context.Background(), f.customer))
	f.supplier, err = partner.NewSupplier("Valley Mills", "", "")
	require.NoError(t, err)
	require.NoError(t, suppliers.Save(context.Background(), f.supplier))
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// createSale records a one-line sale of grand with paid collected at the till
func (f *fixture) createSale(t *testing.T, grand, paid string) *ledger.SaleResponse {
	t.Helper()
	resp, err := f.sales.CreateSale(context.Background(), f.saleRequest(grand, paid))
	require.NoError(t, err)
	return resp
}

func (f *fixture) saleRequest(grand, paid string) ledger.CreateSaleRequest {
	return ledger.CreateSaleRequest{
		CustomerID: f.customer.ID,
		SupplierID: f.supplier.ID,
		Items: []ledger.SaleItemRequest{{
			ProductID:   uuid.New(),
			ProductName: "Basmati Rice 5kg",
			Quantity:    dec("1"),
			UnitPrice:   dec(grand),
			ActualPrice: dec(grand),
			Total:       dec(grand),
		}},
		AmountPaid:    dec(paid),
		PaymentMethod: string(sales.PaymentCash),
	}
}

func (f *fixture) recover(saleID uuid.UUID, amount string) (*ledger.RecoveryResult, error) {
	return f.recoveries.AddRecovery(context.Background(), ledger.AddRecoveryRequest{
		CustomerID:    f.customer.ID,
		SaleID:        saleID,
		Amount:        dec(amount),
		PaymentMethod: string(sales.PaymentCash),
		ReceivedBy:    "staff-7",
	})
}

func (f *fixture) setStatus(recoveryID uuid.UUID, status string) (*ledger.RecoveryResult, error) {
	return f.recoveries.UpdateRecoveryStatus(context.Background(), recoveryID, ledger.UpdateRecoveryStatusRequest{
		Status: status,
	})
}

func (f *fixture) sale(t *testing.T, id uuid.UUID) *ledger.SaleResponse {
	t.Helper()
	resp, err := f.sales.GetSale(context.Background(), id)
	require.NoError(t, err)
	return resp
}

// insertLegacySale writes a sale the way it was stored before recovery tracking:
// every ledger column NULL, only the coarse payment status set.
func (f *fixture) insertLegacySale(t *testing.T, grand, paid string, status sales.PaymentStatus, saleDate time.Time) uuid.UUID {
	t.Helper()
	s := &sales.Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SaleNumber:        "INV-" + uuid.NewString()[:8],
		CustomerID:        f.customer.ID,
		SupplierID:        f.supplier.ID,
		Items:             []sales.SaleItem{},
		SaleDate:          saleDate,
		PaymentMethod:     sales.PaymentCash,
		Subtotal:          dec(grand),
		DiscountType:      sales.DiscountNone,
		GrandTotal:        dec(grand),
		AmountPaid:        dec(paid),
		PaymentStatus:     status,
	}
	require.NoError(t, f.db.Create(models.SaleModelFromDomain(s)).Error)
	return s.ID
}
