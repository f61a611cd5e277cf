package main

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/erp/shopledger/internal/application/ledger"
	"github.com/erp/shopledger/internal/domain/partner"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/lock"
	"github.com/erp/shopledger/internal/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Write ledger columns for sales recorded before recovery tracking",
	Long: `Backfill computes total recovered, outstanding amount, recovery status and
due date for every legacy sale. Running it again only touches sales that are
still legacy.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := migrationService(e).MigrateExistingSales(cmd.Context())
		if err != nil {
			return err
		}
		e.log.Info("Backfill finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("migrated", result.Migrated),
			zap.Int("skipped", result.Skipped),
			zap.Int("failed", result.Failed),
		)
		if result.Failed > 0 {
			return fmt.Errorf("%d sales failed to migrate", result.Failed)
		}
		return nil
	},
}

var refreshOverdueCmd = &cobra.Command{
	Use:   "refresh-overdue",
	Short: "Persist the overdue status of sales past their due date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := migrationService(e).RefreshOverdueStatuses(cmd.Context())
		if err != nil {
			return err
		}
		e.log.Info("Overdue refresh finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("updated", result.Updated),
			zap.Int("failed", result.Failed),
		)
		return nil
	},
}

var seedOpts struct {
	customers int
	suppliers int
	sales     int
	legacy    int
	seed      uint64
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill a development database with fake customers and sales",
	Long: `Seed creates customers, suppliers and sales through the ledger services,
plus legacy sales written without ledger columns so backfill has work to do.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()
		if e.cfg.App.Env == "production" {
			return fmt.Errorf("refusing to seed a production database")
		}
		return seed(cmd.Context(), e)
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedOpts.customers, "customers", 20, "Number of customers")
	seedCmd.Flags().IntVar(&seedOpts.suppliers, "suppliers", 3, "Number of suppliers")
	seedCmd.Flags().IntVar(&seedOpts.sales, "sales", 200, "Number of sales recorded through the ledger")
	seedCmd.Flags().IntVar(&seedOpts.legacy, "legacy", 50, "Number of legacy sales without ledger columns")
	seedCmd.Flags().Uint64Var(&seedOpts.seed, "seed", 0, "Random seed, 0 for a random one")

	rootCmd.AddCommand(backfillCmd, refreshOverdueCmd, seedCmd)
}

func ledgerOptions(e *env) ledger.Options {
	return ledger.Options{
		MaxRetries: e.cfg.Ledger.MaxRetries,
		BatchSize:  e.cfg.Ledger.MigrationBatchSize,
		Logger:     e.log,
	}
}

// migrationService runs with an in-process lock; the API should be stopped or
// use the redis lock backend while a backfill runs against shared data
func migrationService(e *env) *ledger.MigrationService {
	scope := persistence.NewGormTransactionScope(e.db.DB, e.cfg.Ledger.SaleNumberPrefix)
	return ledger.NewMigrationService(scope, persistence.NewGormSaleRepository(e.db.DB),
		lock.NewKeyedMutex(e.cfg.Ledger.LockWait), ledgerOptions(e))
}

func seed(ctx context.Context, e *env) error {
	faker := gofakeit.New(seedOpts.seed)
	db := e.db.DB

	customerRepo := persistence.NewGormCustomerRepository(db)
	supplierRepo := persistence.NewGormSupplierRepository(db)
	saleRepo := persistence.NewGormSaleRepository(db)
	scope := persistence.NewGormTransactionScope(db, e.cfg.Ledger.SaleNumberPrefix)
	saleService := ledger.NewSaleService(scope, saleRepo, customerRepo, supplierRepo,
		lock.NewKeyedMutex(e.cfg.Ledger.LockWait), ledgerOptions(e))

	customers := make([]*partner.Customer, 0, seedOpts.customers)
	for i := 0; i < seedOpts.customers; i++ {
		c, err := partner.NewCustomer(faker.Company(), faker.Phone(), faker.Email())
		if err != nil {
			return err
		}
		if err := customerRepo.Save(ctx, c); err != nil {
			return fmt.Errorf("save customer: %w", err)
		}
		customers = append(customers, c)
	}
	suppliers := make([]*partner.Supplier, 0, seedOpts.suppliers)
	for i := 0; i < seedOpts.suppliers; i++ {
		s, err := partner.NewSupplier(faker.Company(), faker.Phone(), faker.Email())
		if err != nil {
			return err
		}
		if err := supplierRepo.Save(ctx, s); err != nil {
			return fmt.Errorf("save supplier: %w", err)
		}
		suppliers = append(suppliers, s)
	}
	if len(customers) == 0 || len(suppliers) == 0 {
		return fmt.Errorf("seed needs at least one customer and one supplier")
	}

	now := time.Now().UTC()
	methods := []string{string(sales.PaymentCash), string(sales.PaymentCard), string(sales.PaymentBankTransfer)}
	for i := 0; i < seedOpts.sales; i++ {
		items := fakeItems(faker)
		grand := decimal.Zero
		for _, it := range items {
			grand = grand.Add(it.Total)
		}
		// A third pay in full, the rest leave a balance
		paid := grand
		if faker.IntRange(0, 2) > 0 {
			paid = grand.Mul(decimal.NewFromFloat(faker.Float64Range(0, 0.9))).Round(2)
		}
		saleDate := faker.DateRange(now.AddDate(0, 0, -90), now)

		_, err := saleService.CreateSale(ctx, ledger.CreateSaleRequest{
			CustomerID:    customers[faker.IntRange(0, len(customers)-1)].ID,
			SupplierID:    suppliers[faker.IntRange(0, len(suppliers)-1)].ID,
			Items:         items,
			AmountPaid:    paid,
			PaymentMethod: methods[faker.IntRange(0, len(methods)-1)],
			SaleDate:      &saleDate,
		})
		if err != nil {
			return fmt.Errorf("create sale %d: %w", i, err)
		}
	}

	for i := 0; i < seedOpts.legacy; i++ {
		grand := decimal.NewFromFloat(faker.Price(50, 2000)).Round(2)
		paid := grand
		status := sales.PaymentStatusPaid
		switch faker.IntRange(0, 2) {
		case 1:
			paid = grand.Div(decimal.NewFromInt(2)).Round(2)
			status = sales.PaymentStatusPartial
		case 2:
			paid = decimal.Zero
			status = sales.PaymentStatusPending
		}
		legacy := &sales.Sale{
			BaseAggregateRoot: shared.NewBaseAggregateRoot(),
			SaleNumber:        "LEG-" + uuid.NewString()[:8],
			CustomerID:        customers[faker.IntRange(0, len(customers)-1)].ID,
			SupplierID:        suppliers[faker.IntRange(0, len(suppliers)-1)].ID,
			Items:             []sales.SaleItem{},
			SaleDate:          faker.DateRange(now.AddDate(-1, 0, 0), now.AddDate(0, 0, -10)),
			PaymentMethod:     sales.PaymentCash,
			Subtotal:          grand,
			DiscountType:      sales.DiscountNone,
			GrandTotal:        grand,
			AmountPaid:        paid,
			PaymentStatus:     status,
		}
		if err := saleRepo.Create(ctx, legacy); err != nil {
			return fmt.Errorf("create legacy sale %d: %w", i, err)
		}
	}

	e.log.Info("Seed finished",
		zap.Int("customers", len(customers)),
		zap.Int("suppliers", len(suppliers)),
		zap.Int("sales", seedOpts.sales),
		zap.Int("legacy_sales", seedOpts.legacy),
	)
	return nil
}

func fakeItems(faker *gofakeit.Faker) []ledger.SaleItemRequest {
	n := faker.IntRange(1, 4)
	items := make([]ledger.SaleItemRequest, n)
	for i := range items {
		qty := decimal.NewFromInt(int64(faker.IntRange(1, 10)))
		unit := decimal.NewFromFloat(faker.Price(5, 500)).Round(2)
		items[i] = ledger.SaleItemRequest{
			ProductID:   uuid.New(),
			ProductName: faker.ProductName(),
			Quantity:    qty,
			UnitPrice:   unit,
			ActualPrice: unit,
			Total:       unit.Mul(qty),
		}
	}
	return items
}
