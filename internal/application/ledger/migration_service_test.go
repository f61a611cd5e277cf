package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/erp/shopledger/internal/application/ledger"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateExistingSales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	paid := f.insertLegacySale(t, "100", "100", sales.PaymentStatusPaid, now.AddDate(0, 0, -3))
	partial := f.insertLegacySale(t, "100", "40", sales.PaymentStatusPartial, now.AddDate(0, 0, -3))
	stale := f.insertLegacySale(t, "80", "0", sales.PaymentStatusPending, now.AddDate(0, 0, -45))
	// Stored as paid but the totals say otherwise
	conflicting := f.insertLegacySale(t, "100", "40", sales.PaymentStatusPaid, now.AddDate(0, 0, -3))
	current := f.createSale(t, "50", "10")

	before := map[uuid.UUID]*ledger.SaleResponse{}
	for _, id := range []uuid.UUID{paid, partial, stale, conflicting} {
		before[id] = f.sale(t, id)
		assert.Equal(t, "legacy", before[id].LedgerKind)
	}

	result, err := f.migration.MigrateExistingSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.MigrationResult{Scanned: 4, Migrated: 4}, *result)

	expect := map[uuid.UUID]struct {
		outstanding string
		status      sales.RecoveryStatus
	}{
		paid:        {"0", sales.RecoveryStatusFullyPaid},
		partial:     {"60", sales.RecoveryStatusPartiallyPaid},
		stale:       {"80", sales.RecoveryStatusOverdue},
		conflicting: {"60", sales.RecoveryStatusPartiallyPaid},
	}
	for id, want := range expect {
		var row models.SaleModel
		require.NoError(t, f.db.First(&row, "id = ?", id).Error)
		require.NotNil(t, row.RecoveryStatus)
		assert.Equal(t, string(want.status), *row.RecoveryStatus)
		assert.True(t, row.OutstandingAmount.Valid)
		assert.True(t, row.OutstandingAmount.Decimal.Equal(dec(want.outstanding)), id)
		assert.True(t, row.TotalRecovered.Valid)
		assert.True(t, row.TotalRecovered.Decimal.IsZero())
		require.NotNil(t, row.DueDate)
		assert.True(t, row.DueDate.Equal(row.SaleDate.Add(sales.GracePeriod)))
		assert.Equal(t, 2, row.Version)

		after := f.sale(t, id)
		assert.Equal(t, "current", after.LedgerKind)
		assert.Equal(t, before[id].Bucket, after.Bucket, "migration must not move a sale between views")
		assert.True(t, before[id].OutstandingAmount.Equal(after.OutstandingAmount))
	}

	untouched := f.sale(t, current.ID)
	assert.Equal(t, current.Version, untouched.Version)

	t.Run("second run changes nothing", func(t *testing.T) {
		again, err := f.migration.MigrateExistingSales(ctx)
		require.NoError(t, err)
		assert.Equal(t, ledger.MigrationResult{}, *again)

		var row models.SaleModel
		require.NoError(t, f.db.First(&row, "id = ?", partial).Error)
		assert.Equal(t, 2, row.Version)
	})
}

func TestMigrateExistingSales_KeepsLegacyRecoveredAmount(t *testing.T) {
	f := newFixture(t)
	id := f.insertLegacySale(t, "200", "50", sales.PaymentStatusPartial, f.clock.Now())
	require.NoError(t, f.db.Model(&models.SaleModel{}).Where("id = ?", id).
		Update("total_recovered", dec("30")).Error)

	_, err := f.migration.MigrateExistingSales(context.Background())
	require.NoError(t, err)

	got := f.sale(t, id)
	assert.True(t, got.TotalRecovered.Equal(dec("30")))
	assert.True(t, got.OutstandingAmount.Equal(dec("120")))
}

func TestMigrateExistingSales_Cancelled(t *testing.T) {
	f := newFixture(t)
	f.insertLegacySale(t, "100", "0", sales.PaymentStatusPending, f.clock.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.migration.MigrateExistingSales(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshOverdueStatuses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	open := f.createSale(t, "100", "20")
	settled := f.createSale(t, "100", "100")

	result, err := f.migration.RefreshOverdueStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated)

	f.clock.Advance(31 * 24 * time.Hour)

	// Views already report the sale overdue before the flag is stored
	assert.Equal(t, string(sales.BucketOverdue), f.sale(t, open.ID).Bucket)

	result, err = f.migration.RefreshOverdueStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.RefreshResult{Scanned: 1, Updated: 1}, *result)

	var row models.SaleModel
	require.NoError(t, f.db.First(&row, "id = ?", open.ID).Error)
	assert.Equal(t, string(sales.RecoveryStatusOverdue), *row.RecoveryStatus)

	var settledRow models.SaleModel
	require.NoError(t, f.db.First(&settledRow, "id = ?", settled.ID).Error)
	assert.Equal(t, string(sales.RecoveryStatusFullyPaid), *settledRow.RecoveryStatus)

	again, err := f.migration.RefreshOverdueStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.RefreshResult{}, *again)

	t.Run("payment on an overdue sale keeps it overdue until settled", func(t *testing.T) {
		partial, err := f.recover(open.ID, "30")
		require.NoError(t, err)
		assert.Equal(t, string(sales.RecoveryStatusOverdue), partial.Sale.RecoveryStatus)

		full, err := f.recover(open.ID, "50")
		require.NoError(t, err)
		assert.Equal(t, string(sales.RecoveryStatusFullyPaid), full.Sale.RecoveryStatus)
		assert.Equal(t, string(sales.BucketSettled), full.Sale.Bucket)
	})
}
