package ledger

import (
	"context"
	"time"

	"github.com/erp/shopledger/internal/domain/recovery"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Locker serializes work on a key across callers.
// Lock blocks until the key is free or ctx ends and returns the release func.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// SaleLockKey is the serialization key of one sale
func SaleLockKey(saleID uuid.UUID) string {
	return "sale:" + saleID.String()
}

// Metrics receives ledger measurements
type Metrics interface {
	SaleCreated(ctx context.Context, grandTotal decimal.Decimal)
	RecoveryRecorded(ctx context.Context, method sales.PaymentMethod, amount decimal.Decimal)
	RecoveryStatusChanged(ctx context.Context, from, to recovery.Status, amount decimal.Decimal)
	LockWaited(ctx context.Context, wait time.Duration)
	OptimisticRetry(ctx context.Context, operation string)
}

type noopMetrics struct{}

func (noopMetrics) SaleCreated(context.Context, decimal.Decimal) {}

func (noopMetrics) RecoveryRecorded(context.Context, sales.PaymentMethod, decimal.Decimal) {}

func (noopMetrics) RecoveryStatusChanged(context.Context, recovery.Status, recovery.Status, decimal.Decimal) {
}

func (noopMetrics) LockWaited(context.Context, time.Duration) {}

func (noopMetrics) OptimisticRetry(context.Context, string) {}
