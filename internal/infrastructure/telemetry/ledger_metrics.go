package telemetry

import (
	"context"
	"time"

	"github.com/erp/shopledger/internal/domain/recovery"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/shopspring/decimal"
)

const ledgerMeterName = "shopledger/ledger"

// LedgerMetrics records sale and recovery activity.
type LedgerMetrics struct {
	salesCreated      *Counter
	salesAmount       *AmountCounter
	recoveries        *Counter
	recoveredAmount   *AmountCounter
	statusChanges     *Counter
	cancelledAmount   *AmountCounter
	lockWait          *Histogram
	optimisticRetries *Counter
}

// NewLedgerMetrics registers the ledger instruments on mp.
func NewLedgerMetrics(mp *MeterProvider) (*LedgerMetrics, error) {
	meter := mp.Meter(ledgerMeterName)
	m := &LedgerMetrics{}
	var err error

	if m.salesCreated, err = NewCounter(meter, "ledger_sales_created_total", "Sales recorded", "{sale}"); err != nil {
		return nil, err
	}
	if m.salesAmount, err = NewAmountCounter(meter, "ledger_sales_amount_total", "Grand total of recorded sales", "{currency}"); err != nil {
		return nil, err
	}
	if m.recoveries, err = NewCounter(meter, "ledger_recoveries_total", "Recoveries recorded", "{recovery}"); err != nil {
		return nil, err
	}
	if m.recoveredAmount, err = NewAmountCounter(meter, "ledger_recovered_amount_total", "Amount recovered against sales", "{currency}"); err != nil {
		return nil, err
	}
	if m.statusChanges, err = NewCounter(meter, "ledger_recovery_status_changes_total", "Recovery status transitions", "{change}"); err != nil {
		return nil, err
	}
	if m.cancelledAmount, err = NewAmountCounter(meter, "ledger_cancelled_amount_total", "Confirmed amount returned to outstanding by cancellation", "{currency}"); err != nil {
		return nil, err
	}
	if m.lockWait, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_sale_lock_wait_seconds",
		Description: "Time spent waiting for the per-sale lock",
		Unit:        "s",
		Boundaries:  LockWaitBuckets,
	}); err != nil {
		return nil, err
	}
	if m.optimisticRetries, err = NewCounter(meter, "ledger_optimistic_retries_total", "Sale writes retried after a version conflict", "{retry}"); err != nil {
		return nil, err
	}
	return m, nil
}

// SaleCreated counts a new sale.
func (m *LedgerMetrics) SaleCreated(ctx context.Context, grandTotal decimal.Decimal) {
	m.salesCreated.Inc(ctx)
	m.salesAmount.Add(ctx, grandTotal.InexactFloat64())
}

// RecoveryRecorded counts a recovery by payment method.
func (m *LedgerMetrics) RecoveryRecorded(ctx context.Context, method sales.PaymentMethod, amount decimal.Decimal) {
	attr := AttrPaymentMethod.String(string(method))
	m.recoveries.Inc(ctx, attr)
	m.recoveredAmount.Add(ctx, amount.InexactFloat64(), attr)
}

// RecoveryStatusChanged counts a transition. Cancelling a confirmed recovery
// also adds its amount to the cancelled total.
func (m *LedgerMetrics) RecoveryStatusChanged(ctx context.Context, from, to recovery.Status, amount decimal.Decimal) {
	m.statusChanges.Inc(ctx, AttrFromStatus.String(string(from)), AttrToStatus.String(string(to)))
	if from == recovery.StatusConfirmed && to == recovery.StatusCancelled {
		m.cancelledAmount.Add(ctx, amount.InexactFloat64())
	}
}

// LockWaited records how long a writer waited for a sale lock.
func (m *LedgerMetrics) LockWaited(ctx context.Context, wait time.Duration) {
	m.lockWait.RecordDuration(ctx, wait)
}

// OptimisticRetry counts a version conflict retry.
func (m *LedgerMetrics) OptimisticRetry(ctx context.Context, operation string) {
	m.optimisticRetries.Inc(ctx, AttrOperation.String(operation))
}
