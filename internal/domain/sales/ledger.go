package sales

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerKind tags which generation of record a view was derived from
type LedgerKind int

const (
	// LedgerKindCurrent sales carry the recovery fields natively
	LedgerKindCurrent LedgerKind = iota
	// LedgerKindLegacy sales predate recovery tracking
	LedgerKindLegacy
)

// String returns the kind name
func (k LedgerKind) String() string {
	if k == LedgerKindLegacy {
		return "legacy"
	}
	return "current"
}

// Bucket is the mutually exclusive class a sale falls into for the list views
type Bucket string

const (
	BucketOpen    Bucket = "open"
	BucketOverdue Bucket = "overdue"
	BucketSettled Bucket = "settled"
)

// OutstandingBuckets are the buckets that carry a balance
var OutstandingBuckets = []Bucket{BucketOpen, BucketOverdue}

// LedgerView is the effective ledger state of a sale at a point in time
type LedgerView struct {
	Kind           LedgerKind
	Outstanding    decimal.Decimal
	TotalRecovered decimal.Decimal
	Status         RecoveryStatus
	PaymentStatus  PaymentStatus
	DueDate        time.Time
	Bucket         Bucket
	// StatusConflict is set when a legacy payment status disagrees with the balance.
	StatusConflict bool
}

// Classify derives the effective ledger state of s at now.
// Every list view, summary, and the legacy backfill go through this function.
// persistence.bucketScope mirrors it in SQL.
func Classify(s *Sale, now time.Time) LedgerView {
	view := LedgerView{
		TotalRecovered: s.recovered(),
		DueDate:        s.EffectiveDueDate(),
	}

	if s.IsLegacy() {
		view.Kind = LedgerKindLegacy
		view.Outstanding = Outstanding(s.GrandTotal, s.AmountPaid, view.TotalRecovered)
		derivedPayment, derived := DeriveStatus(view.Outstanding, s.Collected())
		view.Status, view.PaymentStatus = derived, derivedPayment
		if mapped, ok := recoveryStatusFromPayment(s.PaymentStatus); ok {
			if mapped == derived {
				view.PaymentStatus = s.PaymentStatus
			} else {
				view.StatusConflict = true
			}
		}
	} else {
		view.Kind = LedgerKindCurrent
		if s.OutstandingAmount.Valid {
			view.Outstanding = s.OutstandingAmount.Decimal
		} else {
			view.Outstanding = Outstanding(s.GrandTotal, s.AmountPaid, view.TotalRecovered)
		}
		view.Status = s.RecoveryStatus
		view.PaymentStatus = s.PaymentStatus
	}

	switch {
	case !view.Outstanding.IsPositive():
		view.Bucket = BucketSettled
	case now.After(view.DueDate) || view.Status == RecoveryStatusOverdue:
		view.Bucket = BucketOverdue
		view.Status = RecoveryStatusOverdue
	default:
		view.Bucket = BucketOpen
	}
	return view
}
