package sales

import "github.com/shopspring/decimal"

// DiscountType selects how DiscountValue is interpreted
type DiscountType string

const (
	DiscountNone       DiscountType = "none"
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// IsValid reports whether the discount type is known
func (d DiscountType) IsValid() bool {
	switch d {
	case DiscountNone, DiscountPercentage, DiscountFixed:
		return true
	}
	return false
}

// PaymentMethod is how money changed hands
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentCheque       PaymentMethod = "cheque"
	PaymentMixed        PaymentMethod = "mixed"
)

// AllPaymentMethods lists every accepted payment method
var AllPaymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentBankTransfer, PaymentCheque, PaymentMixed}

// IsValid reports whether the payment method is known
func (p PaymentMethod) IsValid() bool {
	for _, m := range AllPaymentMethods {
		if m == p {
			return true
		}
	}
	return false
}

// PaymentStatus is the coarse status kept for older clients
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPending PaymentStatus = "pending"
)

// RecoveryStatus is the fine-grained collection status.
// The empty value marks a sale written before recovery tracking existed.
type RecoveryStatus string

const (
	RecoveryStatusNone          RecoveryStatus = ""
	RecoveryStatusUnpaid        RecoveryStatus = "unpaid"
	RecoveryStatusPartiallyPaid RecoveryStatus = "partially_paid"
	RecoveryStatusFullyPaid     RecoveryStatus = "fully_paid"
	RecoveryStatusOverdue       RecoveryStatus = "overdue"
)

// IsValid reports whether the status is one of the tracked values
func (s RecoveryStatus) IsValid() bool {
	switch s {
	case RecoveryStatusUnpaid, RecoveryStatusPartiallyPaid, RecoveryStatusFullyPaid, RecoveryStatusOverdue:
		return true
	}
	return false
}

// Coarse maps a recovery status onto the legacy payment status
func (s RecoveryStatus) Coarse() PaymentStatus {
	switch s {
	case RecoveryStatusFullyPaid:
		return PaymentStatusPaid
	case RecoveryStatusPartiallyPaid:
		return PaymentStatusPartial
	default:
		return PaymentStatusPending
	}
}

// recoveryStatusFromPayment maps a legacy payment status onto a recovery status
func recoveryStatusFromPayment(p PaymentStatus) (RecoveryStatus, bool) {
	switch p {
	case PaymentStatusPaid:
		return RecoveryStatusFullyPaid, true
	case PaymentStatusPartial:
		return RecoveryStatusPartiallyPaid, true
	case PaymentStatusPending:
		return RecoveryStatusUnpaid, true
	}
	return RecoveryStatusNone, false
}

// DeriveStatus computes the payment and recovery status from the balance.
// collected is everything received so far: amount paid at sale time plus confirmed recoveries.
func DeriveStatus(outstanding, collected decimal.Decimal) (PaymentStatus, RecoveryStatus) {
	switch {
	case !outstanding.IsPositive() && collected.IsPositive():
		return PaymentStatusPaid, RecoveryStatusFullyPaid
	case outstanding.IsPositive() && collected.IsPositive():
		return PaymentStatusPartial, RecoveryStatusPartiallyPaid
	default:
		return PaymentStatusPending, RecoveryStatusUnpaid
	}
}

// Outstanding is the authoritative balance formula: max(0, grand - paid - recovered)
func Outstanding(grandTotal, amountPaid, totalRecovered decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, grandTotal.Sub(amountPaid).Sub(totalRecovered))
}
