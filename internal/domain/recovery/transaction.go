package recovery

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeRecovery is the aggregate type name used on events
const AggregateTypeRecovery = "Recovery"

// Status is the lifecycle state of a recovery transaction
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusConfirmed, StatusPending, StatusCancelled:
		return true
	}
	return false
}

// Transaction is one payment received against a sale after the sale itself.
// Amount never changes once recorded; only the status moves.
type Transaction struct {
	shared.BaseAggregateRoot
	ReceiptNumber   string
	SaleID          uuid.UUID
	SaleNumber      string
	CustomerID      uuid.UUID
	CustomerName    string
	Amount          decimal.Decimal
	PaymentMethod   sales.PaymentMethod
	Reference       string
	Notes           string
	ReceivedBy      string
	Status          Status
	RecoveredAt     time.Time
	StatusChangedAt *time.Time
	StatusNotes     string
	IdempotencyKey  string
}

// NewTransactionInput carries the fields of a payment being recorded
type NewTransactionInput struct {
	ReceiptNumber  string
	Sale           *sales.Sale
	CustomerName   string
	Amount         decimal.Decimal
	PaymentMethod  sales.PaymentMethod
	Reference      string
	Notes          string
	ReceivedBy     string
	IdempotencyKey string
	RecoveredAt    time.Time
}

// NewTransaction creates a confirmed recovery transaction
func NewTransaction(in NewTransactionInput) (*Transaction, error) {
	if err := ValidatePayment(in.Amount, in.PaymentMethod, in.ReceivedBy); err != nil {
		return nil, err
	}
	if in.Sale == nil {
		return nil, shared.NewValidationError("SALE_REQUIRED", "Sale is required")
	}
	at := in.RecoveredAt
	if at.IsZero() {
		at = time.Now()
	}
	return &Transaction{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ReceiptNumber:     in.ReceiptNumber,
		SaleID:            in.Sale.ID,
		SaleNumber:        in.Sale.SaleNumber,
		CustomerID:        in.Sale.CustomerID,
		CustomerName:      in.CustomerName,
		Amount:            in.Amount,
		PaymentMethod:     in.PaymentMethod,
		Reference:         strings.TrimSpace(in.Reference),
		Notes:             strings.TrimSpace(in.Notes),
		ReceivedBy:        strings.TrimSpace(in.ReceivedBy),
		Status:            StatusConfirmed,
		RecoveredAt:       at,
		IdempotencyKey:    in.IdempotencyKey,
	}, nil
}

// ValidatePayment checks the fields that do not depend on the sale balance
func ValidatePayment(amount decimal.Decimal, method sales.PaymentMethod, receivedBy string) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Recovery amount must be greater than zero")
	}
	if !method.IsValid() {
		return shared.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Unknown payment method %q", method))
	}
	if strings.TrimSpace(receivedBy) == "" {
		return shared.NewValidationError("RECEIVED_BY_REQUIRED", "Received by is required")
	}
	return nil
}

// Counts reports whether the transaction contributes to the sale's total recovered
func (t *Transaction) Counts() bool {
	return t.Status == StatusConfirmed
}

// ChangeStatus moves the transaction to a new status.
// It returns false without touching anything when the status is unchanged.
func (t *Transaction) ChangeStatus(to Status, notes string, at time.Time) (bool, error) {
	if !to.IsValid() {
		return false, shared.NewValidationError("INVALID_STATUS",
			fmt.Sprintf("Status must be one of confirmed, pending, cancelled; got %q", to))
	}
	if t.Status == to {
		return false, nil
	}
	t.Status = to
	t.StatusChangedAt = &at
	if notes = strings.TrimSpace(notes); notes != "" {
		t.StatusNotes = notes
	}
	t.Advance(at)
	return true, nil
}

// SumConfirmed adds up the amounts of confirmed transactions
func SumConfirmed(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for i := range txs {
		if txs[i].Counts() {
			total = total.Add(txs[i].Amount)
		}
	}
	return total
}
