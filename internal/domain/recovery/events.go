package recovery

import (
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventTypeRecoveryRecorded      = "RecoveryRecorded"
	EventTypeRecoveryStatusChanged = "RecoveryStatusChanged"
)

// RecordedEvent is raised after a payment has been folded into its sale
type RecordedEvent struct {
	shared.BaseDomainEvent
	RecoveryID     uuid.UUID       `json:"recovery_id"`
	SaleID         uuid.UUID       `json:"sale_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMethod  string          `json:"payment_method"`
	OutstandingNow decimal.Decimal `json:"outstanding_now"`
}

// NewRecordedEvent creates the event for a freshly recorded transaction
func NewRecordedEvent(t *Transaction, outstanding decimal.Decimal) *RecordedEvent {
	return &RecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRecoveryRecorded, AggregateTypeRecovery, t.ID),
		RecoveryID:      t.ID,
		SaleID:          t.SaleID,
		Amount:          t.Amount,
		PaymentMethod:   string(t.PaymentMethod),
		OutstandingNow:  outstanding,
	}
}

// StatusChangedEvent is raised after a status transition re-folded the sale
type StatusChangedEvent struct {
	shared.BaseDomainEvent
	RecoveryID     uuid.UUID       `json:"recovery_id"`
	SaleID         uuid.UUID       `json:"sale_id"`
	From           Status          `json:"from"`
	To             Status          `json:"to"`
	Amount         decimal.Decimal `json:"amount"`
	OutstandingNow decimal.Decimal `json:"outstanding_now"`
}

// NewStatusChangedEvent creates the event for a status transition
func NewStatusChangedEvent(t *Transaction, from Status, outstanding decimal.Decimal) *StatusChangedEvent {
	return &StatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRecoveryStatusChanged, AggregateTypeRecovery, t.ID),
		RecoveryID:      t.ID,
		SaleID:          t.SaleID,
		From:            from,
		To:              t.Status,
		Amount:          t.Amount,
		OutstandingNow:  outstanding,
	}
}
