package models

import (
	"time"

	"github.com/erp/shopledger/internal/domain/recovery"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecoveryModel is the persistence model for a recovery transaction
type RecoveryModel struct {
	AggregateModel
	ReceiptNumber   string          `gorm:"type:varchar(40);not null;uniqueIndex"`
	SaleID          uuid.UUID       `gorm:"type:uuid;not null;index"`
	SaleNumber      string          `gorm:"type:varchar(40);not null"`
	CustomerID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	CustomerName    string          `gorm:"type:varchar(200)"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	PaymentMethod   string          `gorm:"type:varchar(20);not null"`
	Reference       string          `gorm:"type:varchar(200)"`
	Notes           string          `gorm:"type:text"`
	ReceivedBy      string          `gorm:"type:varchar(100);not null"`
	Status          string          `gorm:"type:varchar(20);not null;index"`
	RecoveredAt     time.Time       `gorm:"not null;index"`
	StatusChangedAt *time.Time
	StatusNotes     string  `gorm:"type:text"`
	IdempotencyKey  *string `gorm:"type:varchar(100);uniqueIndex"`
}

// TableName returns the table name for GORM
func (RecoveryModel) TableName() string {
	return "recoveries"
}

// ToDomain converts the persistence model to a domain Transaction
func (m *RecoveryModel) ToDomain() *recovery.Transaction {
	t := &recovery.Transaction{
		BaseAggregateRoot: m.ToAggregateRoot(),
		ReceiptNumber:     m.ReceiptNumber,
		SaleID:            m.SaleID,
		SaleNumber:        m.SaleNumber,
		CustomerID:        m.CustomerID,
		CustomerName:      m.CustomerName,
		Amount:            m.Amount,
		PaymentMethod:     sales.PaymentMethod(m.PaymentMethod),
		Reference:         m.Reference,
		Notes:             m.Notes,
		ReceivedBy:        m.ReceivedBy,
		Status:            recovery.Status(m.Status),
		RecoveredAt:       m.RecoveredAt,
		StatusChangedAt:   m.StatusChangedAt,
		StatusNotes:       m.StatusNotes,
	}
	if m.IdempotencyKey != nil {
		t.IdempotencyKey = *m.IdempotencyKey
	}
	return t
}

// RecoveryModelFromDomain converts a domain Transaction to its persistence model
func RecoveryModelFromDomain(t *recovery.Transaction) *RecoveryModel {
	m := &RecoveryModel{
		ReceiptNumber:   t.ReceiptNumber,
		SaleID:          t.SaleID,
		SaleNumber:      t.SaleNumber,
		CustomerID:      t.CustomerID,
		CustomerName:    t.CustomerName,
		Amount:          t.Amount,
		PaymentMethod:   string(t.PaymentMethod),
		Reference:       t.Reference,
		Notes:           t.Notes,
		ReceivedBy:      t.ReceivedBy,
		Status:          string(t.Status),
		RecoveredAt:     t.RecoveredAt.UTC(),
		StatusChangedAt: utcPtr(t.StatusChangedAt),
		StatusNotes:     t.StatusNotes,
		IdempotencyKey:  nullableString(t.IdempotencyKey),
	}
	m.FromDomainAggregateRoot(t.BaseAggregateRoot)
	return m
}
