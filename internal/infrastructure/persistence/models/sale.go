package models

import (
	"time"

	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// SaleItemJSON is the stored form of a line item
type SaleItemJSON struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ActualPrice decimal.Decimal `json:"actual_price"`
	Total       decimal.Decimal `json:"total"`
}

// SaleModel is the persistence model for the Sale aggregate
type SaleModel struct {
	AggregateModel
	SaleNumber    string                            `gorm:"type:varchar(40);not null;uniqueIndex"`
	CustomerID    uuid.UUID                         `gorm:"type:uuid;not null;index"`
	SupplierID    uuid.UUID                         `gorm:"type:uuid;not null"`
	Items         datatypes.JSONSlice[SaleItemJSON] `gorm:"not null"`
	SaleDate      time.Time                         `gorm:"not null;index"`
	PaymentMethod string                            `gorm:"type:varchar(20);not null"`
	Notes         string                            `gorm:"type:text"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	DiscountType   string          `gorm:"type:varchar(20);not null;default:'none'"`
	DiscountValue  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	TaxRate        decimal.Decimal `gorm:"type:decimal(9,4);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	GrandTotal     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	ChangeDue      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`

	PaymentStatus     *string             `gorm:"type:varchar(20)"`
	RecoveryStatus    *string             `gorm:"type:varchar(20);index"`
	TotalRecovered    decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	OutstandingAmount decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	DueDate           *time.Time          `gorm:"index"`
	LastRecoveryDate  *time.Time
	RecoveryNotes     string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale
func (m *SaleModel) ToDomain() *sales.Sale {
	items := make([]sales.SaleItem, len(m.Items))
	for i, it := range m.Items {
		items[i] = sales.SaleItem(it)
	}
	s := &sales.Sale{
		BaseAggregateRoot: m.ToAggregateRoot(),
		SaleNumber:        m.SaleNumber,
		CustomerID:        m.CustomerID,
		SupplierID:        m.SupplierID,
		Items:             items,
		SaleDate:          m.SaleDate,
		PaymentMethod:     sales.PaymentMethod(m.PaymentMethod),
		Notes:             m.Notes,
		Subtotal:          m.Subtotal,
		DiscountType:      sales.DiscountType(m.DiscountType),
		DiscountValue:     m.DiscountValue,
		DiscountAmount:    m.DiscountAmount,
		TaxRate:           m.TaxRate,
		TaxAmount:         m.TaxAmount,
		GrandTotal:        m.GrandTotal,
		AmountPaid:        m.AmountPaid,
		ChangeDue:         m.ChangeDue,
		TotalRecovered:    m.TotalRecovered,
		OutstandingAmount: m.OutstandingAmount,
		DueDate:           m.DueDate,
		LastRecoveryDate:  m.LastRecoveryDate,
		RecoveryNotes:     m.RecoveryNotes,
	}
	if m.PaymentStatus != nil {
		s.PaymentStatus = sales.PaymentStatus(*m.PaymentStatus)
	}
	if m.RecoveryStatus != nil {
		s.RecoveryStatus = sales.RecoveryStatus(*m.RecoveryStatus)
	}
	return s
}

// SaleModelFromDomain converts a domain Sale to its persistence model
func SaleModelFromDomain(s *sales.Sale) *SaleModel {
	items := make(datatypes.JSONSlice[SaleItemJSON], len(s.Items))
	for i, it := range s.Items {
		items[i] = SaleItemJSON(it)
	}
	m := &SaleModel{
		SaleNumber:        s.SaleNumber,
		CustomerID:        s.CustomerID,
		SupplierID:        s.SupplierID,
		Items:             items,
		SaleDate:          s.SaleDate.UTC(),
		PaymentMethod:     string(s.PaymentMethod),
		Notes:             s.Notes,
		Subtotal:          s.Subtotal,
		DiscountType:      string(s.DiscountType),
		DiscountValue:     s.DiscountValue,
		DiscountAmount:    s.DiscountAmount,
		TaxRate:           s.TaxRate,
		TaxAmount:         s.TaxAmount,
		GrandTotal:        s.GrandTotal,
		AmountPaid:        s.AmountPaid,
		ChangeDue:         s.ChangeDue,
		PaymentStatus:     nullableString(string(s.PaymentStatus)),
		RecoveryStatus:    nullableString(string(s.RecoveryStatus)),
		TotalRecovered:    s.TotalRecovered,
		OutstandingAmount: s.OutstandingAmount,
		DueDate:           utcPtr(s.DueDate),
		LastRecoveryDate:  utcPtr(s.LastRecoveryDate),
		RecoveryNotes:     s.RecoveryNotes,
	}
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	return m
}

// SaleCounterModel holds the running sale count of one day
type SaleCounterModel struct {
	Day       string `gorm:"type:varchar(8);primaryKey"`
	Value     int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (SaleCounterModel) TableName() string {
	return "sale_counters"
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// utcPtr normalizes stored timestamps so text comparisons in SQLite order correctly
func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
