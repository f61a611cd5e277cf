package ledger

import (
	"time"

	"github.com/erp/shopledger/internal/domain/partner"
	"github.com/erp/shopledger/internal/domain/recovery"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleItemRequest is one line of a new sale
type SaleItemRequest struct {
	ProductID   uuid.UUID       `json:"product_id" binding:"required"`
	ProductName string          `json:"product_name" binding:"required,max=200"`
	Quantity    decimal.Decimal `json:"quantity" binding:"required,decimal_gt0"`
	UnitPrice   decimal.Decimal `json:"unit_price" binding:"decimal_gte0"`
	ActualPrice decimal.Decimal `json:"actual_price" binding:"decimal_gte0"`
	Total       decimal.Decimal `json:"total" binding:"decimal_gte0"`
}

// CreateSaleRequest represents a request to record a sale
type CreateSaleRequest struct {
	CustomerID    uuid.UUID         `json:"customer_id" binding:"required"`
	SupplierID    uuid.UUID         `json:"supplier_id" binding:"required"`
	Items         []SaleItemRequest `json:"items" binding:"required,min=1,dive"`
	DiscountType  string            `json:"discount_type" binding:"omitempty,discount_type"`
	DiscountValue decimal.Decimal   `json:"discount_value" binding:"decimal_gte0"`
	TaxRate       decimal.Decimal   `json:"tax_rate" binding:"decimal_gte0"`
	AmountPaid    decimal.Decimal   `json:"amount_paid" binding:"decimal_gte0"`
	PaymentMethod string            `json:"payment_method" binding:"required,payment_method"`
	SaleDate      *time.Time        `json:"sale_date"`
	DueDate       *time.Time        `json:"due_date"`
	Notes         string            `json:"notes" binding:"max=2000"`
}

// UpdateSaleNotesRequest replaces the free-text notes of a sale
type UpdateSaleNotesRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// AddRecoveryRequest represents a payment received against a sale
type AddRecoveryRequest struct {
	CustomerID    uuid.UUID       `json:"customer_id" binding:"required"`
	SaleID        uuid.UUID       `json:"sale_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required,decimal_gt0"`
	PaymentMethod string          `json:"payment_method" binding:"required,payment_method"`
	Reference     string          `json:"reference" binding:"max=200"`
	Notes         string          `json:"notes" binding:"max=2000"`
	ReceivedBy    string          `json:"received_by" binding:"required,max=100"`
	// IdempotencyKey is taken from the Idempotency-Key header
	IdempotencyKey string `json:"-"`
}

// UpdateRecoveryStatusRequest changes the status of a recovery
type UpdateRecoveryStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=confirmed pending cancelled"`
	Notes  string `json:"notes" binding:"max=2000"`
}

// ListFilter selects a page of a ledger view.
// CustomerID is parsed by the handler from the customer_id query parameter.
type ListFilter struct {
	CustomerID *uuid.UUID `form:"-"`
	Page       int        `form:"page" binding:"omitempty,min=1"`
	Limit      int        `form:"limit" binding:"omitempty,min=1,max=100"`
	OrderBy    string     `form:"order_by" binding:"omitempty,oneof=sale_date due_date grand_total outstanding created_at"`
	OrderDir   string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// SaleItemResponse is one line of a sale
type SaleItemResponse struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ActualPrice decimal.Decimal `json:"actual_price"`
	Total       decimal.Decimal `json:"total"`
}

// SaleResponse represents a sale with its effective ledger state.
// For legacy sales the ledger fields are derived, not stored.
type SaleResponse struct {
	ID                uuid.UUID          `json:"id"`
	SaleNumber        string             `json:"sale_number"`
	CustomerID        uuid.UUID          `json:"customer_id"`
	CustomerName      string             `json:"customer_name,omitempty"`
	SupplierID        uuid.UUID          `json:"supplier_id"`
	Items             []SaleItemResponse `json:"items"`
	SaleDate          time.Time          `json:"sale_date"`
	PaymentMethod     string             `json:"payment_method"`
	Notes             string             `json:"notes"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	DiscountType      string             `json:"discount_type"`
	DiscountValue     decimal.Decimal    `json:"discount_value"`
	DiscountAmount    decimal.Decimal    `json:"discount_amount"`
	TaxRate           decimal.Decimal    `json:"tax_rate"`
	TaxAmount         decimal.Decimal    `json:"tax_amount"`
	GrandTotal        decimal.Decimal    `json:"grand_total"`
	AmountPaid        decimal.Decimal    `json:"amount_paid"`
	ChangeDue         decimal.Decimal    `json:"change_due"`
	PaymentStatus     string             `json:"payment_status"`
	RecoveryStatus    string             `json:"recovery_status"`
	TotalRecovered    decimal.Decimal    `json:"total_recovered"`
	OutstandingAmount decimal.Decimal    `json:"outstanding_amount"`
	DueDate           time.Time          `json:"due_date"`
	LastRecoveryDate  *time.Time         `json:"last_recovery_date,omitempty"`
	RecoveryNotes     string             `json:"recovery_notes,omitempty"`
	LedgerKind        string             `json:"ledger_kind"`
	Bucket            string             `json:"bucket"`
	DaysOverdue       int                `json:"days_overdue"`
	Version           int                `json:"version"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// ToSaleResponse renders a sale as seen at now
func ToSaleResponse(s *sales.Sale, now time.Time) SaleResponse {
	view := sales.Classify(s, now)
	items := make([]SaleItemResponse, len(s.Items))
	for i, it := range s.Items {
		items[i] = SaleItemResponse(it)
	}
	resp := SaleResponse{
		ID:                s.ID,
		SaleNumber:        s.SaleNumber,
		CustomerID:        s.CustomerID,
		SupplierID:        s.SupplierID,
		Items:             items,
		SaleDate:          s.SaleDate,
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
		PaymentStatus:     string(view.PaymentStatus),
		RecoveryStatus:    string(view.Status),
		TotalRecovered:    view.TotalRecovered,
		OutstandingAmount: view.Outstanding,
		DueDate:           view.DueDate,
		LastRecoveryDate:  s.LastRecoveryDate,
		RecoveryNotes:     s.RecoveryNotes,
		LedgerKind:        view.Kind.String(),
		Bucket:            string(view.Bucket),
		Version:           s.Version,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
	if view.Bucket == sales.BucketOverdue && now.After(view.DueDate) {
		resp.DaysOverdue = int(now.Sub(view.DueDate).Hours() / 24)
	}
	return resp
}

// RecoveryResponse represents a recovery transaction
type RecoveryResponse struct {
	ID              uuid.UUID       `json:"id"`
	ReceiptNumber   string          `json:"receipt_number"`
	SaleID          uuid.UUID       `json:"sale_id"`
	SaleNumber      string          `json:"sale_number"`
	CustomerID      uuid.UUID       `json:"customer_id"`
	CustomerName    string          `json:"customer_name"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   string          `json:"payment_method"`
	Reference       string          `json:"reference,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	ReceivedBy      string          `json:"received_by"`
	Status          string          `json:"status"`
	RecoveredAt     time.Time       `json:"recovered_at"`
	StatusChangedAt *time.Time      `json:"status_changed_at,omitempty"`
	StatusNotes     string          `json:"status_notes,omitempty"`
	Version         int             `json:"version"`
}

// ToRecoveryResponse converts a recovery transaction
func ToRecoveryResponse(t *recovery.Transaction) RecoveryResponse {
	return RecoveryResponse{
		ID:              t.ID,
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
		RecoveredAt:     t.RecoveredAt,
		StatusChangedAt: t.StatusChangedAt,
		StatusNotes:     t.StatusNotes,
		Version:         t.Version,
	}
}

// ToRecoveryResponses converts a list of recovery transactions
func ToRecoveryResponses(txs []recovery.Transaction) []RecoveryResponse {
	out := make([]RecoveryResponse, len(txs))
	for i := range txs {
		out[i] = ToRecoveryResponse(&txs[i])
	}
	return out
}

// CustomerResponse is the customer summary embedded in ledger responses
type CustomerResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone,omitempty"`
	Email   string    `json:"email,omitempty"`
	Address string    `json:"address,omitempty"`
}

// ToCustomerResponse converts a customer
func ToCustomerResponse(c *partner.Customer) CustomerResponse {
	return CustomerResponse{ID: c.ID, Name: c.Name, Phone: c.Phone, Email: c.Email, Address: c.Address}
}

// RecoveryResult is returned by AddRecovery and UpdateRecoveryStatus
type RecoveryResult struct {
	Recovery RecoveryResponse `json:"recovery"`
	Sale     SaleResponse     `json:"sale"`
	Customer CustomerResponse `json:"customer"`
	// Replayed is set when an Idempotency-Key matched an earlier request
	Replayed bool `json:"replayed,omitempty"`
	// Changed is false when a status update asked for the current status
	Changed bool `json:"changed"`
}

// SaleRecoveryHistory is a sale with its customer and every recovery, newest first
type SaleRecoveryHistory struct {
	Sale       SaleResponse       `json:"sale"`
	Customer   *CustomerResponse  `json:"customer,omitempty"`
	Recoveries []RecoveryResponse `json:"recoveries"`
}

// CustomerRecoverySummary aggregates the ledger of one customer
type CustomerRecoverySummary struct {
	Customer            CustomerResponse   `json:"customer"`
	TotalSales          int                `json:"total_sales"`
	TotalAmount         decimal.Decimal    `json:"total_amount"`
	TotalCollected      decimal.Decimal    `json:"total_collected"`
	TotalRecovered      decimal.Decimal    `json:"total_recovered"`
	TotalOutstanding    decimal.Decimal    `json:"total_outstanding"`
	OverdueAmount       decimal.Decimal    `json:"overdue_amount"`
	OutstandingSales    int                `json:"outstanding_sales"`
	OverdueSales        int                `json:"overdue_sales"`
	FullyPaidSales      int                `json:"fully_paid_sales"`
	RecentRecoveries    []RecoveryResponse `json:"recent_recoveries"`
	LastRecoveryDate    *time.Time         `json:"last_recovery_date,omitempty"`
	LegacySalesIncluded int                `json:"legacy_sales_included"`
}

// BucketTotals counts the sales and balance of one bucket
type BucketTotals struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// DashboardSummary is the shop-wide ledger overview
type DashboardSummary struct {
	Outstanding          BucketTotals       `json:"outstanding"`
	Overdue              BucketTotals       `json:"overdue"`
	FullyPaid            BucketTotals       `json:"fully_paid"`
	TotalRecovered       decimal.Decimal    `json:"total_recovered"`
	RecoveredThisMonth   decimal.Decimal    `json:"recovered_this_month"`
	RecentRecoveries     []RecoveryResponse `json:"recent_recoveries"`
	LegacySalesRemaining int                `json:"legacy_sales_remaining"`
	GeneratedAt          time.Time          `json:"generated_at"`
}

// MigrationResult reports a MigrateExistingSales run
type MigrationResult struct {
	Scanned  int `json:"scanned"`
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// RefreshResult reports a RefreshOverdueStatuses run
type RefreshResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
