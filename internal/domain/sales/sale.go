package sales

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeSale is the aggregate type name used on events
const AggregateTypeSale = "Sale"

// GracePeriod is the time between a sale and its default due date
const GracePeriod = 30 * 24 * time.Hour

// MoneyPlaces is the number of decimal places amounts are rounded to
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// SaleItem is a line item as captured at checkout
type SaleItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ActualPrice decimal.Decimal `json:"actual_price"`
	Total       decimal.Decimal `json:"total"`
}

// Sale is the unit of account for the recovery ledger.
//
// The financial base fields are derived once by NewSale and never recomputed.
// The ledger fields move only through ApplyRecovery, Refold, Backfill and MarkOverdue.
type Sale struct {
	shared.BaseAggregateRoot
	SaleNumber    string
	CustomerID    uuid.UUID
	SupplierID    uuid.UUID
	Items         []SaleItem
	SaleDate      time.Time
	PaymentMethod PaymentMethod
	Notes         string

	Subtotal       decimal.Decimal
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxRate        decimal.Decimal
	TaxAmount      decimal.Decimal
	GrandTotal     decimal.Decimal
	AmountPaid     decimal.Decimal
	ChangeDue      decimal.Decimal

	PaymentStatus     PaymentStatus
	RecoveryStatus    RecoveryStatus
	TotalRecovered    decimal.NullDecimal
	OutstandingAmount decimal.NullDecimal
	DueDate           *time.Time
	LastRecoveryDate  *time.Time
	RecoveryNotes     string
}

// NewSaleInput carries the caller-supplied fields of a new sale
type NewSaleInput struct {
	SaleNumber    string
	CustomerID    uuid.UUID
	SupplierID    uuid.UUID
	Items         []SaleItem
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	TaxRate       decimal.Decimal
	AmountPaid    decimal.Decimal
	PaymentMethod PaymentMethod
	SaleDate      time.Time
	DueDate       *time.Time
	Notes         string
}

// NewSale validates the input and derives the totals and initial ledger state
func NewSale(in NewSaleInput) (*Sale, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	saleDate := in.SaleDate
	if saleDate.IsZero() {
		saleDate = time.Now()
	}
	discountType := in.DiscountType
	if discountType == "" {
		discountType = DiscountNone
	}

	items := make([]SaleItem, len(in.Items))
	copy(items, in.Items)

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.Total)
	}

	var discount decimal.Decimal
	switch discountType {
	case DiscountPercentage:
		discount = subtotal.Mul(in.DiscountValue).Div(hundred).Round(MoneyPlaces)
	case DiscountFixed:
		discount = in.DiscountValue
	default:
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		return nil, shared.NewValidationError("INVALID_DISCOUNT",
			fmt.Sprintf("Discount (%s) cannot exceed subtotal (%s)", discount.StringFixed(MoneyPlaces), subtotal.StringFixed(MoneyPlaces)))
	}

	tax := subtotal.Sub(discount).Mul(in.TaxRate).Div(hundred).Round(MoneyPlaces)
	grand := subtotal.Sub(discount).Add(tax)

	s := &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SaleNumber:        in.SaleNumber,
		CustomerID:        in.CustomerID,
		SupplierID:        in.SupplierID,
		Items:             items,
		SaleDate:          saleDate,
		PaymentMethod:     in.PaymentMethod,
		Notes:             in.Notes,
		Subtotal:          subtotal,
		DiscountType:      discountType,
		DiscountValue:     in.DiscountValue,
		DiscountAmount:    discount,
		TaxRate:           in.TaxRate,
		TaxAmount:         tax,
		GrandTotal:        grand,
		AmountPaid:        in.AmountPaid,
		ChangeDue:         decimal.Max(decimal.Zero, in.AmountPaid.Sub(grand)),
		TotalRecovered:    decimal.NewNullDecimal(decimal.Zero),
	}

	due := saleDate.Add(GracePeriod)
	if in.DueDate != nil {
		due = *in.DueDate
	}
	s.DueDate = &due

	outstanding := Outstanding(grand, in.AmountPaid, decimal.Zero)
	s.OutstandingAmount = decimal.NewNullDecimal(outstanding)
	s.PaymentStatus, s.RecoveryStatus = DeriveStatus(outstanding, in.AmountPaid)

	s.Record(NewSaleCreatedEvent(s))
	return s, nil
}

func (in NewSaleInput) validate() error {
	if in.CustomerID == uuid.Nil {
		return shared.NewValidationError("CUSTOMER_REQUIRED", "Customer is required")
	}
	if in.SupplierID == uuid.Nil {
		return shared.NewValidationError("SUPPLIER_REQUIRED", "Supplier is required")
	}
	if len(in.Items) == 0 {
		return shared.NewValidationError("ITEMS_REQUIRED", "At least one sale item is required")
	}
	for i, item := range in.Items {
		if !item.Quantity.IsPositive() {
			return shared.NewValidationError("INVALID_QUANTITY", fmt.Sprintf("Item %d quantity must be positive", i+1))
		}
		if item.Total.IsNegative() {
			return shared.NewValidationError("INVALID_ITEM_TOTAL", fmt.Sprintf("Item %d total cannot be negative", i+1))
		}
	}
	if in.AmountPaid.IsNegative() {
		return shared.NewValidationError("INVALID_AMOUNT_PAID", "Amount paid cannot be negative")
	}
	if in.DiscountType != "" && !in.DiscountType.IsValid() {
		return shared.NewValidationError("INVALID_DISCOUNT_TYPE", fmt.Sprintf("Unknown discount type %q", in.DiscountType))
	}
	if in.DiscountValue.IsNegative() {
		return shared.NewValidationError("INVALID_DISCOUNT", "Discount value cannot be negative")
	}
	if in.DiscountType == DiscountPercentage && in.DiscountValue.GreaterThan(hundred) {
		return shared.NewValidationError("INVALID_DISCOUNT", "Percentage discount cannot exceed 100")
	}
	if in.TaxRate.IsNegative() {
		return shared.NewValidationError("INVALID_TAX_RATE", "Tax rate cannot be negative")
	}
	if !in.PaymentMethod.IsValid() {
		return shared.NewValidationError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Unknown payment method %q", in.PaymentMethod))
	}
	return nil
}

// AssignNumber sets the sale number issued when the sale is stored
func (s *Sale) AssignNumber(number string) {
	s.SaleNumber = number
	for _, e := range s.PendingEvents() {
		if created, ok := e.(*SaleCreatedEvent); ok {
			created.SaleNumber = number
		}
	}
}

// IsLegacy reports whether the sale predates recovery tracking
func (s *Sale) IsLegacy() bool {
	return s.RecoveryStatus == RecoveryStatusNone
}

// Collected returns everything received against the sale
func (s *Sale) Collected() decimal.Decimal {
	return s.AmountPaid.Add(s.recovered())
}

func (s *Sale) recovered() decimal.Decimal {
	if s.TotalRecovered.Valid {
		return s.TotalRecovered.Decimal
	}
	return decimal.Zero
}

// EffectiveDueDate returns the stored due date or the default one
func (s *Sale) EffectiveDueDate() time.Time {
	if s.DueDate != nil {
		return *s.DueDate
	}
	return s.SaleDate.Add(GracePeriod)
}

// CanAccept checks amount against the current balance without mutating the sale
func (s *Sale) CanAccept(amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return shared.NewValidationError("INVALID_AMOUNT", "Recovery amount must be greater than zero")
	}
	outstanding := Classify(s, now).Outstanding
	if amount.GreaterThan(outstanding) {
		return shared.NewValidationError("AMOUNT_EXCEEDS_OUTSTANDING",
			fmt.Sprintf("Recovery amount (%s) cannot exceed outstanding amount (%s)",
				amount.StringFixed(MoneyPlaces), outstanding.StringFixed(MoneyPlaces)))
	}
	return nil
}

// ApplyRecovery folds a confirmed payment into the ledger fields
func (s *Sale) ApplyRecovery(amount decimal.Decimal, notes string, at time.Time) error {
	if err := s.CanAccept(amount, at); err != nil {
		return err
	}
	s.Backfill(at)

	s.TotalRecovered = decimal.NewNullDecimal(s.recovered().Add(amount))
	s.recalc(at)
	s.appendNote(notes, at)
	s.LastRecoveryDate = &at
	s.Advance(at)
	return nil
}

// Refold replaces totalRecovered with the sum of the confirmed log and recomputes the balance
func (s *Sale) Refold(confirmedTotal decimal.Decimal, note string, at time.Time) error {
	if confirmedTotal.IsNegative() {
		return shared.NewInternalError(fmt.Sprintf("confirmed recovery total for sale %s is negative", s.SaleNumber), nil)
	}
	s.Backfill(at)
	s.TotalRecovered = decimal.NewNullDecimal(confirmedTotal)
	s.recalc(at)
	s.appendNote(note, at)
	s.Advance(at)
	return nil
}

// Backfill converts a legacy sale into current form in memory.
// It returns false when the sale already carries recovery tracking.
func (s *Sale) Backfill(now time.Time) bool {
	if !s.IsLegacy() {
		return false
	}
	view := Classify(s, now)
	due := view.DueDate
	s.DueDate = &due
	s.TotalRecovered = decimal.NewNullDecimal(s.recovered())
	s.OutstandingAmount = decimal.NewNullDecimal(view.Outstanding)
	s.RecoveryStatus = view.Status
	s.PaymentStatus = view.PaymentStatus
	return true
}

// Migrate backfills a legacy sale as its own versioned change.
// It returns false when the sale is already tracked.
func (s *Sale) Migrate(now time.Time) bool {
	if !s.Backfill(now) {
		return false
	}
	s.Advance(now)
	return true
}

// MarkOverdue persists the overdue status once the due date has passed.
// It returns false when nothing changed.
func (s *Sale) MarkOverdue(now time.Time) bool {
	if s.IsLegacy() || s.RecoveryStatus == RecoveryStatusOverdue {
		return false
	}
	if Classify(s, now).Bucket != BucketOverdue {
		return false
	}
	s.RecoveryStatus = RecoveryStatusOverdue
	s.Advance(now)
	return true
}

// UpdateNotes changes the free-text sale notes; totals are left untouched
func (s *Sale) UpdateNotes(notes string, at time.Time) {
	s.Notes = notes
	s.Advance(at)
}

func (s *Sale) recalc(now time.Time) {
	outstanding := Outstanding(s.GrandTotal, s.AmountPaid, s.recovered())
	s.OutstandingAmount = decimal.NewNullDecimal(outstanding)
	s.PaymentStatus, s.RecoveryStatus = DeriveStatus(outstanding, s.Collected())
	if outstanding.IsPositive() && now.After(s.EffectiveDueDate()) {
		s.RecoveryStatus = RecoveryStatusOverdue
	}
}

func (s *Sale) appendNote(note string, at time.Time) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	line := fmt.Sprintf("[%s] %s", at.Format("2006-01-02"), note)
	if s.RecoveryNotes == "" {
		s.RecoveryNotes = line
		return
	}
	s.RecoveryNotes = s.RecoveryNotes + "\n" + line
}
