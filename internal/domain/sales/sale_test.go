package sales

import (
	"testing"
	"time"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers
func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(total string) SaleItem {
	return SaleItem{
		ProductID:   uuid.New(),
		ProductName: "Widget",
		Quantity:    dec("1"),
		UnitPrice:   dec(total),
		ActualPrice: dec(total),
		Total:       dec(total),
	}
}

func newTestSale(t *testing.T, grand, paid string) *Sale {
	t.Helper()
	s, err := NewSale(NewSaleInput{
		SaleNumber:    "SL-20260101-00001",
		CustomerID:    uuid.New(),
		SupplierID:    uuid.New(),
		Items:         []SaleItem{item(grand)},
		AmountPaid:    dec(paid),
		PaymentMethod: PaymentCash,
		SaleDate:      time.Now(),
	})
	require.NoError(t, err)
	return s
}

func assertBalanceIdentity(t *testing.T, s *Sale) {
	t.Helper()
	require.True(t, s.OutstandingAmount.Valid)
	want := Outstanding(s.GrandTotal, s.AmountPaid, s.TotalRecovered.Decimal)
	assert.True(t, want.Equal(s.OutstandingAmount.Decimal),
		"outstanding %s, formula %s", s.OutstandingAmount.Decimal, want)
	if s.RecoveryStatus == RecoveryStatusFullyPaid {
		assert.True(t, s.OutstandingAmount.Decimal.IsZero())
	}
}

// ============================================
// NewSale Tests
// ============================================

func TestNewSale_Derivation(t *testing.T) {
	tests := []struct {
		name          string
		items         []SaleItem
		discountType  DiscountType
		discountValue string
		taxRate       string
		paid          string
		wantSubtotal  string
		wantDiscount  string
		wantTax       string
		wantGrand     string
		wantChange    string
		wantOutstand  string
		wantPayment   PaymentStatus
		wantRecovery  RecoveryStatus
	}{
		{
			name: "percentage discount with tax partially paid", items: []SaleItem{item("60"), item("40")},
			discountType: DiscountPercentage, discountValue: "10", taxRate: "5", paid: "50",
			wantSubtotal: "100", wantDiscount: "10", wantTax: "4.5", wantGrand: "94.5",
			wantChange: "0", wantOutstand: "44.5", wantPayment: PaymentStatusPartial, wantRecovery: RecoveryStatusPartiallyPaid,
		},
		{
			name: "fixed discount overpaid", items: []SaleItem{item("100")},
			discountType: DiscountFixed, discountValue: "20", taxRate: "0", paid: "100",
			wantSubtotal: "100", wantDiscount: "20", wantTax: "0", wantGrand: "80",
			wantChange: "20", wantOutstand: "0", wantPayment: PaymentStatusPaid, wantRecovery: RecoveryStatusFullyPaid,
		},
		{
			name: "no discount unpaid", items: []SaleItem{item("25.50")},
			discountType: DiscountNone, discountValue: "0", taxRate: "10", paid: "0",
			wantSubtotal: "25.5", wantDiscount: "0", wantTax: "2.55", wantGrand: "28.05",
			wantChange: "0", wantOutstand: "28.05", wantPayment: PaymentStatusPending, wantRecovery: RecoveryStatusUnpaid,
		},
		{
			name: "zero total with nothing paid stays unpaid", items: []SaleItem{item("0")},
			discountType: DiscountNone, discountValue: "0", taxRate: "0", paid: "0",
			wantSubtotal: "0", wantDiscount: "0", wantTax: "0", wantGrand: "0",
			wantChange: "0", wantOutstand: "0", wantPayment: PaymentStatusPending, wantRecovery: RecoveryStatusUnpaid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSale(NewSaleInput{
				CustomerID:    uuid.New(),
				SupplierID:    uuid.New(),
				Items:         tt.items,
				DiscountType:  tt.discountType,
				DiscountValue: dec(tt.discountValue),
				TaxRate:       dec(tt.taxRate),
				AmountPaid:    dec(tt.paid),
				PaymentMethod: PaymentCash,
			})
			require.NoError(t, err)

			assert.True(t, dec(tt.wantSubtotal).Equal(s.Subtotal), "subtotal %s", s.Subtotal)
			assert.True(t, dec(tt.wantDiscount).Equal(s.DiscountAmount), "discount %s", s.DiscountAmount)
			assert.True(t, dec(tt.wantTax).Equal(s.TaxAmount), "tax %s", s.TaxAmount)
			assert.True(t, dec(tt.wantGrand).Equal(s.GrandTotal), "grand %s", s.GrandTotal)
			assert.True(t, dec(tt.wantChange).Equal(s.ChangeDue), "change %s", s.ChangeDue)
			assert.True(t, dec(tt.wantOutstand).Equal(s.OutstandingAmount.Decimal), "outstanding %s", s.OutstandingAmount.Decimal)
			assert.Equal(t, tt.wantPayment, s.PaymentStatus)
			assert.Equal(t, tt.wantRecovery, s.RecoveryStatus)
			assertBalanceIdentity(t, s)
		})
	}
}

func TestNewSale_DueDate(t *testing.T) {
	saleDate := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("defaults to thirty days after the sale", func(t *testing.T) {
		s, err := NewSale(NewSaleInput{
			CustomerID: uuid.New(), SupplierID: uuid.New(), Items: []SaleItem{item("10")},
			PaymentMethod: PaymentCard, SaleDate: saleDate,
		})
		require.NoError(t, err)
		require.NotNil(t, s.DueDate)
		assert.Equal(t, saleDate.AddDate(0, 0, 30), *s.DueDate)
	})

	t.Run("keeps an explicit due date", func(t *testing.T) {
		due := saleDate.AddDate(0, 0, 7)
		s, err := NewSale(NewSaleInput{
			CustomerID: uuid.New(), SupplierID: uuid.New(), Items: []SaleItem{item("10")},
			PaymentMethod: PaymentCard, SaleDate: saleDate, DueDate: &due,
		})
		require.NoError(t, err)
		assert.Equal(t, due, *s.DueDate)
	})
}

func TestNewSale_Validation(t *testing.T) {
	valid := func() NewSaleInput {
		return NewSaleInput{
			CustomerID: uuid.New(), SupplierID: uuid.New(), Items: []SaleItem{item("10")},
			PaymentMethod: PaymentCash,
		}
	}

	tests := []struct {
		name   string
		mutate func(*NewSaleInput)
		code   string
	}{
		{"missing customer", func(in *NewSaleInput) { in.CustomerID = uuid.Nil }, "CUSTOMER_REQUIRED"},
		{"missing supplier", func(in *NewSaleInput) { in.SupplierID = uuid.Nil }, "SUPPLIER_REQUIRED"},
		{"no items", func(in *NewSaleInput) { in.Items = nil }, "ITEMS_REQUIRED"},
		{"negative paid", func(in *NewSaleInput) { in.AmountPaid = dec("-1") }, "INVALID_AMOUNT_PAID"},
		{"zero quantity", func(in *NewSaleInput) { in.Items[0].Quantity = decimal.Zero }, "INVALID_QUANTITY"},
		{"unknown discount type", func(in *NewSaleInput) { in.DiscountType = "bogus" }, "INVALID_DISCOUNT_TYPE"},
		{"percentage over 100", func(in *NewSaleInput) {
			in.DiscountType = DiscountPercentage
			in.DiscountValue = dec("101")
		}, "INVALID_DISCOUNT"},
		{"fixed discount over subtotal", func(in *NewSaleInput) {
			in.DiscountType = DiscountFixed
			in.DiscountValue = dec("11")
		}, "INVALID_DISCOUNT"},
		{"negative tax", func(in *NewSaleInput) { in.TaxRate = dec("-5") }, "INVALID_TAX_RATE"},
		{"unknown payment method", func(in *NewSaleInput) { in.PaymentMethod = "barter" }, "INVALID_PAYMENT_METHOD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)
			_, err := NewSale(in)
			require.Error(t, err)
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, shared.KindValidation, de.Kind)
		})
	}
}

func TestNewSale_RaisesCreatedEvent(t *testing.T) {
	s := newTestSale(t, "100", "40")

	events := s.PendingEvents()
	require.Len(t, events, 1)
	created, ok := events[0].(*SaleCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, s.ID, created.SaleID)
	assert.Len(t, created.Items, 1)
	assert.True(t, dec("60").Equal(created.OutstandingAmount))
}

func TestSale_AssignNumberUpdatesCreatedEvent(t *testing.T) {
	s := newTestSale(t, "10", "0")
	s.AssignNumber("SL-20260102-00007")

	assert.Equal(t, "SL-20260102-00007", s.SaleNumber)
	created, ok := s.PendingEvents()[0].(*SaleCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, "SL-20260102-00007", created.SaleNumber)
}

func TestSale_UpdateNotesKeepsTotals(t *testing.T) {
	s := newTestSale(t, "100", "40")
	grand, outstanding, version := s.GrandTotal, s.OutstandingAmount.Decimal, s.Version

	s.UpdateNotes("corrected phone number", time.Now())

	assert.Equal(t, "corrected phone number", s.Notes)
	assert.True(t, grand.Equal(s.GrandTotal))
	assert.True(t, outstanding.Equal(s.OutstandingAmount.Decimal))
	assert.Equal(t, version+1, s.Version)
}

// ============================================
// Recovery folding
// ============================================

func TestSale_ApplyRecovery_Scenarios(t *testing.T) {
	now := time.Now()

	t.Run("partial then full payment", func(t *testing.T) {
		s := newTestSale(t, "100", "40")
		assert.True(t, dec("60").Equal(s.OutstandingAmount.Decimal))
		assert.Equal(t, RecoveryStatusPartiallyPaid, s.RecoveryStatus)

		require.NoError(t, s.ApplyRecovery(dec("60"), "settled in cash", now))

		assert.True(t, s.OutstandingAmount.Decimal.IsZero())
		assert.True(t, dec("60").Equal(s.TotalRecovered.Decimal))
		assert.Equal(t, RecoveryStatusFullyPaid, s.RecoveryStatus)
		assert.Equal(t, PaymentStatusPaid, s.PaymentStatus)
		require.NotNil(t, s.LastRecoveryDate)
		assert.Contains(t, s.RecoveryNotes, "settled in cash")
		assertBalanceIdentity(t, s)
	})

	t.Run("amount above outstanding is rejected", func(t *testing.T) {
		s := newTestSale(t, "100", "40")
		version := s.Version

		err := s.ApplyRecovery(dec("70"), "", now)

		require.Error(t, err)
		assert.True(t, shared.IsKind(err, shared.KindValidation))
		assert.Contains(t, err.Error(), "70.00")
		assert.Contains(t, err.Error(), "60.00")
		assert.True(t, dec("60").Equal(s.OutstandingAmount.Decimal))
		assert.Equal(t, version, s.Version)
	})

	t.Run("rejection boundary", func(t *testing.T) {
		s := newTestSale(t, "100", "40")

		assert.Error(t, s.ApplyRecovery(dec("60.01"), "", now))
		require.NoError(t, s.ApplyRecovery(dec("60"), "", now))
		assert.True(t, s.OutstandingAmount.Decimal.IsZero())
	})

	t.Run("non positive amount is rejected", func(t *testing.T) {
		s := newTestSale(t, "100", "40")
		assert.Error(t, s.ApplyRecovery(decimal.Zero, "", now))
		assert.Error(t, s.ApplyRecovery(dec("-5"), "", now))
	})

	t.Run("partial recovery on an unpaid sale", func(t *testing.T) {
		s := newTestSale(t, "100", "0")
		require.NoError(t, s.ApplyRecovery(dec("25"), "", now))
		assert.Equal(t, RecoveryStatusPartiallyPaid, s.RecoveryStatus)
		assert.Equal(t, PaymentStatusPartial, s.PaymentStatus)
		assertBalanceIdentity(t, s)
	})

	t.Run("notes accumulate with date stamps", func(t *testing.T) {
		s := newTestSale(t, "100", "0")
		require.NoError(t, s.ApplyRecovery(dec("10"), "first", now))
		require.NoError(t, s.ApplyRecovery(dec("10"), "  ", now))
		require.NoError(t, s.ApplyRecovery(dec("10"), "second", now))
		stamp := now.Format("2006-01-02")
		assert.Equal(t, "["+stamp+"] first\n["+stamp+"] second", s.RecoveryNotes)
	})
}

func TestSale_ApplyRecovery_Monotonic(t *testing.T) {
	s := newTestSale(t, "250", "0")
	previous := s.TotalRecovered.Decimal
	for _, amount := range []string{"10", "0.5", "99.5", "40", "100"} {
		require.NoError(t, s.ApplyRecovery(dec(amount), "", time.Now()))
		assert.True(t, s.TotalRecovered.Decimal.GreaterThanOrEqual(previous))
		previous = s.TotalRecovered.Decimal
		assertBalanceIdentity(t, s)
	}
	assert.Equal(t, RecoveryStatusFullyPaid, s.RecoveryStatus)
}

func TestSale_ApplyRecovery_PastDueStaysOverdue(t *testing.T) {
	s := newTestSale(t, "100", "0")
	later := s.EffectiveDueDate().Add(24 * time.Hour)

	require.NoError(t, s.ApplyRecovery(dec("30"), "", later))
	assert.Equal(t, RecoveryStatusOverdue, s.RecoveryStatus)
	assert.Equal(t, PaymentStatusPartial, s.PaymentStatus)

	require.NoError(t, s.ApplyRecovery(dec("70"), "", later))
	assert.Equal(t, RecoveryStatusFullyPaid, s.RecoveryStatus)
}

func TestSale_Refold(t *testing.T) {
	now := time.Now()

	t.Run("cancelling the only recovery restores the balance", func(t *testing.T) {
		s := newTestSale(t, "100", "40")
		require.NoError(t, s.ApplyRecovery(dec("60"), "", now))
		require.Equal(t, RecoveryStatusFullyPaid, s.RecoveryStatus)

		require.NoError(t, s.Refold(decimal.Zero, "cancelled receipt", now))

		assert.True(t, s.TotalRecovered.Decimal.IsZero())
		assert.True(t, dec("60").Equal(s.OutstandingAmount.Decimal))
		assert.Equal(t, RecoveryStatusPartiallyPaid, s.RecoveryStatus)
		assertBalanceIdentity(t, s)
	})

	t.Run("negative total is an internal error", func(t *testing.T) {
		s := newTestSale(t, "100", "40")
		err := s.Refold(dec("-1"), "", now)
		assert.True(t, shared.IsKind(err, shared.KindInternal))
	})
}

// ============================================
// Legacy handling
// ============================================

func legacySale(grand, paid string, status PaymentStatus, saleDate time.Time) *Sale {
	return &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SaleNumber:        "INV-OLD",
		CustomerID:        uuid.New(),
		SupplierID:        uuid.New(),
		SaleDate:          saleDate,
		Subtotal:          dec(grand),
		GrandTotal:        dec(grand),
		AmountPaid:        dec(paid),
		PaymentStatus:     status,
	}
}

func TestSale_Backfill(t *testing.T) {
	now := time.Now()

	t.Run("fills ledger fields of a legacy sale", func(t *testing.T) {
		s := legacySale("100", "30", PaymentStatusPartial, now.AddDate(0, 0, -3))

		require.True(t, s.Backfill(now))

		assert.False(t, s.IsLegacy())
		assert.Equal(t, RecoveryStatusPartiallyPaid, s.RecoveryStatus)
		assert.True(t, dec("70").Equal(s.OutstandingAmount.Decimal))
		assert.True(t, s.TotalRecovered.Decimal.IsZero())
		require.NotNil(t, s.DueDate)
		assert.Equal(t, s.SaleDate.Add(GracePeriod), *s.DueDate)
		assertBalanceIdentity(t, s)
	})

	t.Run("marks old unpaid legacy sales overdue", func(t *testing.T) {
		s := legacySale("100", "0", PaymentStatusPending, now.AddDate(0, 0, -45))
		require.True(t, s.Backfill(now))
		assert.Equal(t, RecoveryStatusOverdue, s.RecoveryStatus)
	})

	t.Run("is a no-op on current sales", func(t *testing.T) {
		s := newTestSale(t, "100", "40")
		before := *s
		assert.False(t, s.Backfill(now))
		assert.Equal(t, before.RecoveryStatus, s.RecoveryStatus)
		assert.Equal(t, before.Version, s.Version)
	})

	t.Run("outstanding wins over a contradicting payment status", func(t *testing.T) {
		s := legacySale("100", "20", PaymentStatusPaid, now)
		view := Classify(s, now)
		assert.True(t, view.StatusConflict)

		require.True(t, s.Backfill(now))
		assert.Equal(t, RecoveryStatusPartiallyPaid, s.RecoveryStatus)
		assert.Equal(t, PaymentStatusPartial, s.PaymentStatus)
	})

	t.Run("applying a recovery to a legacy sale backfills it first", func(t *testing.T) {
		s := legacySale("100", "40", PaymentStatusPartial, now)
		require.NoError(t, s.ApplyRecovery(dec("60"), "", now))
		assert.Equal(t, RecoveryStatusFullyPaid, s.RecoveryStatus)
		assertBalanceIdentity(t, s)
	})
}

func TestSale_Migrate(t *testing.T) {
	now := time.Now()
	s := legacySale("100", "100", PaymentStatusPaid, now.AddDate(0, 0, -90))
	v := s.Version

	require.True(t, s.Migrate(now))
	assert.Equal(t, v+1, s.Version)
	assert.Equal(t, RecoveryStatusFullyPaid, s.RecoveryStatus)

	assert.False(t, s.Migrate(now))
	assert.Equal(t, v+1, s.Version)
}

func TestSale_MarkOverdue(t *testing.T) {
	s := newTestSale(t, "100", "10")
	assert.False(t, s.MarkOverdue(time.Now()))

	past := s.EffectiveDueDate().Add(time.Minute)
	assert.True(t, s.MarkOverdue(past))
	assert.Equal(t, RecoveryStatusOverdue, s.RecoveryStatus)
	assert.False(t, s.MarkOverdue(past))

	paid := newTestSale(t, "100", "100")
	assert.False(t, paid.MarkOverdue(past))
}
