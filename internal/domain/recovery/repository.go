package recovery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository persists recovery transactions
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)
	// FindBySale returns every transaction of a sale, newest first
	FindBySale(ctx context.Context, saleID uuid.UUID) ([]Transaction, error)
	// FindRecent returns the latest transactions, optionally for one customer
	FindRecent(ctx context.Context, customerID *uuid.UUID, limit int) ([]Transaction, error)
	SumConfirmedBySale(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error)
	SumConfirmedSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
	Create(ctx context.Context, t *Transaction) error
	SaveWithLock(ctx context.Context, t *Transaction) error
}

// ReceiptNumberGenerator issues unique receipt numbers
type ReceiptNumberGenerator interface {
	Next() string
}
