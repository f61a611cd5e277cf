package sales

import (
	"context"
	"time"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
)

// BucketQuery selects sales by ledger bucket
type BucketQuery struct {
	Buckets    []Bucket
	CustomerID *uuid.UUID
	Now        time.Time
	Page       shared.PageRequest
	OrderBy    string // sale_date, due_date, grand_total, outstanding
	OrderDir   string
}

// SaleRepository persists Sale aggregates
type SaleRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Sale, error)
	Create(ctx context.Context, sale *Sale) error
	// SaveWithLock writes the ledger fields if the stored version is sale.Version-1
	SaveWithLock(ctx context.Context, sale *Sale) error
	FindByBucket(ctx context.Context, q BucketQuery) ([]Sale, int64, error)
	// FindLegacy returns up to limit sales without recovery tracking, ordered by id after the given id
	FindLegacy(ctx context.Context, after uuid.UUID, limit int) ([]Sale, error)
	// FindOverdueCandidates returns tracked sales past due that are not yet marked overdue
	FindOverdueCandidates(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]Sale, error)
	// Scan visits every sale, optionally for one customer, in batches
	Scan(ctx context.Context, customerID *uuid.UUID, batchSize int, fn func([]Sale) error) error
}

// NumberGenerator issues unique human readable sale numbers
type NumberGenerator interface {
	Next(ctx context.Context, at time.Time) (string, error)
}
