package ledger

import (
	"time"

	"go.uber.org/zap"
)

// Options tunes the ledger services
type Options struct {
	// MaxRetries bounds optimistic lock retries per mutation
	MaxRetries int
	// IdempotencyTTL is how long an Idempotency-Key is remembered
	IdempotencyTTL time.Duration
	// BatchSize is the page size of the migration and overdue jobs
	BatchSize int
	Metrics   Metrics
	Logger    *zap.Logger
	// Now is the clock; tests pin it
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.IdempotencyTTL <= 0 {
		o.IdempotencyTTL = 24 * time.Hour
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 200
	}
	if o.Metrics == nil {
		o.Metrics = noopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
