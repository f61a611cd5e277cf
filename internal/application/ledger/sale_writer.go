package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMaxRetries is the number of optimistic lock retries before a conflict is reported
const DefaultMaxRetries = 3

// saleWriter is the single write path for a sale's ledger fields.
//
// Every mutation runs under the per-sale lock, inside one transaction, on a
// freshly loaded sale. A version conflict means a writer bypassed the lock
// (another process without the shared lock backend); the whole unit is re-run.
type saleWriter struct {
	scope      TransactionScope
	locker     Locker
	maxRetries int
	metrics    Metrics
	logger     *zap.Logger
}

func newSaleWriter(scope TransactionScope, locker Locker, maxRetries int, metrics Metrics, logger *zap.Logger) *saleWriter {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &saleWriter{
		scope:      scope,
		locker:     locker,
		maxRetries: maxRetries,
		metrics:    metrics,
		logger:     logger,
	}
}

// saleMutation changes a sale (and related rows) within the transaction
type saleMutation func(ctx context.Context, repos TransactionalRepositories, sale *sales.Sale) error

// Mutate locks the sale, then runs fn in a transaction until it commits without a version conflict
func (w *saleWriter) Mutate(ctx context.Context, op string, saleID uuid.UUID, fn saleMutation) error {
	start := time.Now()
	unlock, err := w.locker.Lock(ctx, SaleLockKey(saleID))
	if err != nil {
		return err
	}
	defer unlock()
	w.metrics.LockWaited(ctx, time.Since(start))

	for attempt := 0; ; attempt++ {
		err = w.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			sale, err := repos.Sales().FindByID(ctx, saleID)
			if err != nil {
				return err
			}
			return fn(ctx, repos, sale)
		})
		if err == nil || !errors.Is(err, shared.ErrOptimisticLock) {
			return err
		}
		if attempt >= w.maxRetries {
			return shared.NewConflictError(
				fmt.Sprintf("Sale %s is being modified concurrently, please retry", saleID), err)
		}
		w.metrics.OptimisticRetry(ctx, op)
		w.logger.Debug("optimistic lock conflict, retrying",
			zap.String("operation", op),
			zap.String("sale_id", saleID.String()),
			zap.Int("attempt", attempt+1),
		)
	}
}

// errNothingToDo aborts a mutation without writing and without reporting an error
var errNothingToDo = errors.New("nothing to do")
