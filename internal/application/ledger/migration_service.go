package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MigrationService converts legacy sales and keeps stored overdue flags current
type MigrationService struct {
	saleRepo  sales.SaleRepository
	writer    *saleWriter
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// NewMigrationService creates a new MigrationService
func NewMigrationService(scope TransactionScope, saleRepo sales.SaleRepository, locker Locker, opts Options) *MigrationService {
	opts = opts.withDefaults()
	return &MigrationService{
		saleRepo:  saleRepo,
		writer:    newSaleWriter(scope, locker, opts.MaxRetries, opts.Metrics, opts.Logger),
		batchSize: opts.BatchSize,
		logger:    opts.Logger,
		now:       opts.Now,
	}
}

// MigrateExistingSales backfills the recovery fields of every legacy sale.
//
// Sales are read in id order with a keyset cursor and each one is written
// through the per-sale path, so a concurrent recovery on the same sale either
// migrates it first or finds it already migrated. Running the job twice
// changes nothing the second time.
func (s *MigrationService) MigrateExistingSales(ctx context.Context) (*MigrationResult, error) {
	result := &MigrationResult{}
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch, err := s.saleRepo.FindLegacy(ctx, after, s.batchSize)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			id := batch[i].ID
			after = id
			result.Scanned++

			err := s.writer.Mutate(ctx, "migrate_sale", id, func(ctx context.Context, repos TransactionalRepositories, sale *sales.Sale) error {
				if !sale.Migrate(s.now()) {
					return errNothingToDo
				}
				return repos.Sales().SaveWithLock(ctx, sale)
			})
			switch {
			case err == nil:
				result.Migrated++
			case errors.Is(err, errNothingToDo):
				result.Skipped++
			case ctx.Err() != nil:
				return result, ctx.Err()
			default:
				result.Failed++
				s.logger.Error("failed to migrate sale", zap.String("sale_id", id.String()), zap.Error(err))
			}
		}
		if len(batch) < s.batchSize {
			break
		}
	}

	s.logger.Info("legacy sale migration finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("migrated", result.Migrated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// RefreshOverdueStatuses stores the overdue status on tracked sales whose due date has passed
func (s *MigrationService) RefreshOverdueStatuses(ctx context.Context) (*RefreshResult, error) {
	result := &RefreshResult{}
	now := s.now()
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		batch, err := s.saleRepo.FindOverdueCandidates(ctx, now, after, s.batchSize)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			id := batch[i].ID
			after = id
			result.Scanned++

			err := s.writer.Mutate(ctx, "refresh_overdue", id, func(ctx context.Context, repos TransactionalRepositories, sale *sales.Sale) error {
				if !sale.MarkOverdue(now) {
					return errNothingToDo
				}
				return repos.Sales().SaveWithLock(ctx, sale)
			})
			switch {
			case err == nil:
				result.Updated++
			case errors.Is(err, errNothingToDo):
				result.Skipped++
			case ctx.Err() != nil:
				return result, ctx.Err()
			default:
				result.Failed++
				s.logger.Error("failed to mark sale overdue", zap.String("sale_id", id.String()), zap.Error(err))
			}
		}
		if len(batch) < s.batchSize {
			break
		}
	}

	s.logger.Info("overdue refresh finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
