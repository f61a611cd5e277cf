package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/shopledger/internal/domain/partner"
	"github.com/erp/shopledger/internal/domain/recovery"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const idempotencyKeyPrefix = "recovery:"

// RecoveryService records payments against sales and changes their status.
// Both operations go through the per-sale write path, so concurrent
// payments on one sale are applied one after the other.
type RecoveryService struct {
	saleRepo       sales.SaleRepository
	recoveryRepo   recovery.Repository
	customerRepo   partner.CustomerRepository
	receipts       recovery.ReceiptNumberGenerator
	writer         *saleWriter
	idempotency    shared.IdempotencyStore
	eventPublisher shared.EventPublisher
	opts           Options
	metrics        Metrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewRecoveryService creates a new RecoveryService
func NewRecoveryService(
	scope TransactionScope,
	saleRepo sales.SaleRepository,
	recoveryRepo recovery.Repository,
	customerRepo partner.CustomerRepository,
	receipts recovery.ReceiptNumberGenerator,
	locker Locker,
	opts Options,
) *RecoveryService {
	opts = opts.withDefaults()
	return &RecoveryService{
		saleRepo:     saleRepo,
		recoveryRepo: recoveryRepo,
		customerRepo: customerRepo,
		receipts:     receipts,
		writer:       newSaleWriter(scope, locker, opts.MaxRetries, opts.Metrics, opts.Logger),
		opts:         opts,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		now:          opts.Now,
	}
}

// SetIdempotencyStore enables Idempotency-Key handling on AddRecovery
func (s *RecoveryService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetEventPublisher sets the event publisher for publishing domain events
func (s *RecoveryService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// AddRecovery records a payment against a sale.
// The amount may not exceed the sale's outstanding balance at the time the
// payment is applied; legacy sales are brought into the current format first.
func (s *RecoveryService) AddRecovery(ctx context.Context, req AddRecoveryRequest) (*RecoveryResult, error) {
	method := sales.PaymentMethod(req.PaymentMethod)
	if err := recovery.ValidatePayment(req.Amount, method, req.ReceivedBy); err != nil {
		return nil, err
	}
	customer, err := s.customerRepo.FindByID(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" && s.idempotency != nil {
		claimed, err := s.idempotency.MarkProcessed(ctx, idempotencyKeyPrefix+key, s.opts.IdempotencyTTL)
		if err != nil {
			return nil, fmt.Errorf("claim idempotency key: %w", err)
		}
		if !claimed {
			return s.replay(ctx, key, customer)
		}
	}

	result, err := s.addRecovery(ctx, req, method, key, customer)
	if err != nil {
		if key != "" && s.idempotency != nil {
			if relErr := s.idempotency.Release(ctx, idempotencyKeyPrefix+key); relErr != nil {
				s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
			}
		}
		// The unique key column is the last line of defence when no store is configured
		if key != "" && shared.IsKind(err, shared.KindConflict) {
			if replayed, replayErr := s.replay(ctx, key, customer); replayErr == nil {
				return replayed, nil
			}
		}
		return nil, err
	}
	return result, nil
}

func (s *RecoveryService) addRecovery(ctx context.Context, req AddRecoveryRequest, method sales.PaymentMethod, key string, customer *partner.Customer) (*RecoveryResult, error) {
	var (
		tx      *recovery.Transaction
		updated *sales.Sale
	)
	err := s.writer.Mutate(ctx, "add_recovery", req.SaleID, func(ctx context.Context, repos TransactionalRepositories, sale *sales.Sale) error {
		if sale.CustomerID != req.CustomerID {
			return shared.NewValidationError("SALE_CUSTOMER_MISMATCH",
				fmt.Sprintf("Sale %s does not belong to customer %s", sale.SaleNumber, customer.Name))
		}
		now := s.now()
		if err := sale.ApplyRecovery(req.Amount, req.Notes, now); err != nil {
			return err
		}
		t, err := recovery.NewTransaction(recovery.NewTransactionInput{
			ReceiptNumber:  s.receipts.Next(),
			Sale:           sale,
			CustomerName:   customer.Name,
			Amount:         req.Amount,
			PaymentMethod:  method,
			Reference:      req.Reference,
			Notes:          req.Notes,
			ReceivedBy:     req.ReceivedBy,
			IdempotencyKey: key,
			RecoveredAt:    now,
		})
		if err != nil {
			return err
		}
		if err := repos.Recoveries().Create(ctx, t); err != nil {
			return err
		}
		if err := repos.Sales().SaveWithLock(ctx, sale); err != nil {
			return err
		}
		tx, updated = t, sale
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("recovery recorded",
		zap.String("recovery_id", tx.ID.String()),
		zap.String("receipt_number", tx.ReceiptNumber),
		zap.String("sale_id", updated.ID.String()),
		zap.String("amount", tx.Amount.StringFixed(sales.MoneyPlaces)),
		zap.String("outstanding", updated.OutstandingAmount.Decimal.StringFixed(sales.MoneyPlaces)),
		zap.String("recovery_status", string(updated.RecoveryStatus)),
	)
	s.metrics.RecoveryRecorded(ctx, tx.PaymentMethod, tx.Amount)
	s.publish(ctx, recovery.NewRecordedEvent(tx, updated.OutstandingAmount.Decimal))

	return &RecoveryResult{
		Recovery: ToRecoveryResponse(tx),
		Sale:     ToSaleResponse(updated, s.now()),
		Customer: ToCustomerResponse(customer),
		Changed:  true,
	}, nil
}

// replay answers a retried request with the transaction the first attempt created
func (s *RecoveryService) replay(ctx context.Context, key string, customer *partner.Customer) (*RecoveryResult, error) {
	tx, err := s.recoveryRepo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewConflictError("A request with this Idempotency-Key is still being processed", nil)
		}
		return nil, err
	}
	if tx.CustomerID != customer.ID {
		return nil, shared.NewValidationError("IDEMPOTENCY_KEY_REUSED", "Idempotency-Key was used for a different customer")
	}
	sale, err := s.saleRepo.FindByID(ctx, tx.SaleID)
	if err != nil {
		return nil, err
	}
	return &RecoveryResult{
		Recovery: ToRecoveryResponse(tx),
		Sale:     ToSaleResponse(sale, s.now()),
		Customer: ToCustomerResponse(customer),
		Replayed: true,
	}, nil
}

// UpdateRecoveryStatus moves a recovery to a new status and re-folds its sale.
// After the change the sale's total recovered is the sum of its confirmed
// recoveries and the outstanding balance is recomputed from the totals, so
// cancelling a payment gives its amount back to the balance.
func (s *RecoveryService) UpdateRecoveryStatus(ctx context.Context, recoveryID uuid.UUID, req UpdateRecoveryStatusRequest) (*RecoveryResult, error) {
	to := recovery.Status(strings.TrimSpace(req.Status))
	if !to.IsValid() {
		return nil, shared.NewValidationError("INVALID_STATUS",
			fmt.Sprintf("Status must be one of confirmed, pending, cancelled; got %q", req.Status))
	}
	existing, err := s.recoveryRepo.FindByID(ctx, recoveryID)
	if err != nil {
		return nil, err
	}

	var (
		tx      *recovery.Transaction
		updated *sales.Sale
		from    recovery.Status
		changed bool
	)
	err = s.writer.Mutate(ctx, "update_recovery_status", existing.SaleID, func(ctx context.Context, repos TransactionalRepositories, sale *sales.Sale) error {
		t, err := repos.Recoveries().FindByID(ctx, recoveryID)
		if err != nil {
			return err
		}
		tx, updated, from = t, sale, t.Status

		now := s.now()
		moved, err := t.ChangeStatus(to, req.Notes, now)
		if err != nil {
			return err
		}
		changed = moved
		if !moved {
			return errNothingToDo
		}
		if to == recovery.StatusConfirmed {
			// Re-entering the confirmed set must fit the current balance
			if err := sale.CanAccept(t.Amount, now); err != nil {
				return err
			}
		}
		if err := repos.Recoveries().SaveWithLock(ctx, t); err != nil {
			return err
		}
		confirmed, err := repos.Recoveries().SumConfirmedBySale(ctx, sale.ID)
		if err != nil {
			return err
		}
		note := fmt.Sprintf("Recovery %s %s -> %s", t.ReceiptNumber, from, to)
		if extra := strings.TrimSpace(req.Notes); extra != "" {
			note += ": " + extra
		}
		if err := sale.Refold(confirmed, note, now); err != nil {
			return err
		}
		return repos.Sales().SaveWithLock(ctx, sale)
	})
	if err != nil && !errors.Is(err, errNothingToDo) {
		return nil, err
	}

	customerResp := CustomerResponse{ID: tx.CustomerID, Name: tx.CustomerName}
	if customer, err := s.customerRepo.FindByID(ctx, tx.CustomerID); err == nil {
		customerResp = ToCustomerResponse(customer)
	}
	result := &RecoveryResult{
		Recovery: ToRecoveryResponse(tx),
		Sale:     ToSaleResponse(updated, s.now()),
		Customer: customerResp,
		Changed:  changed,
	}
	if !changed {
		return result, nil
	}

	s.logger.Info("recovery status changed",
		zap.String("recovery_id", tx.ID.String()),
		zap.String("sale_id", updated.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("total_recovered", updated.TotalRecovered.Decimal.StringFixed(sales.MoneyPlaces)),
		zap.String("outstanding", updated.OutstandingAmount.Decimal.StringFixed(sales.MoneyPlaces)),
	)
	s.metrics.RecoveryStatusChanged(ctx, from, to, tx.Amount)
	s.publish(ctx, recovery.NewStatusChangedEvent(tx, from, updated.OutstandingAmount.Decimal))
	return result, nil
}

func (s *RecoveryService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish recovery events", zap.Error(err))
	}
}
