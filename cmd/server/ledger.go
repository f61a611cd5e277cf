package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/shopledger/internal/application/ledger"
	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/cache"
	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/erp/shopledger/internal/infrastructure/event"
	"github.com/erp/shopledger/internal/infrastructure/idgen"
	"github.com/erp/shopledger/internal/infrastructure/lock"
	"github.com/erp/shopledger/internal/infrastructure/persistence"
	"github.com/erp/shopledger/internal/infrastructure/queue"
	"github.com/erp/shopledger/internal/infrastructure/scheduler"
	"github.com/erp/shopledger/internal/infrastructure/telemetry"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ledgerDeps owns the ledger services and everything they need at runtime
type ledgerDeps struct {
	sales      *ledger.SaleService
	recoveries *ledger.RecoveryService
	queries    *ledger.QueryService
	migration  *ledger.MigrationService

	redis       *redis.Client
	idempotency shared.IdempotencyStore
	bus         *event.InMemoryEventBus
	queueClient *asynq.Client
	trigger     *scheduler.DailyTrigger
	logger      *zap.Logger
}

func buildLedger(ctx context.Context, cfg *config.Config, db *persistence.Database, mp *telemetry.MeterProvider, log *zap.Logger) (*ledgerDeps, error) {
	d := &ledgerDeps{logger: log}

	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			if cfg.Ledger.LockBackend == "redis" || cfg.Ledger.PriceHistoryMode == "queue" {
				return nil, err
			}
			log.Warn("Redis unavailable, continuing with in-process backends", zap.Error(err))
		}
		d.redis = client
	}

	var locker ledger.Locker
	switch cfg.Ledger.LockBackend {
	case "redis":
		if d.redis == nil {
			return nil, errors.New("ledger.lock_backend=redis requires redis.enabled")
		}
		locker = lock.NewRedisLocker(d.redis, cfg.Ledger.LockTTL, cfg.Ledger.LockWait, lock.WithLogger(log))
	default:
		locker = lock.NewKeyedMutex(cfg.Ledger.LockWait)
	}

	storeOpts := []cache.IdempotencyStoreFactoryOption{cache.WithLogger(log)}
	if d.redis != nil {
		storeOpts = append(storeOpts, cache.WithClient(d.redis))
	}
	store, err := cache.NewIdempotencyStoreFactory(cfg.Redis, storeOpts...).CreateStore(ctx)
	if err != nil {
		return nil, err
	}
	d.idempotency = store

	receipts, err := idgen.NewReceiptGenerator(cfg.Ledger.NodeID, "")
	if err != nil {
		return nil, err
	}
	metrics, err := telemetry.NewLedgerMetrics(mp)
	if err != nil {
		return nil, fmt.Errorf("ledger metrics: %w", err)
	}

	opts := ledger.Options{
		MaxRetries:     cfg.Ledger.MaxRetries,
		IdempotencyTTL: cfg.Ledger.IdempotencyTTL,
		BatchSize:      cfg.Ledger.MigrationBatchSize,
		Metrics:        metrics,
		Logger:         log,
	}

	customers := persistence.NewGormCustomerRepository(db.DB)
	suppliers := persistence.NewGormSupplierRepository(db.DB)
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	recoveryRepo := persistence.NewGormRecoveryRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB, cfg.Ledger.SaleNumberPrefix)

	d.sales = ledger.NewSaleService(scope, saleRepo, customers, suppliers, locker, opts)
	d.recoveries = ledger.NewRecoveryService(scope, saleRepo, recoveryRepo, customers, receipts, locker, opts)
	d.recoveries.SetIdempotencyStore(store)
	d.queries = ledger.NewQueryService(saleRepo, recoveryRepo, customers, opts)
	d.migration = ledger.NewMigrationService(scope, saleRepo, locker, opts)

	d.bus = event.NewInMemoryEventBus(log)
	if cfg.Ledger.PriceHistoryMode == "queue" {
		d.queueClient = asynq.NewClient(queue.RedisConnOpt(cfg.Redis))
		forwarder := queue.NewEventForwarder(d.queueClient, event.NewLedgerSerializer(), cfg.Queue, log, sales.EventTypeSaleCreated)
		d.bus.Subscribe(forwarder)
		log.Info("Price history forwarded to queue", zap.String("queue", cfg.Queue.Queue))
	} else {
		priceHistory := ledger.NewPriceHistoryHandler(persistence.NewGormPriceHistorySink(db.DB), log)
		d.bus.Subscribe(event.NewIdempotentHandler("price_history", priceHistory, store, log))
		log.Info("Price history recorded inline")
	}
	d.sales.SetEventPublisher(d.bus)
	d.recoveries.SetEventPublisher(d.bus)

	if hour, minute, ok := cfg.Ledger.OverdueRefreshTime(); ok {
		d.trigger, err = scheduler.NewDailyTrigger(scheduler.DailyTriggerConfig{
			Name:   "refresh_overdue",
			Hour:   hour,
			Minute: minute,
		}, func(ctx context.Context) error {
			_, err := d.migration.RefreshOverdueStatuses(ctx)
			return err
		}, log)
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Start starts the event bus and the in-process overdue refresh
func (d *ledgerDeps) Start(ctx context.Context) error {
	if err := d.bus.Start(ctx); err != nil {
		return err
	}
	if d.trigger != nil {
		if err := d.trigger.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close stops background work and releases connections in reverse order
func (d *ledgerDeps) Close(ctx context.Context) {
	if d.trigger != nil {
		if err := d.trigger.Stop(ctx); err != nil {
			d.logger.Error("Error stopping overdue refresh", zap.Error(err))
		}
	}
	if err := d.bus.Stop(ctx); err != nil {
		d.logger.Error("Error stopping event bus", zap.Error(err))
	}
	if d.queueClient != nil {
		_ = d.queueClient.Close()
	}
	if d.idempotency != nil {
		_ = d.idempotency.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}
