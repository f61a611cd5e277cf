// Command worker consumes ledger tasks from the asynq queue: forwarded
// SaleCreated events feed price history, and the cron-scheduled overdue
// refresh persists overdue flags.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/erp/shopledger/internal/application/ledger"
	"github.com/erp/shopledger/internal/infrastructure/cache"
	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/erp/shopledger/internal/infrastructure/event"
	"github.com/erp/shopledger/internal/infrastructure/lock"
	"github.com/erp/shopledger/internal/infrastructure/logger"
	"github.com/erp/shopledger/internal/infrastructure/persistence"
	"github.com/erp/shopledger/internal/infrastructure/queue"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()
	log = log.With(zap.String("component", "worker"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("Worker requires Redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	// The worker shares sale locks with the API when the lock backend is Redis
	var locker ledger.Locker = lock.NewKeyedMutex(cfg.Ledger.LockWait)
	if cfg.Ledger.LockBackend == "redis" {
		locker = lock.NewRedisLocker(redisClient, cfg.Ledger.LockTTL, cfg.Ledger.LockWait, lock.WithLogger(log))
	}

	opts := ledger.Options{
		MaxRetries: cfg.Ledger.MaxRetries,
		BatchSize:  cfg.Ledger.MigrationBatchSize,
		Logger:     log,
	}
	saleRepo := persistence.NewGormSaleRepository(db.DB)
	scope := persistence.NewGormTransactionScope(db.DB, cfg.Ledger.SaleNumberPrefix)
	migration := ledger.NewMigrationService(scope, saleRepo, locker, opts)

	// asynq redelivers on failure; the idempotent wrapper keeps price history single-entry
	store := cache.NewRedisIdempotencyStore(redisClient, "")
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewIdempotentHandler("price_history",
		ledger.NewPriceHistoryHandler(persistence.NewGormPriceHistorySink(db.DB), log),
		store, log,
	))

	worker, err := queue.NewWorker(queue.WorkerConfig{
		RedisOpt:   queue.RedisConnOpt(cfg.Redis),
		Queue:      cfg.Queue,
		Serializer: event.NewLedgerSerializer(),
		Dispatcher: bus,
		Refresh: func(ctx context.Context) error {
			_, err := migration.RefreshOverdueStatuses(ctx)
			return err
		},
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create worker", zap.Error(err))
	}

	if err := worker.Run(ctx); err != nil {
		log.Fatal("Worker stopped with error", zap.Error(err))
	}
}
