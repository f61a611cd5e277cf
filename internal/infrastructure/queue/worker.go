package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/erp/shopledger/internal/infrastructure/event"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Dispatcher runs every local handler for an event and reports their failures
type Dispatcher interface {
	Dispatch(ctx context.Context, e shared.DomainEvent) error
}

// RefreshFunc persists overdue flags. It is the ledger's RefreshOverdueStatuses.
type RefreshFunc func(ctx context.Context) error

// WorkerConfig collects dependencies required to bootstrap the worker
type WorkerConfig struct {
	RedisOpt   asynq.RedisConnOpt
	Queue      config.QueueConfig
	Serializer *event.EventSerializer
	Dispatcher Dispatcher
	Refresh    RefreshFunc
	Logger     *zap.Logger
}

// Worker wraps the asynq server and the optional cron scheduler
type Worker struct {
	server     *asynq.Server
	mux        *asynq.ServeMux
	scheduler  *asynq.Scheduler
	serializer *event.EventSerializer
	dispatcher Dispatcher
	refresh    RefreshFunc
	logger     *zap.Logger
}

// NewWorker constructs a Worker. The overdue refresh is registered on the
// scheduler when both a cron spec and a refresh func are given.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Serializer == nil || cfg.Dispatcher == nil {
		return nil, errors.New("queue worker: serializer and dispatcher are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Worker{
		serializer: cfg.Serializer,
		dispatcher: cfg.Dispatcher,
		refresh:    cfg.Refresh,
		logger:     logger,
	}
	w.server = asynq.NewServer(cfg.RedisOpt, asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
		Queues: map[string]int{
			cfg.Queue.Queue: 1,
		},
		Logger: logger.Sugar(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Warn("task failed",
				zap.String("task_type", task.Type()),
				zap.Error(err),
			)
		}),
	})
	w.mux = asynq.NewServeMux()
	w.mux.HandleFunc(TaskTypeDomainEvent, w.HandleEvent)
	if cfg.Refresh != nil {
		w.mux.HandleFunc(TaskTypeRefreshOverdue, w.HandleRefreshOverdue)
	}

	if cfg.Queue.OverdueRefreshCron != "" && cfg.Refresh != nil {
		w.scheduler = asynq.NewScheduler(cfg.RedisOpt, &asynq.SchedulerOpts{
			Location: time.UTC,
			Logger:   logger.Sugar(),
		})
		if _, err := w.scheduler.Register(cfg.Queue.OverdueRefreshCron, NewRefreshOverdueTask(cfg.Queue)); err != nil {
			return nil, fmt.Errorf("register overdue refresh: %w", err)
		}
	}
	return w, nil
}

// HandleEvent decodes a forwarded event and dispatches it locally.
// An undecodable payload is never retried.
func (w *Worker) HandleEvent(ctx context.Context, t *asynq.Task) error {
	e, err := w.serializer.Unmarshal(t.Payload())
	if err != nil {
		w.logger.Error("dropping undecodable event task", zap.Error(err))
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := w.dispatcher.Dispatch(ctx, e); err != nil {
		return fmt.Errorf("dispatch %s %s: %w", e.EventType(), e.EventID(), err)
	}
	return nil
}

// HandleRefreshOverdue runs the overdue refresh
func (w *Worker) HandleRefreshOverdue(ctx context.Context, _ *asynq.Task) error {
	if w.refresh == nil {
		return fmt.Errorf("overdue refresh not configured: %w", asynq.SkipRetry)
	}
	return w.refresh(ctx)
}

// Run processes tasks until ctx is cancelled
func (w *Worker) Run(ctx context.Context) error {
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	if err := w.server.Start(w.mux); err != nil {
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
	w.logger.Info("queue worker started")

	<-ctx.Done()
	if w.scheduler != nil {
		w.scheduler.Shutdown()
	}
	w.server.Shutdown()
	w.logger.Info("queue worker stopped")
	return nil
}
