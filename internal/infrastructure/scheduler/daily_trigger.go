// Package scheduler runs ledger maintenance jobs inside the API process.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidConfig is returned for an out-of-range trigger time
var ErrInvalidConfig = errors.New("invalid scheduler configuration")

// Job is one unit of scheduled work
type Job func(ctx context.Context) error

// DailyTriggerConfig holds configuration for a daily trigger
type DailyTriggerConfig struct {
	Name   string
	Hour   int // UTC
	Minute int

	// CheckInterval is how often the clock is compared with the trigger time
	CheckInterval time.Duration
}

// DailyTrigger runs a job once per UTC day at a fixed time
type DailyTrigger struct {
	config DailyTriggerConfig
	job    Job
	logger *zap.Logger
	now    func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewDailyTrigger creates a new daily trigger
func NewDailyTrigger(config DailyTriggerConfig, job Job, logger *zap.Logger) (*DailyTrigger, error) {
	if config.Hour < 0 || config.Hour > 23 || config.Minute < 0 || config.Minute > 59 {
		return nil, ErrInvalidConfig
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyTrigger{
		config: config,
		job:    job,
		logger: logger.With(zap.String("job", config.Name)),
		now:    time.Now,
	}, nil
}

// Start starts the trigger loop
func (d *DailyTrigger) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	d.wg.Add(1)
	go d.runLoop(ctx)

	d.logger.Info("daily trigger started",
		zap.Int("hour", d.config.Hour),
		zap.Int("minute", d.config.Minute),
		zap.Duration("check_interval", d.config.CheckInterval),
	)
	return nil
}

// Stop stops the trigger and waits for a running job up to ctx
func (d *DailyTrigger) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = false
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("daily trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *DailyTrigger) runLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.checkAndRun(ctx)
		}
	}
}

// checkAndRun runs the job when the trigger minute has been reached and it has not run today.
// Reaching the minute late (a slow tick, a restart) still runs the job the same day.
func (d *DailyTrigger) checkAndRun(ctx context.Context) bool {
	now := d.now().UTC()
	today := now.Format("2006-01-02")

	d.mu.Lock()
	if d.lastRunDate == today {
		d.mu.Unlock()
		return false
	}
	due := time.Date(now.Year(), now.Month(), now.Day(), d.config.Hour, d.config.Minute, 0, 0, time.UTC)
	if now.Before(due) {
		d.mu.Unlock()
		return false
	}
	d.lastRunDate = today
	d.mu.Unlock()

	start := time.Now()
	if err := d.job(ctx); err != nil {
		d.logger.Error("scheduled job failed", zap.Error(err))
		return true
	}
	d.logger.Info("scheduled job finished", zap.Duration("duration", time.Since(start)))
	return true
}
