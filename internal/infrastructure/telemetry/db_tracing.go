package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracing registers otelgorm on a gorm DB and marks slow or failed statements on the span.
type DBTracing struct {
	enabled         bool
	dbSystem        string
	slowQueryThresh time.Duration
	tracerProvider  trace.TracerProvider
	logger          *zap.Logger
}

// NewDBTracing creates database tracing from the telemetry config.
// tp may be nil to use the global tracer provider.
func NewDBTracing(cfg config.TelemetryConfig, dbSystem string, tp trace.TracerProvider, logger *zap.Logger) *DBTracing {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracing{
		enabled:         cfg.Enabled && cfg.DBTraceEnabled,
		dbSystem:        dbSystem,
		slowQueryThresh: cfg.DBSlowQueryThresh,
		tracerProvider:  tp,
		logger:          logger,
	}
}

// Register installs the plugin and the timing callbacks. It is a no-op when disabled.
func (d *DBTracing) Register(db *gorm.DB) error {
	if !d.enabled {
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(d.dbSystem),
		otelgorm.WithoutQueryVariables(),
	}
	if d.tracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(d.tracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := d.registerCallbacks(db); err != nil {
		return err
	}

	d.logger.Info("Database tracing enabled",
		zap.String("db_system", d.dbSystem),
		zap.Duration("slow_query_threshold", d.slowQueryThresh),
	)
	return nil
}

// registrar is the Register half of gorm's unexported callback builder.
type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

func (d *DBTracing) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		name string
		r    registrar
		fn   func(*gorm.DB)
	}{
		{"before_create", cb.Create().Before("gorm:create"), markStart},
		{"before_query", cb.Query().Before("gorm:query"), markStart},
		{"before_update", cb.Update().Before("gorm:update"), markStart},
		{"before_delete", cb.Delete().Before("gorm:delete"), markStart},
		{"before_row", cb.Row().Before("gorm:row"), markStart},
		{"before_raw", cb.Raw().Before("gorm:raw"), markStart},
		{"after_create", cb.Create().After("gorm:create"), d.annotate},
		{"after_query", cb.Query().After("gorm:query"), d.annotate},
		{"after_update", cb.Update().After("gorm:update"), d.annotate},
		{"after_delete", cb.Delete().After("gorm:delete"), d.annotate},
		{"after_row", cb.Row().After("gorm:row"), d.annotate},
		{"after_raw", cb.Raw().After("gorm:raw"), d.annotate},
	}

	var errs []error
	for _, h := range hooks {
		errs = append(errs, h.r.Register("ledger_trace:"+h.name, h.fn))
	}
	return errors.Join(errs...)
}

type contextKey string

const queryStartTimeKey contextKey = "ledger_query_start_time"

func markStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// annotate adds row counts, errors and the slow query flag to the statement span.
func (d *DBTracing) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	startTime, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(startTime); elapsed > d.slowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", d.slowQueryThresh.Milliseconds()),
		))
	}
}
