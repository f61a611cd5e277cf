package logger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes GORM statements through zap.
//
// Stale-version updates on the ledger come back as zero affected rows, not as
// errors, so they are visible only at debug. Unique violations on the
// idempotency key and receipt number are expected under concurrent replays and
// are logged at warn instead of error.
type GormLogger struct {
	log           *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
	quiet         []error
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which a statement is logged as slow.
// Zero disables slow query logging.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slowThreshold = threshold
	}
}

// WithQuietErrors replaces the errors that are never logged.
func WithQuietErrors(errs ...error) GormLoggerOption {
	return func(l *GormLogger) {
		l.quiet = errs
	}
}

// NewGormLogger creates a GORM logger backed by zap
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		log:           zapLogger.Named("gorm"),
		level:         level,
		slowThreshold: 200 * time.Millisecond,
		quiet:         []error{gorm.ErrRecordNotFound},
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, data...)
	}
}

// Trace logs one executed statement
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= gormlogger.Error:
		if l.isQuiet(err) {
			return
		}
		fields := append(l.statementFields(ctx, elapsed, fc), zap.Error(err))
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			l.log.Warn("SQL unique violation", fields...)
			return
		}
		l.log.Error("SQL error", fields...)

	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.log.Warn("Slow SQL", append(l.statementFields(ctx, elapsed, fc),
			zap.Duration("threshold", l.slowThreshold))...)

	case l.level >= gormlogger.Info:
		l.log.Debug("SQL", l.statementFields(ctx, elapsed, fc)...)
	}
}

func (l *GormLogger) isQuiet(err error) bool {
	for _, q := range l.quiet {
		if errors.Is(err, q) {
			return true
		}
	}
	return false
}

func (l *GormLogger) statementFields(ctx context.Context, elapsed time.Duration, fc func() (string, int64)) []zap.Field {
	sql, rows := fc()
	fields := []zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetTraceID(ctx); id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	return fields
}

// MapGormLogLevel maps the application log level to a GORM log level.
// Statements are only traced at debug.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
