package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/erp/shopledger/internal/infrastructure/logger"
	"github.com/erp/shopledger/internal/infrastructure/persistence"
	"github.com/erp/shopledger/internal/infrastructure/telemetry"
	"github.com/erp/shopledger/internal/interfaces/http/handler"
	"github.com/erp/shopledger/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "1.0.0"

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry providers are no-ops unless cfg.Telemetry.Enabled
	tp, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	mp, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() { _ = mp.Shutdown(context.Background()) }()

	lp, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() { _ = lp.Shutdown(context.Background()) }()
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	log = lp.Bridge(log, cfg.Telemetry.ServiceName, level)

	profiler, err := telemetry.NewProfiler(cfg.Telemetry, log)
	if err != nil {
		log.Warn("Profiler not started", zap.Error(err))
	} else {
		profiler.EnableSpanProfiles(tp)
		defer func() { _ = profiler.Stop() }()
	}

	log.Info("Starting shop ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
	)
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.NewDBTracing(cfg.Telemetry, cfg.Database.Driver, nil, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	deps, err := buildLedger(ctx, cfg, db, mp, log)
	if err != nil {
		log.Fatal("Failed to assemble ledger", zap.Error(err))
	}
	defer deps.Close(context.Background())

	if err := deps.Start(ctx); err != nil {
		log.Fatal("Failed to start background jobs", zap.Error(err))
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := []handler.ReadinessCheck{{Name: "database", Ping: db.Ping}}
	if deps.redis != nil {
		checks = append(checks, handler.ReadinessCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return deps.redis.Ping(ctx).Err() },
		})
	}

	engine, err := router.NewEngine(router.EngineConfig{
		HTTP:          cfg.HTTP,
		Production:    cfg.App.Env == "production",
		ServiceName:   cfg.Telemetry.ServiceName,
		Tracing:       cfg.Telemetry.Enabled,
		MeterProvider: mp,
		Logger:        log,
	}, router.Handlers{
		Sales:      handler.NewSaleHandler(deps.sales, deps.queries, log),
		Recoveries: handler.NewRecoveryHandler(deps.recoveries, deps.queries, deps.migration, log),
		Health:     handler.NewHealthHandler(cfg.App.Name, version, log, checks...),
	})
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}
