// Command migrate manages the ledger schema and runs the ledger data jobs.
//
//	migrate up [--steps N]
//	migrate down [--steps N | --all]
//	migrate version
//	migrate force <version>
//	migrate create <name> [description]
//	migrate list | validate
//	migrate backfill            # MigrateExistingSales
//	migrate refresh-overdue
//	migrate seed --customers 20 --sales 200 --legacy 50
package main

import (
	"fmt"
	"os"

	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/erp/shopledger/internal/infrastructure/logger"
	"github.com/erp/shopledger/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "1.0.0"

var logLevel string

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Shop ledger schema and data maintenance",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// env is what every database command needs
type env struct {
	cfg *config.Config
	log *zap.Logger
	db  *persistence.Database
}

func newLogger() (*zap.Logger, error) {
	return logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
}

func openEnv() (*env, error) {
	log, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(logLevel))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Connected",
		zap.String("driver", cfg.Database.Driver),
		zap.String("database", cfg.Database.DBName),
	)
	return &env{cfg: cfg, log: log, db: db}, nil
}

func (e *env) Close() {
	_ = e.db.Close()
	_ = e.log.Sync()
}
