package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/erp/shopledger/internal/infrastructure/migration"
	"github.com/erp/shopledger/migrations"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errSQLiteSchema = errors.New("versioned migrations need postgres; sqlite databases are created with 'migrate up'")

var (
	upSteps     int
	downSteps   int
	downAll     bool
	createDir   string
	validateDir string
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Long: `Apply pending migrations from the embedded migrations directory.

On sqlite the schema is created from the gorm models instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		if e.cfg.Database.Driver == "sqlite" {
			if err := e.db.AutoMigrate(); err != nil {
				return err
			}
			e.log.Info("SQLite schema created from models")
			return nil
		}
		return withMigrator(e, func(m *migration.Migrator) error {
			if upSteps > 0 {
				return m.Steps(upSteps)
			}
			return m.Up()
		})
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations (one by default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		return withMigrator(e, func(m *migration.Migrator) error {
			if downAll {
				return m.Down()
			}
			if downSteps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", downSteps)
			}
			return m.Steps(-downSteps)
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		return withMigrator(e, func(m *migration.Migrator) error {
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			e.log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
			if dirty {
				e.log.Warn("Database is dirty; fix the failed migration, then run 'migrate force <version>'")
			}
			return nil
		})
	},
}

var forceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		return withMigrator(e, func(m *migration.Migrator) error {
			return m.Force(v)
		})
	},
}

var createCmd = &cobra.Command{
	Use:   "create <name> [description]",
	Short: "Create a new pair of up/down migration files",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		description := ""
		if len(args) == 2 {
			description = args[1]
		}
		mf, err := migration.CreateMigration(createDir, args[0], description)
		if err != nil {
			return err
		}
		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the embedded migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := migration.ListMigrations(migrations.FS)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check that every migration has an up and a down file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateDir != "" {
			if err := migration.Validate(os.DirFS(validateDir)); err != nil {
				return err
			}
		}
		if err := migration.Validate(migrations.FS); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations are valid")
		return nil
	},
}

func init() {
	upCmd.Flags().IntVar(&upSteps, "steps", 0, "Apply only N migrations")
	downCmd.Flags().IntVar(&downSteps, "steps", 1, "Roll back N migrations")
	downCmd.Flags().BoolVar(&downAll, "all", false, "Roll back every migration")
	createCmd.Flags().StringVar(&createDir, "dir", "migrations", "Directory to write migration files to")
	validateCmd.Flags().StringVar(&validateDir, "dir", "", "Also validate a directory on disk")

	rootCmd.AddCommand(upCmd, downCmd, versionCmd, forceCmd, createCmd, listCmd, validateCmd)
}

func withMigrator(e *env, fn func(m *migration.Migrator) error) error {
	if e.cfg.Database.Driver == "sqlite" {
		return errSQLiteSchema
	}
	sqlDB, err := e.db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	m, err := migration.New(sqlDB, migrations.FS, e.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			e.log.Warn("Error closing migrator", zap.Error(err))
		}
	}()
	return fn(m)
}
