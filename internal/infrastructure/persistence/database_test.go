package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/shopledger/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockDatabase creates a Database instance with a mocked SQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	// gorm pings once on open
	mock.ExpectPing()
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return &Database{DB: gormDB}, mock, mockDB
}

func TestDialectorFor(t *testing.T) {
	t.Run("postgres by default", func(t *testing.T) {
		d, err := dialectorFor(&config.DatabaseConfig{Host: "localhost", Port: 5432})
		require.NoError(t, err)
		assert.Equal(t, "postgres", d.Name())
	})

	t.Run("sqlite", func(t *testing.T) {
		d, err := dialectorFor(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", d.Name())
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := dialectorFor(&config.DatabaseConfig{Driver: "oracle"})
		assert.ErrorContains(t, err, "oracle")
	})
}

func TestNewDatabase_SQLite(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:", MaxIdleConns: 1})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.AutoMigrate())
	assert.True(t, db.DB.Migrator().HasTable("sales"))
	assert.True(t, db.DB.Migrator().HasTable("recoveries"))
	assert.True(t, db.DB.Migrator().HasTable("sale_counters"))

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectPing()
	assert.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectPing().WillReturnError(assert.AnError)
	assert.ErrorIs(t, db.Ping(context.Background()), assert.AnError)
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Transaction(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE "sales" SET "notes"=\$1`).
			WithArgs("n", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
			return tx.Table("sales").Where("id = ?", "x").Update("notes", "n").Error
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.Transaction(context.Background(), func(tx *gorm.DB) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.WaitDuration, time.Duration(0))
}
