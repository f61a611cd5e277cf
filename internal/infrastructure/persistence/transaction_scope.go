package persistence

import (
	"context"

	"github.com/erp/shopledger/internal/application/ledger"
	"github.com/erp/shopledger/internal/domain/recovery"
	"github.com/erp/shopledger/internal/domain/sales"
	"gorm.io/gorm"
)

// GormTransactionScope implements ledger.TransactionScope using GORM transactions.
type GormTransactionScope struct {
	db               *gorm.DB
	saleNumberPrefix string
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, saleNumberPrefix string) *GormTransactionScope {
	return &GormTransactionScope{db: db, saleNumberPrefix: saleNumberPrefix}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos ledger.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx, prefix: s.saleNumberPrefix})
	})
}

type gormTransactionalRepositories struct {
	tx     *gorm.DB
	prefix string
}

func (r *gormTransactionalRepositories) Sales() sales.SaleRepository {
	return NewGormSaleRepository(r.tx)
}

func (r *gormTransactionalRepositories) Recoveries() recovery.Repository {
	return NewGormRecoveryRepository(r.tx)
}

func (r *gormTransactionalRepositories) SaleNumbers() sales.NumberGenerator {
	return NewGormSaleNumberGenerator(r.tx, r.prefix)
}

// Ensure GormTransactionScope implements TransactionScope
var _ ledger.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ ledger.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
