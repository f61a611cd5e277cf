package ledger

import (
	"context"

	"github.com/erp/shopledger/internal/domain/recovery"
	"github.com/erp/shopledger/internal/domain/sales"
)

// TransactionScope provides transactional access to the ledger repositories.
// All repository operations inside Execute commit or roll back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides repositories bound to one transaction.
//
// A sale and its recovery log are written in the same transaction so that
// sale.totalRecovered always equals the sum of its confirmed recoveries.
type TransactionalRepositories interface {
	// Sales returns the sale repository scoped to the current transaction
	Sales() sales.SaleRepository
	// Recoveries returns the recovery repository scoped to the current transaction
	Recoveries() recovery.Repository
	// SaleNumbers returns a sale number generator whose counter bump commits with the sale
	SaleNumbers() sales.NumberGenerator
}
