package partner

import (
	"context"
	"strings"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Customer is the read model of a buyer as the ledger sees it
type Customer struct {
	shared.BaseEntity
	Name    string
	Phone   string
	Email   string
	Address string
}

// NewCustomer creates a customer with required fields
func NewCustomer(name, phone, email string) (*Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("INVALID_NAME", "Customer name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewValidationError("INVALID_NAME", "Customer name cannot exceed 200 characters")
	}
	return &Customer{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Phone:      strings.TrimSpace(phone),
		Email:      strings.TrimSpace(email),
	}, nil
}

// CustomerRepository resolves customers by id
type CustomerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Customer, error)
	Save(ctx context.Context, customer *Customer) error
}
