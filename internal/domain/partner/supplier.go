package partner

import (
	"context"
	"strings"

	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Supplier is the read model of the party goods were sourced from
type Supplier struct {
	shared.BaseEntity
	Name  string
	Phone string
	Email string
}

// NewSupplier creates a supplier with required fields
func NewSupplier(name, phone, email string) (*Supplier, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewValidationError("INVALID_NAME", "Supplier name cannot be empty")
	}
	return &Supplier{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Phone:      strings.TrimSpace(phone),
		Email:      strings.TrimSpace(email),
	}, nil
}

// SupplierRepository resolves suppliers by id
type SupplierRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Supplier, error)
	Save(ctx context.Context, supplier *Supplier) error
}
