package persistence

import (
	"context"
	"errors"

	"github.com/erp/shopledger/internal/domain/partner"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCustomerRepository implements partner.CustomerRepository using GORM
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewGormCustomerRepository creates a new GormCustomerRepository
func NewGormCustomerRepository(db *gorm.DB) *GormCustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by its ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Customer, error) {
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("customer", id.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs returns the customers that exist among ids, keyed by id
func (r *GormCustomerRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]partner.Customer, error) {
	out := make(map[uuid.UUID]partner.Customer, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.CustomerModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save creates or updates a customer
func (r *GormCustomerRepository) Save(ctx context.Context, customer *partner.Customer) error {
	return r.db.WithContext(ctx).Save(models.CustomerModelFromDomain(customer)).Error
}

// GormSupplierRepository implements partner.SupplierRepository using GORM
type GormSupplierRepository struct {
	db *gorm.DB
}

// NewGormSupplierRepository creates a new GormSupplierRepository
func NewGormSupplierRepository(db *gorm.DB) *GormSupplierRepository {
	return &GormSupplierRepository{db: db}
}

// FindByID finds a supplier by its ID
func (r *GormSupplierRepository) FindByID(ctx context.Context, id uuid.UUID) (*partner.Supplier, error) {
	var model models.SupplierModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("supplier", id.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save creates or updates a supplier
func (r *GormSupplierRepository) Save(ctx context.Context, supplier *partner.Supplier) error {
	return r.db.WithContext(ctx).Save(models.SupplierModelFromDomain(supplier)).Error
}

var (
	_ partner.CustomerRepository = (*GormCustomerRepository)(nil)
	_ partner.SupplierRepository = (*GormSupplierRepository)(nil)
)
