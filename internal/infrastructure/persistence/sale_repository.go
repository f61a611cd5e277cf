package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/shopledger/internal/domain/sales"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSaleRepository implements sales.SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// FindByID finds a sale by its ID
func (r *GormSaleRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Sale, error) {
	var model models.SaleModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("sale", id.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new sale
func (r *GormSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	model := models.SaleModelFromDomain(sale)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError("sale number "+sale.SaleNumber+" already used", err)
		}
		return err
	}
	return nil
}

// SaveWithLock writes the ledger fields of a sale if nobody else changed it since it was read.
// The caller must have incremented the version.
func (r *GormSaleRepository) SaveWithLock(ctx context.Context, sale *sales.Sale) error {
	// Only ledger columns are written; the financial base of a sale is fixed at insert.
	m := models.SaleModelFromDomain(sale)
	result := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Where("id = ? AND version = ?", sale.ID, sale.Version-1).
		Updates(map[string]interface{}{
			"notes":              m.Notes,
			"payment_status":     m.PaymentStatus,
			"recovery_status":    m.RecoveryStatus,
			"total_recovered":    m.TotalRecovered,
			"outstanding_amount": m.OutstandingAmount,
			"due_date":           m.DueDate,
			"last_recovery_date": m.LastRecoveryDate,
			"recovery_notes":     m.RecoveryNotes,
			"version":            m.Version,
			"updated_at":         m.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "Sale was modified by another transaction")
	}
	return nil
}

// FindByBucket returns one page of sales in the requested buckets and the total match count
func (r *GormSaleRepository) FindByBucket(ctx context.Context, q sales.BucketQuery) ([]sales.Sale, int64, error) {
	page := q.Page.Normalize()
	query := bucketScope(q.Buckets, q.Now)(r.db.WithContext(ctx).Model(&models.SaleModel{}))
	if q.CustomerID != nil {
		query = query.Where("customer_id = ?", *q.CustomerID)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []sales.Sale{}, 0, nil
	}

	var rows []models.SaleModel
	if err := query.
		Order(saleOrder(q.OrderBy, q.OrderDir)).
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDomainSales(rows), total, nil
}

// FindLegacy returns sales without recovery tracking in id order
func (r *GormSaleRepository) FindLegacy(ctx context.Context, after uuid.UUID, limit int) ([]sales.Sale, error) {
	var rows []models.SaleModel
	if err := r.db.WithContext(ctx).
		Where("recovery_status IS NULL AND id > ?", after).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainSales(rows), nil
}

// FindOverdueCandidates returns tracked sales with a balance that are past due but not marked overdue
func (r *GormSaleRepository) FindOverdueCandidates(ctx context.Context, now time.Time, after uuid.UUID, limit int) ([]sales.Sale, error) {
	now = now.UTC()
	var rows []models.SaleModel
	if err := r.db.WithContext(ctx).
		Where("recovery_status IS NOT NULL AND recovery_status <> ?", string(sales.RecoveryStatusOverdue)).
		Where("COALESCE(outstanding_amount, 0) > 0").
		Where("((due_date IS NOT NULL AND due_date < ?) OR (due_date IS NULL AND sale_date < ?))",
			now, now.Add(-sales.GracePeriod)).
		Where("id > ?", after).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainSales(rows), nil
}

// Scan visits all sales in batches of batchSize
func (r *GormSaleRepository) Scan(ctx context.Context, customerID *uuid.UUID, batchSize int, fn func([]sales.Sale) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	query := r.db.WithContext(ctx).Model(&models.SaleModel{})
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	}
	var rows []models.SaleModel
	result := query.FindInBatches(&rows, batchSize, func(_ *gorm.DB, _ int) error {
		return fn(toDomainSales(rows))
	})
	return result.Error
}

func toDomainSales(rows []models.SaleModel) []sales.Sale {
	out := make([]sales.Sale, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormSaleRepository implements SaleRepository
var _ sales.SaleRepository = (*GormSaleRepository)(nil)
