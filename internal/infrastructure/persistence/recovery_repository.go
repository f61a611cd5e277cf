package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/shopledger/internal/domain/recovery"
	"github.com/erp/shopledger/internal/domain/shared"
	"github.com/erp/shopledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormRecoveryRepository implements recovery.Repository using GORM
type GormRecoveryRepository struct {
	db *gorm.DB
}

// NewGormRecoveryRepository creates a new GormRecoveryRepository
func NewGormRecoveryRepository(db *gorm.DB) *GormRecoveryRepository {
	return &GormRecoveryRepository{db: db}
}

// FindByID finds a recovery transaction by its ID
func (r *GormRecoveryRepository) FindByID(ctx context.Context, id uuid.UUID) (*recovery.Transaction, error) {
	var model models.RecoveryModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("recovery", id.String())
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIdempotencyKey finds the transaction created for a client idempotency key
func (r *GormRecoveryRepository) FindByIdempotencyKey(ctx context.Context, key string) (*recovery.Transaction, error) {
	var model models.RecoveryModel
	if err := r.db.WithContext(ctx).First(&model, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("recovery", key)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySale returns every transaction of a sale, newest first
func (r *GormRecoveryRepository) FindBySale(ctx context.Context, saleID uuid.UUID) ([]recovery.Transaction, error) {
	var rows []models.RecoveryModel
	if err := r.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("recovered_at DESC, created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainRecoveries(rows), nil
}

// FindRecent returns the latest transactions, optionally for one customer
func (r *GormRecoveryRepository) FindRecent(ctx context.Context, customerID *uuid.UUID, limit int) ([]recovery.Transaction, error) {
	query := r.db.WithContext(ctx).Model(&models.RecoveryModel{})
	if customerID != nil {
		query = query.Where("customer_id = ?", *customerID)
	}
	var rows []models.RecoveryModel
	if err := query.
		Order("recovered_at DESC, created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toDomainRecoveries(rows), nil
}

// SumConfirmedBySale totals the confirmed transactions of a sale
func (r *GormRecoveryRepository) SumConfirmedBySale(ctx context.Context, saleID uuid.UUID) (decimal.Decimal, error) {
	return r.sumConfirmed(r.db.WithContext(ctx).Where("sale_id = ?", saleID))
}

// SumConfirmedSince totals confirmed transactions recovered at or after since
func (r *GormRecoveryRepository) SumConfirmedSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	return r.sumConfirmed(r.db.WithContext(ctx).Where("recovered_at >= ?", since.UTC()))
}

func (r *GormRecoveryRepository) sumConfirmed(query *gorm.DB) (decimal.Decimal, error) {
	var row struct {
		Total decimal.NullDecimal
	}
	if err := query.
		Model(&models.RecoveryModel{}).
		Where("status = ?", string(recovery.StatusConfirmed)).
		Select("SUM(amount) AS total").
		Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	// SQLite sums decimals as floats
	return row.Total.Decimal.Round(2), nil
}

// Create inserts a new transaction
func (r *GormRecoveryRepository) Create(ctx context.Context, t *recovery.Transaction) error {
	if err := r.db.WithContext(ctx).Create(models.RecoveryModelFromDomain(t)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewConflictError("recovery already recorded", err)
		}
		return err
	}
	return nil
}

// SaveWithLock writes the status fields of a transaction if its version is unchanged
func (r *GormRecoveryRepository) SaveWithLock(ctx context.Context, t *recovery.Transaction) error {
	m := models.RecoveryModelFromDomain(t)
	result := r.db.WithContext(ctx).
		Model(&models.RecoveryModel{}).
		Where("id = ? AND version = ?", t.ID, t.Version-1).
		Updates(map[string]interface{}{
			"status":            m.Status,
			"status_changed_at": m.StatusChangedAt,
			"status_notes":      m.StatusNotes,
			"version":           m.Version,
			"updated_at":        m.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "Recovery was modified by another transaction")
	}
	return nil
}

func toDomainRecoveries(rows []models.RecoveryModel) []recovery.Transaction {
	out := make([]recovery.Transaction, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormRecoveryRepository implements Repository
var _ recovery.Repository = (*GormRecoveryRepository)(nil)
