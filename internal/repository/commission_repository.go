// internal/repository/commission_repository.go
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/commission-backend/internal/models"
)

// GormCommissionRepository never updates or deletes ledger rows.
type GormCommissionRepository struct {
	db *gorm.DB
}

func (r *GormCommissionRepository) Append(ctx context.Context, records []models.CommissionRecord) error {
	if len(records) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_id"}, {Name: "role"}},
			DoNothing: true,
		}).
		Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to append commission records: %w", err)
	}
	return nil
}

func (r *GormCommissionRepository) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionRecord, error) {
	var out []models.CommissionRecord
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC, role ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list commissions: %w", err)
	}
	return out, nil
}

func (r *GormCommissionRepository) ListByAffiliate(ctx context.Context, affiliateID uuid.UUID, offset, limit int) ([]models.CommissionRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CommissionRecord{}).
		Where("affiliate_id = ?", affiliateID).
		Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count commissions: %w", err)
	}

	var out []models.CommissionRecord
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&out).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list commissions: %w", err)
	}
	return out, total, nil
}

var _ CommissionRepository = (*GormCommissionRepository)(nil)
