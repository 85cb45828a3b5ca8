// internal/repository/payment_repository.go
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/models"
)

type GormPaymentRepository struct {
	db *gorm.DB
}

func (r *GormPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrPaymentNotFound, id)
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &p, nil
}

func (r *GormPaymentRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).Take(&p).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrPaymentNotFound, externalID)
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &p, nil
}

func (r *GormPaymentRepository) Create(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	err := r.db.WithContext(ctx).Create(p).Error
	if err == nil {
		return p, nil
	}
	if isUniqueViolation(err) {
		return r.GetByExternalID(ctx, p.ExternalID)
	}
	return nil, fmt.Errorf("failed to create payment: %w", err)
}

func (r *GormPaymentRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	switch to {
	case models.PaymentStatusConfirmed:
		updates["paid_at"] = at
	case models.PaymentStatusOverdue:
		updates["overdue_at"] = at
	case models.PaymentStatusRefunded:
		updates["refunded_at"] = at
	}

	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update payment status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormPaymentRepository) ListAwaitingSplit(ctx context.Context, kinds []models.PaymentKind, paidBefore time.Time, limit int) ([]models.Payment, error) {
	if len(kinds) == 0 {
		return nil, nil
	}
	var out []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND kind IN ? AND paid_at < ?", models.PaymentStatusConfirmed, kinds, paidBefore).
		Where("NOT EXISTS (SELECT 1 FROM split_records s WHERE s.order_id = COALESCE(payments.order_id, payments.id))").
		Order("paid_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list payments awaiting split: %w", err)
	}
	return out, nil
}

var _ PaymentRepository = (*GormPaymentRepository)(nil)
