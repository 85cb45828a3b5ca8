// internal/repository/affiliate_repository.go
package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/commission"
	"github.com/javajoker/commission-backend/internal/models"
)

type GormAffiliateRepository struct {
	db *gorm.DB
}

// GetByID ignores soft-deleted affiliates.
func (r *GormAffiliateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error) {
	var a models.Affiliate
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrAffiliateNotFound, id)
		}
		return nil, fmt.Errorf("failed to load affiliate: %w", err)
	}
	return &a, nil
}

// GetNode serves the commission calculator's ancestor walk.
func (r *GormAffiliateRepository) GetNode(ctx context.Context, id uuid.UUID) (*commission.Node, error) {
	var row struct {
		ID            uuid.UUID
		PaymentStatus models.AffiliatePaymentStatus
		ReferredBy    *uuid.UUID
	}
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Select("id", "payment_status", "referred_by").
		Where("id = ?", id).
		Take(&row).Error
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrAffiliateNotFound, id)
		}
		return nil, fmt.Errorf("failed to load affiliate node: %w", err)
	}
	return &commission.Node{
		ID:         row.ID,
		Active:     row.PaymentStatus == models.AffiliatePaymentActive,
		ReferredBy: row.ReferredBy,
	}, nil
}

func (r *GormAffiliateRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.AffiliatePaymentStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ?", id).
		Update("payment_status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update affiliate status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", apperr.ErrAffiliateNotFound, id)
	}
	return nil
}

// SetStorefrontVisible only touches store affiliates.
func (r *GormAffiliateRepository) SetStorefrontVisible(ctx context.Context, id uuid.UUID, visible bool) error {
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).
		Where("id = ? AND type = ?", id, models.AffiliateTypeStore).
		Update("storefront_visible", visible).Error
	if err != nil {
		return fmt.Errorf("failed to update storefront visibility: %w", err)
	}
	return nil
}

var (
	_ AffiliateRepository        = (*GormAffiliateRepository)(nil)
	_ commission.AffiliateLookup = (*GormAffiliateRepository)(nil)
)
