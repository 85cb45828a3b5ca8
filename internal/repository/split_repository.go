// internal/repository/split_repository.go
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

type GormSplitRepository struct {
	db *gorm.DB
}

func (r *GormSplitRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.SplitRecord, error) {
	var rec models.SplitRecord
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Take(&rec).Error; err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrSplitNotFound, orderID)
		}
		return nil, fmt.Errorf("failed to load split record: %w", err)
	}
	return &rec, nil
}

// Claim relies on the unique order_id index; the loser of a race sees a
// duplicate key error and reports false.
func (r *GormSplitRepository) Claim(ctx context.Context, rec *models.SplitRecord) (bool, error) {
	rec.Status = models.SplitStatusPending
	if rec.Attempts == 0 {
		rec.Attempts = 1
	}
	err := r.db.WithContext(ctx).Create(rec).Error
	if err == nil {
		return true, nil
	}
	if isUniqueViolation(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to claim split: %w", err)
}

func (r *GormSplitRepository) Reclaim(ctx context.Context, rec *models.SplitRecord) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.SplitRecord{}).
		Where("order_id = ? AND status = ? AND external_split_id IS NULL AND needs_reconciliation = ?", rec.OrderID, models.SplitStatusFailed, false).
		Updates(map[string]interface{}{
			"status":              models.SplitStatusPending,
			"attempts":            gorm.Expr("attempts + 1"),
			"external_payment_id": rec.ExternalPaymentID,
			"items":               rec.Items,
			"wallet_ids":          rec.WalletIDs,
			"last_error":          "",
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to reclaim split: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormSplitRepository) MarkSent(ctx context.Context, orderID uuid.UUID, splitID string, raw models.JSONB, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.SplitRecord{}).
		Where("order_id = ? AND external_split_id IS NULL", orderID).
		Updates(map[string]interface{}{
			"external_split_id": splitID,
			"status":            models.SplitStatusSent,
			"raw_response":      raw,
			"last_error":        "",
			"sent_at":           at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark split sent: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormSplitRepository) MarkFailed(ctx context.Context, orderID uuid.UUID, lastError string, raw models.JSONB) error {
	err := r.db.WithContext(ctx).Model(&models.SplitRecord{}).
		Where("order_id = ? AND external_split_id IS NULL", orderID).
		Updates(map[string]interface{}{
			"status":       models.SplitStatusFailed,
			"last_error":   lastError,
			"raw_response": raw,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark split failed: %w", err)
	}
	return nil
}

func (r *GormSplitRepository) MarkUnconfirmed(ctx context.Context, orderID uuid.UUID, lastError string, raw models.JSONB) error {
	err := r.db.WithContext(ctx).Model(&models.SplitRecord{}).
		Where("order_id = ? AND external_split_id IS NULL", orderID).
		Updates(map[string]interface{}{
			"status":               models.SplitStatusFailed,
			"needs_reconciliation": true,
			"last_error":           lastError,
			"raw_response":         raw,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to flag split for reconciliation: %w", err)
	}
	return nil
}

func (r *GormSplitRepository) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.SplitRecord, error) {
	var out []models.SplitRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND external_split_id IS NULL AND needs_reconciliation = ? AND attempts < ?", models.SplitStatusFailed, false, maxAttempts).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list retryable splits: %w", err)
	}
	return out, nil
}

func (r *GormSplitRepository) ListStalePending(ctx context.Context, updatedBefore time.Time, limit int) ([]models.SplitRecord, error) {
	var out []models.SplitRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND external_split_id IS NULL AND updated_at < ?", models.SplitStatusPending, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale splits: %w", err)
	}
	return out, nil
}

var _ SplitRepository = (*GormSplitRepository)(nil)
