// internal/repository/webhook_repository.go
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/commission-backend/internal/models"
)

type GormWebhookEventRepository struct {
	db *gorm.DB
}

func (r *GormWebhookEventRepository) Record(ctx context.Context, ev *models.WebhookEvent) (*models.WebhookEvent, bool, error) {
	err := r.db.WithContext(ctx).Create(ev).Error
	if err == nil {
		return ev, true, nil
	}
	if !isUniqueViolation(err) {
		return nil, false, fmt.Errorf("failed to record webhook event: %w", err)
	}

	var existing models.WebhookEvent
	err = r.db.WithContext(ctx).
		Where("provider = ? AND event_id = ?", ev.Provider, ev.EventID).
		Take(&existing).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to load webhook event: %w", err)
	}
	return &existing, false, nil
}

func (r *GormWebhookEventRepository) MarkProcessed(ctx context.Context, id uuid.UUID, processingError string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     at,
			"processing_error": processingError,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark webhook event processed: %w", err)
	}
	return nil
}

type GormNotificationRepository struct {
	db *gorm.DB
}

func (r *GormNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

type GormAuditRepository struct {
	db *gorm.DB
}

func (r *GormAuditRepository) Create(ctx context.Context, l *models.AuditLog) error {
	if err := r.db.WithContext(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

var (
	_ WebhookEventRepository = (*GormWebhookEventRepository)(nil)
	_ NotificationRepository = (*GormNotificationRepository)(nil)
	_ AuditRepository        = (*GormAuditRepository)(nil)
)
