// internal/models/webhook.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type WebhookEvent struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Provider          string     `json:"provider" gorm:"size:30;not null;uniqueIndex:idx_webhook_provider_event"`
	EventID           string     `json:"event_id" gorm:"size:150;not null;uniqueIndex:idx_webhook_provider_event"`
	EventType         string     `json:"event_type" gorm:"size:60;not null;index"`
	ExternalPaymentID string     `json:"external_payment_id" gorm:"size:100;index"`
	Payload           JSONB      `json:"payload" gorm:"type:jsonb"`
	ProcessedAt       *time.Time `json:"processed_at"`
	ProcessingError   string     `json:"processing_error,omitempty" gorm:"type:text"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (w *WebhookEvent) Processed() bool {
	return w.ProcessedAt != nil
}
