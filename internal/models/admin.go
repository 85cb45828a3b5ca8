// internal/models/admin.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	BaseModel
	ActorID      string     `json:"actor_id" gorm:"size:100;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;not null;index"`
	ResourceID   string     `json:"resource_id" gorm:"size:100;index"`
	StatusCode   int        `json:"status_code"`
	RequestID    string     `json:"request_id" gorm:"size:64"`
	NewValues    JSONB      `json:"new_values" gorm:"type:jsonb"`
	IPAddress    string     `json:"ip_address" gorm:"size:45"`
	UserAgent    string     `json:"user_agent" gorm:"type:text"`
	AffiliateID  *uuid.UUID `json:"affiliate_id,omitempty" gorm:"type:uuid"`
}

type NotificationType string

const (
	NotificationPaymentConfirmed NotificationType = "payment_confirmed"
	NotificationPaymentOverdue   NotificationType = "payment_overdue"
	NotificationPaymentFailed    NotificationType = "payment_failed"
	NotificationPaymentRefunded  NotificationType = "payment_refunded"
	NotificationPaymentCancelled NotificationType = "payment_cancelled"
	NotificationCommissionFailed NotificationType = "commission_failed"
)

type Notification struct {
	BaseModel
	Type        NotificationType `json:"type" gorm:"type:varchar(50);not null;index"`
	Title       string           `json:"title" gorm:"size:255;not null"`
	Message     string           `json:"message" gorm:"type:text;not null"`
	Priority    string           `json:"priority" gorm:"type:varchar(20);default:'medium';index"`
	Status      string           `json:"status" gorm:"type:varchar(20);default:'unread';index"`
	AffiliateID *uuid.UUID       `json:"affiliate_id" gorm:"type:uuid;index"`
	PaymentID   *uuid.UUID       `json:"payment_id" gorm:"type:uuid;index"`
	ReadAt      *time.Time       `json:"read_at"`
}
