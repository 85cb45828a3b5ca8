// internal/models/payment.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Payment struct {
	BaseModel
	AffiliateID       uuid.UUID     `json:"affiliate_id" gorm:"type:uuid;not null;index"`
	OrderID           *uuid.UUID    `json:"order_id" gorm:"type:uuid;index"`
	Kind              PaymentKind   `json:"kind" gorm:"type:varchar(20);not null;index"`
	ValueCents        int64         `json:"value_cents" gorm:"not null"`
	ExternalID        string        `json:"external_id" gorm:"size:100;uniqueIndex;not null"`
	ExternalReference string        `json:"external_reference" gorm:"size:255"`
	SubscriptionID    string        `json:"subscription_id,omitempty" gorm:"size:100;index"`
	Status            PaymentStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	PaidAt            *time.Time    `json:"paid_at"`
	OverdueAt         *time.Time    `json:"overdue_at"`
	RefundedAt        *time.Time    `json:"refunded_at"`

	// Relationships
	Affiliate *Affiliate `json:"affiliate,omitempty" gorm:"foreignKey:AffiliateID"`
}

// CommissionOrderID is the order the commission of this payment is keyed by.
// Recurring payments without an explicit order use the payment id.
func (p *Payment) CommissionOrderID() uuid.UUID {
	if p.OrderID != nil && *p.OrderID != uuid.Nil {
		return *p.OrderID
	}
	return p.ID
}
