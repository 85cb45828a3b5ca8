// internal/models/affiliate.go
package models

import (
	"github.com/google/uuid"
)

type Affiliate struct {
	BaseModel
	Name          string                 `json:"name" gorm:"size:255;not null"`
	Email         string                 `json:"email" gorm:"size:255;index"`
	Type          AffiliateType          `json:"type" gorm:"type:varchar(20);not null;default:'individual'"`
	PaymentStatus AffiliatePaymentStatus `json:"payment_status" gorm:"type:varchar(20);not null;default:'pending';index"`
	WalletID      *string                `json:"wallet_id" gorm:"size:100"`
	// ReferredBy is written once at creation and ignored by later updates.
	ReferredBy        *uuid.UUID `json:"referred_by" gorm:"<-:create;type:uuid;index"`
	StorefrontVisible bool       `json:"storefront_visible" gorm:"default:false"`

	// Relationships
	Referrer *Affiliate `json:"referrer,omitempty" gorm:"foreignKey:ReferredBy"`
}

func (a *Affiliate) IsActive() bool {
	return a.PaymentStatus == AffiliatePaymentActive
}

// HasWallet reports whether a non-empty wallet id is configured.
func (a *Affiliate) HasWallet() bool {
	return a.WalletID != nil && *a.WalletID != ""
}
