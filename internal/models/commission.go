// internal/models/commission.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// CommissionRecord is one immutable ledger line. Corrections are new records.
type CommissionRecord struct {
	ID                        uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	PaymentID                 uuid.UUID  `json:"payment_id" gorm:"type:uuid;not null;uniqueIndex:idx_commission_payment_role"`
	OrderID                   uuid.UUID  `json:"order_id" gorm:"type:uuid;not null;index"`
	Role                      string     `json:"role" gorm:"type:varchar(20);not null;uniqueIndex:idx_commission_payment_role"`
	AffiliateID               *uuid.UUID `json:"affiliate_id" gorm:"type:uuid;index"`
	BeneficiaryName           string     `json:"beneficiary_name,omitempty" gorm:"size:255"`
	BasisPoints               int        `json:"basis_points" gorm:"not null"`
	RedistributionBasisPoints int        `json:"redistribution_basis_points" gorm:"not null;default:0"`
	ValueCents                int64      `json:"value_cents" gorm:"not null"`
	OrderValueCents           int64      `json:"order_value_cents" gorm:"not null"`
	CreatedAt                 time.Time  `json:"created_at" gorm:"<-:create"`
}

// Percentage is the display rate, e.g. 0.15 for 1500 bp.
func (c *CommissionRecord) Percentage() float64 {
	return float64(c.BasisPoints) / 10000
}
