// internal/models/split.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SplitRecord tracks the single processor split of one order.
type SplitRecord struct {
	BaseModel
	OrderID           uuid.UUID      `json:"order_id" gorm:"type:uuid;uniqueIndex;not null"`
	ExternalPaymentID string         `json:"external_payment_id" gorm:"size:100;not null;index"`
	ExternalSplitID   *string        `json:"external_split_id" gorm:"size:100"`
	Status            SplitStatus    `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Attempts          int            `json:"attempts" gorm:"not null;default:0"`
	Items             JSONB          `json:"items" gorm:"type:jsonb"`
	WalletIDs         pq.StringArray `json:"wallet_ids" gorm:"type:text[]"`
	RawResponse       JSONB          `json:"raw_response,omitempty" gorm:"type:jsonb"`
	LastError         string         `json:"last_error,omitempty" gorm:"type:text"`
	SentAt            *time.Time     `json:"sent_at"`
	// NeedsReconciliation is set when the processor may hold the split
	// although no id came back. Such records are never resubmitted.
	NeedsReconciliation bool `json:"needs_reconciliation" gorm:"not null;default:false"`
}

func (s *SplitRecord) Submitted() bool {
	return s.ExternalSplitID != nil && *s.ExternalSplitID != ""
}
