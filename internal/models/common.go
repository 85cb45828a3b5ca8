// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}

	return json.Unmarshal(bytes, j)
}

// ToJSONB converts any JSON-serialisable value into a JSONB map.
func ToJSONB(v interface{}) (JSONB, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out JSONB
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Enums
type AffiliateType string

const (
	AffiliateTypeIndividual AffiliateType = "individual"
	// AffiliateTypeStore affiliates own a storefront whose visibility follows payment status.
	AffiliateTypeStore AffiliateType = "store"
)

type AffiliatePaymentStatus string

const (
	AffiliatePaymentActive   AffiliatePaymentStatus = "active"
	AffiliatePaymentPending  AffiliatePaymentStatus = "pending"
	AffiliatePaymentOverdue  AffiliatePaymentStatus = "overdue"
	AffiliatePaymentInactive AffiliatePaymentStatus = "inactive"
)

type PaymentKind string

const (
	PaymentKindMembership   PaymentKind = "membership"
	PaymentKindSubscription PaymentKind = "subscription"
	PaymentKindSale         PaymentKind = "sale"
)

func (k PaymentKind) Valid() bool {
	switch k {
	case PaymentKindMembership, PaymentKindSubscription, PaymentKindSale:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusOverdue   PaymentStatus = "overdue"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {
		PaymentStatusConfirmed, PaymentStatusOverdue, PaymentStatusFailed,
		PaymentStatusRefunded, PaymentStatusCancelled,
	},
	PaymentStatusOverdue: {PaymentStatusConfirmed, PaymentStatusFailed, PaymentStatusCancelled},
}

// CanTransitionTo reports whether a payment in status s may move to next.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal statuses accept no further transitions.
func (s PaymentStatus) Terminal() bool {
	return len(paymentTransitions[s]) == 0
}

type SplitStatus string

const (
	SplitStatusPending SplitStatus = "pending"
	SplitStatusSent    SplitStatus = "sent"
	SplitStatusFailed  SplitStatus = "failed"
)
