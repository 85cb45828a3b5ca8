// internal/models/wallet.go
package models

import "time"

// WalletValidation caches the last processor lookup of a wallet.
type WalletValidation struct {
	WalletID    string    `json:"wallet_id" gorm:"primaryKey;size:100"`
	IsValid     bool      `json:"is_valid"`
	IsActive    bool      `json:"is_active"`
	Name        string    `json:"name,omitempty" gorm:"size:255"`
	Email       string    `json:"email,omitempty" gorm:"size:255"`
	Error       string    `json:"error,omitempty" gorm:"type:text"`
	ValidatedAt time.Time `json:"validated_at" gorm:"not null;index"`
}
