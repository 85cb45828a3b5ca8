// internal/repository/wallet_repository.go
package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/javajoker/commission-backend/internal/models"
)

type GormWalletValidationRepository struct {
	db *gorm.DB
}

func (r *GormWalletValidationRepository) Get(ctx context.Context, walletID string) (*models.WalletValidation, error) {
	var v models.WalletValidation
	if err := r.db.WithContext(ctx).Where("wallet_id = ?", walletID).Take(&v).Error; err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load wallet validation: %w", err)
	}
	return &v, nil
}

// Upsert overwrites the whole row; concurrent refreshes are last-write-wins.
func (r *GormWalletValidationRepository) Upsert(ctx context.Context, v *models.WalletValidation) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wallet_id"}},
			UpdateAll: true,
		}).
		Create(v).Error
	if err != nil {
		return fmt.Errorf("failed to store wallet validation: %w", err)
	}
	return nil
}

var _ WalletValidationRepository = (*GormWalletValidationRepository)(nil)
