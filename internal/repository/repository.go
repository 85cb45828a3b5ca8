// internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/javajoker/commission-backend/internal/models"
)

type AffiliateRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Affiliate, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status models.AffiliatePaymentStatus) error
	SetStorefrontVisible(ctx context.Context, id uuid.UUID, visible bool) error
}

type PaymentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	// Create inserts p unless a payment with the same external id exists, in
	// which case the stored row is returned.
	Create(ctx context.Context, p *models.Payment) (*models.Payment, error)
	// Transition moves a payment from one status to another. It reports false
	// when the row was no longer in the from status.
	Transition(ctx context.Context, id uuid.UUID, from, to models.PaymentStatus, at time.Time) (bool, error)
	// ListAwaitingSplit returns confirmed payments of the given kinds, paid
	// before paidBefore, that have no split record for their commission order.
	ListAwaitingSplit(ctx context.Context, kinds []models.PaymentKind, paidBefore time.Time, limit int) ([]models.Payment, error)
}

type CommissionRepository interface {
	// Append stores the records; existing (payment, role) pairs are left untouched.
	Append(ctx context.Context, records []models.CommissionRecord) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]models.CommissionRecord, error)
	ListByAffiliate(ctx context.Context, affiliateID uuid.UUID, offset, limit int) ([]models.CommissionRecord, int64, error)
}

type SplitRepository interface {
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.SplitRecord, error)
	// Claim inserts a pending record. It returns false when another record for
	// the order already exists.
	Claim(ctx context.Context, rec *models.SplitRecord) (bool, error)
	// Reclaim turns a failed record without external id back into pending.
	Reclaim(ctx context.Context, rec *models.SplitRecord) (bool, error)
	// MarkSent stores the external id unless one is already set.
	MarkSent(ctx context.Context, orderID uuid.UUID, splitID string, raw models.JSONB, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, orderID uuid.UUID, lastError string, raw models.JSONB) error
	// MarkUnconfirmed fails the record and flags it for manual reconciliation.
	MarkUnconfirmed(ctx context.Context, orderID uuid.UUID, lastError string, raw models.JSONB) error
	ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.SplitRecord, error)
	// ListStalePending returns pending records not touched since updatedBefore.
	ListStalePending(ctx context.Context, updatedBefore time.Time, limit int) ([]models.SplitRecord, error)
}

type WalletValidationRepository interface {
	Get(ctx context.Context, walletID string) (*models.WalletValidation, error)
	Upsert(ctx context.Context, v *models.WalletValidation) error
}

type WebhookEventRepository interface {
	// Record stores ev. When (provider, event_id) already exists the stored
	// event is returned with created=false.
	Record(ctx context.Context, ev *models.WebhookEvent) (*models.WebhookEvent, bool, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processingError string, at time.Time) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
}

type AuditRepository interface {
	Create(ctx context.Context, l *models.AuditLog) error
}

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// Store groups the gorm repositories sharing one connection.
type Store struct {
	db *gorm.DB

	Affiliates    *GormAffiliateRepository
	Payments      *GormPaymentRepository
	Commissions   *GormCommissionRepository
	Splits        *GormSplitRepository
	Wallets       *GormWalletValidationRepository
	Webhooks      *GormWebhookEventRepository
	Notifications *GormNotificationRepository
	Audit         *GormAuditRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:            db,
		Affiliates:    &GormAffiliateRepository{db: db},
		Payments:      &GormPaymentRepository{db: db},
		Commissions:   &GormCommissionRepository{db: db},
		Splits:        &GormSplitRepository{db: db},
		Wallets:       &GormWalletValidationRepository{db: db},
		Webhooks:      &GormWebhookEventRepository{db: db},
		Notifications: &GormNotificationRepository{db: db},
		Audit:         &GormAuditRepository{db: db},
	}
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
