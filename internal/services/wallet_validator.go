// internal/services/wallet_validator.go
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/cache"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/processor"
	"github.com/javajoker/commission-backend/internal/retry"
)

var walletIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// WalletLookup is the processor call the validator depends on.
type WalletLookup interface {
	GetWallet(ctx context.Context, walletID string) (*processor.WalletInfo, error)
}

type WalletStatus struct {
	WalletID  string    `json:"wallet_id"`
	IsValid   bool      `json:"is_valid"`
	IsActive  bool      `json:"is_active"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
	FromCache bool      `json:"from_cache"`
}

// Usable reports whether funds can be routed to the wallet.
func (s WalletStatus) Usable() bool { return s.IsValid && s.IsActive }

type WalletValidator struct {
	lookup      WalletLookup
	cache       cache.WalletCache
	policy      retry.Policy
	ttl         time.Duration
	negativeTTL time.Duration
	logger      logrus.FieldLogger
	now         func() time.Time
}

func NewWalletValidator(lookup WalletLookup, c cache.WalletCache, policy retry.Policy, ttl, negativeTTL time.Duration, logger logrus.FieldLogger) *WalletValidator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WalletValidator{
		lookup:      lookup,
		cache:       c,
		policy:      policy,
		ttl:         ttl,
		negativeTTL: negativeTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// Validate returns the wallet status, from cache when fresh. Only transient
// processor failures are returned as errors; an unknown wallet is a valid
// answer with IsValid=false.
func (v *WalletValidator) Validate(ctx context.Context, walletID string) (WalletStatus, error) {
	const op = "services.WalletValidator.Validate"

	walletID = strings.TrimSpace(walletID)
	now := v.now().UTC()
	if !walletIDPattern.MatchString(walletID) {
		return WalletStatus{WalletID: walletID, Error: "malformed wallet id", CheckedAt: now}, nil
	}

	log := v.logger.WithField("wallet_id", walletID)

	if cached := v.cached(ctx, walletID, now, log); cached != nil {
		return *cached, nil
	}

	res := retry.Do(ctx, v.policy, func(ctx context.Context) (*processor.WalletInfo, error) {
		return v.lookup.GetWallet(ctx, walletID)
	})

	var status WalletStatus
	switch {
	case res.OK():
		status = WalletStatus{
			WalletID:  walletID,
			IsValid:   true,
			IsActive:  res.Value.Active,
			Name:      res.Value.Name,
			Email:     res.Value.Email,
			CheckedAt: now,
		}
		if !status.IsActive {
			status.Error = "wallet is not active"
		}
	case errors.Is(res.Err, processor.ErrWalletNotFound):
		status = WalletStatus{WalletID: walletID, Error: "wallet not found", CheckedAt: now}
	case retry.IsRetryable(res.Err):
		log.WithError(res.Err).WithField("attempts", res.Attempts).Warn("Wallet lookup failed after retries")
		return WalletStatus{}, apperr.Transient(op, res.Err)
	default:
		return WalletStatus{}, fmt.Errorf("failed to validate wallet %s: %w", walletID, res.Err)
	}

	v.store(ctx, status, log)
	return status, nil
}

func (v *WalletValidator) cached(ctx context.Context, walletID string, now time.Time, log logrus.FieldLogger) *WalletStatus {
	if v.cache == nil {
		return nil
	}
	entry, err := v.cache.Get(ctx, walletID)
	if err != nil {
		log.WithError(err).Warn("Wallet cache read failed")
		return nil
	}
	if entry == nil {
		return nil
	}

	ttl := v.ttl
	if !entry.IsValid {
		ttl = v.negativeTTL
	}
	if now.Sub(entry.ValidatedAt) > ttl {
		return nil
	}
	return &WalletStatus{
		WalletID:  entry.WalletID,
		IsValid:   entry.IsValid,
		IsActive:  entry.IsActive,
		Name:      entry.Name,
		Email:     entry.Email,
		Error:     entry.Error,
		CheckedAt: entry.ValidatedAt,
		FromCache: true,
	}
}

func (v *WalletValidator) store(ctx context.Context, s WalletStatus, log logrus.FieldLogger) {
	if v.cache == nil {
		return
	}
	ttl := v.ttl
	if !s.IsValid {
		ttl = v.negativeTTL
	}
	err := v.cache.Put(ctx, &models.WalletValidation{
		WalletID:    s.WalletID,
		IsValid:     s.IsValid,
		IsActive:    s.IsActive,
		Name:        s.Name,
		Email:       s.Email,
		Error:       s.Error,
		ValidatedAt: s.CheckedAt,
	}, ttl)
	if err != nil {
		log.WithError(err).Warn("Wallet cache write failed")
	}
}
