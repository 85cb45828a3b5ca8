// internal/services/split_builder.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/commission"
	"github.com/javajoker/commission-backend/internal/processor"
	"github.com/javajoker/commission-backend/internal/repository"
)

// RoleFactory labels the primary receiver item carrying the order remainder.
const RoleFactory = "factory"

// WalletResolver maps an affiliate to its processor wallet. It returns
// apperr.ErrWalletMissing when the affiliate has none.
type WalletResolver interface {
	WalletFor(ctx context.Context, affiliateID uuid.UUID) (string, error)
}

type WalletChecker interface {
	Validate(ctx context.Context, walletID string) (WalletStatus, error)
}

// SplitProblem is one reason a split was rejected.
type SplitProblem struct {
	Role        string     `json:"role"`
	WalletID    string     `json:"wallet_id,omitempty"`
	AffiliateID *uuid.UUID `json:"affiliate_id,omitempty"`
	ValueCents  int64      `json:"value_cents"`
	Reason      string     `json:"reason"`
}

// SplitValidationError lists every offending item of a rejected split.
type SplitValidationError struct {
	Problems []SplitProblem
}

func (e *SplitValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		target := p.WalletID
		if target == "" {
			target = p.Role
		}
		parts = append(parts, fmt.Sprintf("%s: %s", target, p.Reason))
	}
	return "invalid split: " + strings.Join(parts, "; ")
}

// HasReason reports whether any problem carries reason.
func (e *SplitValidationError) HasReason(reason string) bool {
	for _, p := range e.Problems {
		if p.Reason == reason {
			return true
		}
	}
	return false
}

const (
	ReasonWalletMissing   = "affiliate wallet not configured"
	ReasonWalletInvalid   = "wallet is not valid"
	ReasonWalletInactive  = "wallet is not active"
	ReasonNonPositive     = "split value must be positive"
	ReasonDuplicateWallet = "wallet appears more than once"
)

type SplitBuilder struct {
	plan    commission.Plan
	checker WalletChecker
	logger  logrus.FieldLogger
}

func NewSplitBuilder(plan commission.Plan, checker WalletChecker, logger logrus.FieldLogger) *SplitBuilder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SplitBuilder{plan: plan, checker: checker, logger: logger}
}

// BuildSplitItems turns a breakdown into processor split items. Nothing is
// returned unless every item routes to a valid, active and distinct wallet.
func (b *SplitBuilder) BuildSplitItems(ctx context.Context, breakdown *commission.Breakdown, resolver WalletResolver) ([]processor.SplitItem, error) {
	const op = "services.SplitBuilder.BuildSplitItems"

	if breakdown == nil {
		return nil, apperr.Validation(op, "breakdown", "breakdown is required")
	}

	var (
		items    []processor.SplitItem
		problems []SplitProblem
	)

	for _, share := range breakdown.Shares {
		if share.ValueCents == 0 {
			continue
		}
		item := processor.SplitItem{
			ValueCents:  share.ValueCents,
			Description: fmt.Sprintf("Comissão %s pedido %s", b.roleLabel(share), breakdown.OrderID),
			Role:        string(share.Role),
			AffiliateID: share.AffiliateID,
		}

		switch {
		case share.Role.IsAffiliate():
			if share.AffiliateID == nil {
				problems = append(problems, SplitProblem{Role: item.Role, ValueCents: item.ValueCents, Reason: ReasonWalletMissing})
				continue
			}
			wallet, err := resolver.WalletFor(ctx, *share.AffiliateID)
			if err != nil {
				if errors.Is(err, apperr.ErrWalletMissing) || errors.Is(err, apperr.ErrAffiliateNotFound) {
					problems = append(problems, SplitProblem{
						Role:        item.Role,
						AffiliateID: share.AffiliateID,
						ValueCents:  item.ValueCents,
						Reason:      ReasonWalletMissing,
					})
					continue
				}
				return nil, err
			}
			item.WalletID = wallet
		case share.Role == commission.RoleManager1:
			item.WalletID = b.plan.Manager(1).WalletID
		case share.Role == commission.RoleManager2:
			item.WalletID = b.plan.Manager(2).WalletID
		}

		if item.WalletID == "" {
			problems = append(problems, SplitProblem{Role: item.Role, ValueCents: item.ValueCents, Reason: ReasonWalletMissing})
			continue
		}
		items = append(items, item)
	}

	if wallet := b.plan.FactoryWallet(); wallet != "" {
		items = append(items, processor.SplitItem{
			WalletID:    wallet,
			ValueCents:  breakdown.RemainderCents(),
			Description: fmt.Sprintf("Repasse %s pedido %s", b.factoryLabel(), breakdown.OrderID),
			Role:        RoleFactory,
		})
	}

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ValueCents <= 0 {
			problems = append(problems, SplitProblem{Role: it.Role, WalletID: it.WalletID, ValueCents: it.ValueCents, Reason: ReasonNonPositive})
		}
		if seen[it.WalletID] {
			problems = append(problems, SplitProblem{Role: it.Role, WalletID: it.WalletID, ValueCents: it.ValueCents, Reason: ReasonDuplicateWallet})
			continue
		}
		seen[it.WalletID] = true

		status, err := b.checker.Validate(ctx, it.WalletID)
		if err != nil {
			return nil, err
		}
		switch {
		case !status.IsValid:
			problems = append(problems, SplitProblem{Role: it.Role, WalletID: it.WalletID, ValueCents: it.ValueCents, Reason: ReasonWalletInvalid})
		case !status.IsActive:
			problems = append(problems, SplitProblem{Role: it.Role, WalletID: it.WalletID, ValueCents: it.ValueCents, Reason: ReasonWalletInactive})
		}
	}

	if len(problems) > 0 {
		b.logger.WithFields(logrus.Fields{
			"order_id": breakdown.OrderID,
			"problems": len(problems),
		}).Warn("Split rejected")
		return nil, apperr.ValidationWrap(op, "split_items", &SplitValidationError{Problems: problems})
	}
	return items, nil
}

func (b *SplitBuilder) roleLabel(s commission.Share) string {
	if s.BeneficiaryName != "" {
		return s.BeneficiaryName
	}
	return strings.ToUpper(string(s.Role))
}

func (b *SplitBuilder) factoryLabel() string {
	if name := b.plan.FactoryName(); name != "" {
		return name
	}
	return "Fábrica"
}

// AffiliateWalletResolver reads wallets from the affiliate table.
type AffiliateWalletResolver struct {
	affiliates repository.AffiliateRepository
}

func NewAffiliateWalletResolver(affiliates repository.AffiliateRepository) *AffiliateWalletResolver {
	return &AffiliateWalletResolver{affiliates: affiliates}
}

func (r *AffiliateWalletResolver) WalletFor(ctx context.Context, affiliateID uuid.UUID) (string, error) {
	a, err := r.affiliates.GetByID(ctx, affiliateID)
	if err != nil {
		return "", err
	}
	if !a.HasWallet() {
		return "", fmt.Errorf("%w: affiliate %s", apperr.ErrWalletMissing, affiliateID)
	}
	return strings.TrimSpace(*a.WalletID), nil
}
