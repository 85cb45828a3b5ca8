// internal/commission/calculator.go
package commission

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/apperr"
)

// MaxDepth is the number of affiliate levels paid on a sale.
const MaxDepth = 3

// Node is the slice of an affiliate the calculator needs.
type Node struct {
	ID         uuid.UUID
	Active     bool
	ReferredBy *uuid.UUID
}

// AffiliateLookup resolves one affiliate by id. Implementations return an
// error wrapping apperr.ErrAffiliateNotFound for unknown or soft-deleted ids.
type AffiliateLookup interface {
	GetNode(ctx context.Context, id uuid.UUID) (*Node, error)
}

type Calculator struct {
	plan   Plan
	lookup AffiliateLookup
	logger logrus.FieldLogger
}

func NewCalculator(plan Plan, lookup AffiliateLookup, logger logrus.FieldLogger) *Calculator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Calculator{plan: plan, lookup: lookup, logger: logger}
}

func (c *Calculator) Plan() Plan { return c.plan }

// Chain resolves N1 and up to two upstream referrers. Missing or deleted
// ancestors end the walk; a repeated id is an invariant violation.
func (c *Calculator) Chain(ctx context.Context, n1ID uuid.UUID) ([]*Node, error) {
	const op = "commission.Chain"

	n1, err := c.lookup.GetNode(ctx, n1ID)
	if err != nil {
		if errors.Is(err, apperr.ErrAffiliateNotFound) {
			return nil, apperr.AffiliateNotFound(op, n1ID.String())
		}
		return nil, fmt.Errorf("failed to load affiliate %s: %w", n1ID, err)
	}

	chain := []*Node{n1}
	seen := map[uuid.UUID]bool{n1.ID: true}
	for depth := 1; depth < MaxDepth; depth++ {
		parentID := chain[len(chain)-1].ReferredBy
		if parentID == nil || *parentID == uuid.Nil {
			break
		}
		if seen[*parentID] {
			return nil, apperr.Consistency(op, fmt.Sprintf("referral cycle: affiliate %s appears twice in the chain of %s", *parentID, n1ID))
		}
		parent, err := c.lookup.GetNode(ctx, *parentID)
		if err != nil {
			if errors.Is(err, apperr.ErrAffiliateNotFound) {
				break
			}
			return nil, fmt.Errorf("failed to load referrer %s: %w", *parentID, err)
		}
		seen[parent.ID] = true
		chain = append(chain, parent)
	}
	return chain, nil
}

// Calculate computes the commission breakdown of one order sold by n1ID.
func (c *Calculator) Calculate(ctx context.Context, orderID uuid.UUID, orderValueCents int64, n1ID uuid.UUID) (*Breakdown, error) {
	if orderValueCents <= 0 {
		return nil, apperr.Validation("commission.Calculate", "order_value_cents", "order value must be a positive number of cents")
	}

	chain, err := c.Chain(ctx, n1ID)
	if err != nil {
		return nil, err
	}

	var eligible Eligibility
	for i, node := range chain {
		eligible[i] = node.Active
	}

	b, err := Allocate(c.plan, orderValueCents, eligible)
	if err != nil {
		if apperr.IsConsistency(err) {
			c.logger.WithFields(logrus.Fields{
				"order_id":     orderID,
				"affiliate_id": n1ID,
				"order_value":  orderValueCents,
			}).WithError(err).Error("Commission breakdown failed consistency check")
		}
		return nil, err
	}

	b.OrderID = orderID
	for i := range b.Shares {
		level := b.Shares[i].Role.Level()
		if level == 0 || level > len(chain) {
			continue
		}
		id := chain[level-1].ID
		b.Shares[i].AffiliateID = &id
	}
	return b, nil
}
