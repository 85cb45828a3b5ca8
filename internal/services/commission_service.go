// internal/services/commission_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/commission"
	"github.com/javajoker/commission-backend/internal/events"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/repository"
)

// CommissionService is the single place where commissions are computed,
// persisted and paid out.
type CommissionService struct {
	payments    repository.PaymentRepository
	commissions repository.CommissionRepository
	splits      repository.SplitRepository
	calculator  *commission.Calculator
	builder     *SplitBuilder
	submitter   *SplitSubmitter
	resolver    WalletResolver
	publisher   events.Publisher
	logger      logrus.FieldLogger
}

type CommissionServiceDeps struct {
	Payments    repository.PaymentRepository
	Commissions repository.CommissionRepository
	Splits      repository.SplitRepository
	Calculator  *commission.Calculator
	Builder     *SplitBuilder
	Submitter   *SplitSubmitter
	Resolver    WalletResolver
	Publisher   events.Publisher
	Logger      logrus.FieldLogger
}

func NewCommissionService(d CommissionServiceDeps) *CommissionService {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CommissionService{
		payments:    d.Payments,
		commissions: d.Commissions,
		splits:      d.Splits,
		calculator:  d.Calculator,
		builder:     d.Builder,
		submitter:   d.Submitter,
		resolver:    d.Resolver,
		publisher:   d.Publisher,
		logger:      logger,
	}
}

type ProcessResult struct {
	Payment   *models.Payment           `json:"payment"`
	Breakdown *commission.Breakdown     `json:"breakdown"`
	Records   []models.CommissionRecord `json:"records"`
	Split     *models.SplitRecord       `json:"split,omitempty"`
	// Reused is true when the commission records already existed.
	Reused bool `json:"reused"`
}

// ProcessPayment computes (once) and pays out the commission of a confirmed
// payment. The result is returned alongside split errors so callers can see
// what was recorded.
func (s *CommissionService) ProcessPayment(ctx context.Context, paymentID uuid.UUID) (*ProcessResult, error) {
	const op = "services.CommissionService.ProcessPayment"

	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, apperr.ErrPaymentNotFound) {
			return nil, &apperr.Error{Kind: apperr.KindValidation, Op: op, Field: "payment_id", Err: err}
		}
		return nil, err
	}
	if payment.Status != models.PaymentStatusConfirmed {
		return nil, apperr.Validation(op, "payment_id", fmt.Sprintf("payment is %s, commissions require a confirmed payment", payment.Status))
	}

	log := s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"order_id":   payment.CommissionOrderID(),
	})

	result := &ProcessResult{Payment: payment}

	records, err := s.commissions.ListByPayment(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 {
		result.Reused = true
	} else {
		b, err := s.calculator.Calculate(ctx, payment.CommissionOrderID(), payment.ValueCents, payment.AffiliateID)
		if err != nil {
			return nil, err
		}
		if err := s.commissions.Append(ctx, RecordsFromBreakdown(payment, b)); err != nil {
			return nil, err
		}
		records, err = s.commissions.ListByPayment(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		s.publish(ctx, log, events.New(events.TypeCommissionCalculated, payment.ID.String(), b))
		log.WithFields(logrus.Fields{
			"total_cents":    b.TotalCents,
			"redistribution": b.RedistributionApplied,
		}).Info("Commission calculated")
	}

	result.Records = records
	result.Breakdown = BreakdownFromRecords(payment.CommissionOrderID(), records)

	items, err := s.builder.BuildSplitItems(ctx, result.Breakdown, s.resolver)
	if err != nil {
		return result, err
	}

	split, err := s.submitter.SubmitSplit(ctx, payment.CommissionOrderID(), payment.ExternalID, items)
	result.Split = split
	if err != nil {
		return result, err
	}
	return result, nil
}

// Preview computes a breakdown without persisting anything.
func (s *CommissionService) Preview(ctx context.Context, orderValueCents int64, n1ID uuid.UUID) (*commission.Breakdown, error) {
	return s.calculator.Calculate(ctx, uuid.Nil, orderValueCents, n1ID)
}

// RetrySplit resubmits the split of orderID from its stored commission records.
func (s *CommissionService) RetrySplit(ctx context.Context, orderID uuid.UUID) (*ProcessResult, error) {
	const op = "services.CommissionService.RetrySplit"

	rec, err := s.splits.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrSplitNotFound) {
			return nil, &apperr.Error{Kind: apperr.KindValidation, Op: op, Field: "order_id", Err: err}
		}
		return nil, err
	}
	if rec.Submitted() {
		return &ProcessResult{Split: rec}, nil
	}

	payment, err := s.payments.GetByExternalID(ctx, rec.ExternalPaymentID)
	if err != nil {
		if errors.Is(err, apperr.ErrPaymentNotFound) {
			return nil, apperr.Consistency(op, fmt.Sprintf("split of order %s references unknown payment %s", orderID, rec.ExternalPaymentID))
		}
		return nil, err
	}
	return s.ProcessPayment(ctx, payment.ID)
}

func (s *CommissionService) publish(ctx context.Context, log logrus.FieldLogger, ev events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.WithError(err).WithField("event_type", ev.Type).Warn("Failed to publish event")
	}
}

// RecordsFromBreakdown converts every share, including empty ones, into a
// ledger record keyed by (payment, role).
func RecordsFromBreakdown(p *models.Payment, b *commission.Breakdown) []models.CommissionRecord {
	out := make([]models.CommissionRecord, 0, len(b.Shares))
	for _, share := range b.Shares {
		rec := models.CommissionRecord{
			PaymentID:       p.ID,
			OrderID:         p.CommissionOrderID(),
			Role:            string(share.Role),
			AffiliateID:     share.AffiliateID,
			BeneficiaryName: share.BeneficiaryName,
			BasisPoints:     share.BasisPoints,
			ValueCents:      share.ValueCents,
			OrderValueCents: b.OrderValueCents,
		}
		if b.Redistribution != nil {
			switch share.Role {
			case commission.RoleManager1:
				rec.RedistributionBasisPoints = b.Redistribution.Manager1BasisPoints
			case commission.RoleManager2:
				rec.RedistributionBasisPoints = b.Redistribution.Manager2BasisPoints
			}
		}
		out = append(out, rec)
	}
	return out
}

// BreakdownFromRecords rebuilds the breakdown stored in the ledger.
func BreakdownFromRecords(orderID uuid.UUID, records []models.CommissionRecord) *commission.Breakdown {
	order := make(map[commission.Role]int, len(commission.Roles))
	for i, r := range commission.Roles {
		order[r] = i
	}
	sorted := append([]models.CommissionRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return order[commission.Role(sorted[i].Role)] < order[commission.Role(sorted[j].Role)]
	})

	b := &commission.Breakdown{OrderID: orderID}
	var m1Extra, m2Extra int
	for _, rec := range sorted {
		role := commission.Role(rec.Role)
		b.OrderValueCents = rec.OrderValueCents
		b.Shares = append(b.Shares, commission.Share{
			Role:            role,
			AffiliateID:     rec.AffiliateID,
			BeneficiaryName: rec.BeneficiaryName,
			BasisPoints:     rec.BasisPoints,
			Percentage:      rec.Percentage(),
			ValueCents:      rec.ValueCents,
		})
		b.TotalBasisPoints += rec.BasisPoints
		b.TotalCents += rec.ValueCents
		switch role {
		case commission.RoleManager1:
			m1Extra = rec.RedistributionBasisPoints
		case commission.RoleManager2:
			m2Extra = rec.RedistributionBasisPoints
		}
	}
	if b.OrderValueCents > 0 {
		b.PoolCents = commission.PoolCents(b.OrderValueCents)
	}
	if unused := m1Extra + m2Extra; unused > 0 {
		b.RedistributionApplied = true
		b.Redistribution = &commission.Redistribution{
			UnusedBasisPoints:   unused,
			Manager1BasisPoints: m1Extra,
			Manager2BasisPoints: m2Extra,
		}
	}
	return b
}
