// internal/services/ledger_service.go
package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/commission"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/repository"
)

// LedgerService reads the append-only commission ledger.
type LedgerService struct {
	commissions repository.CommissionRepository
	splits      repository.SplitRepository
}

func NewLedgerService(commissions repository.CommissionRepository, splits repository.SplitRepository) *LedgerService {
	return &LedgerService{commissions: commissions, splits: splits}
}

type LedgerPage struct {
	Records    []models.CommissionRecord `json:"records"`
	Total      int64                     `json:"total"`
	TotalCents int64                     `json:"total_cents"`
}

func (s *LedgerService) ListByAffiliate(ctx context.Context, affiliateID uuid.UUID, offset, limit int) (*LedgerPage, error) {
	records, total, err := s.commissions.ListByAffiliate(ctx, affiliateID, offset, limit)
	if err != nil {
		return nil, err
	}
	page := &LedgerPage{Records: records, Total: total}
	for _, rec := range records {
		page.TotalCents += rec.ValueCents
	}
	return page, nil
}

// PaymentLedger is the stored breakdown of one payment.
type PaymentLedger struct {
	Records   []models.CommissionRecord `json:"records"`
	Breakdown *commission.Breakdown     `json:"breakdown"`
}

func (s *LedgerService) ListByPayment(ctx context.Context, paymentID uuid.UUID) (*PaymentLedger, error) {
	records, err := s.commissions.ListByPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &PaymentLedger{Records: []models.CommissionRecord{}}, nil
	}
	return &PaymentLedger{
		Records:   records,
		Breakdown: BreakdownFromRecords(records[0].OrderID, records),
	}, nil
}

func (s *LedgerService) GetSplit(ctx context.Context, orderID uuid.UUID) (*models.SplitRecord, error) {
	rec, err := s.splits.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, apperr.ErrSplitNotFound) {
			return nil, &apperr.Error{Kind: apperr.KindValidation, Op: "services.LedgerService.GetSplit", Field: "order_id", Err: err}
		}
		return nil, err
	}
	return rec, nil
}
