// internal/services/split_submitter.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/events"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/processor"
	"github.com/javajoker/commission-backend/internal/repository"
	"github.com/javajoker/commission-backend/internal/retry"
)

// SplitCreator is the processor call used to submit splits.
type SplitCreator interface {
	CreateSplit(ctx context.Context, req processor.SplitRequest) (*processor.SplitResult, error)
}

// SubmissionError is returned when the processor rejected or never answered
// a split. The failure is already persisted on the split record.
type SubmissionError struct {
	OrderID  uuid.UUID
	Attempts int
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("split submission for order %s failed after %d attempt(s): %v", e.OrderID, e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

type SplitSubmitter struct {
	splits    repository.SplitRepository
	gateway   SplitCreator
	policy    retry.Policy
	publisher events.Publisher
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewSplitSubmitter(splits repository.SplitRepository, gateway SplitCreator, policy retry.Policy, publisher events.Publisher, logger logrus.FieldLogger) *SplitSubmitter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &SplitSubmitter{
		splits:    splits,
		gateway:   gateway,
		policy:    policy,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// SubmitSplit sends the split of one order at most once. Concurrent callers
// for the same order race on the record claim; losers get the stored record
// back without calling the processor.
func (s *SplitSubmitter) SubmitSplit(ctx context.Context, orderID uuid.UUID, externalPaymentID string, items []processor.SplitItem) (*models.SplitRecord, error) {
	const op = "services.SplitSubmitter.SubmitSplit"

	if externalPaymentID == "" {
		return nil, apperr.Validation(op, "external_payment_id", "external payment id is required")
	}
	if len(items) == 0 {
		return nil, apperr.Validation(op, "split_items", "at least one split item is required")
	}

	log := s.logger.WithFields(logrus.Fields{
		"order_id":            orderID,
		"external_payment_id": externalPaymentID,
	})

	itemsJSON, err := models.ToJSONB(map[string]interface{}{"items": items})
	if err != nil {
		return nil, fmt.Errorf("failed to encode split items: %w", err)
	}
	claim := &models.SplitRecord{
		OrderID:           orderID,
		ExternalPaymentID: externalPaymentID,
		Items:             itemsJSON,
		WalletIDs:         pq.StringArray(processor.WalletIDs(items)),
	}

	existing, err := s.splits.GetByOrderID(ctx, orderID)
	switch {
	case err == nil:
		switch {
		case existing.Submitted():
			log.WithField("split_id", *existing.ExternalSplitID).Debug("Split already submitted")
			return existing, nil
		case existing.Status == models.SplitStatusPending:
			log.Info("Split submission already in progress")
			return existing, nil
		case existing.NeedsReconciliation:
			return existing, apperr.Consistency(op, fmt.Sprintf("split of order %s may already be held by the processor and needs manual reconciliation", orderID))
		}
		won, err := s.splits.Reclaim(ctx, claim)
		if err != nil {
			return nil, err
		}
		if !won {
			return s.splits.GetByOrderID(ctx, orderID)
		}
	case errors.Is(err, apperr.ErrSplitNotFound):
		won, err := s.splits.Claim(ctx, claim)
		if err != nil {
			return nil, err
		}
		if !won {
			log.Info("Lost split claim to a concurrent submitter")
			return s.splits.GetByOrderID(ctx, orderID)
		}
	default:
		return nil, err
	}

	req := processor.SplitRequest{
		OrderID:           orderID,
		ExternalPaymentID: externalPaymentID,
		Items:             items,
		IdempotencyKey:    orderID.String(),
	}
	policy := s.policy
	policy.OnRetry = func(err error, attempt int, wait time.Duration) {
		log.WithError(err).WithFields(logrus.Fields{"attempt": attempt, "wait": wait}).Warn("Retrying split submission")
	}
	res := retry.Do(ctx, policy, func(ctx context.Context) (*processor.SplitResult, error) {
		return s.gateway.CreateSplit(ctx, req)
	})

	if !res.OK() {
		return s.fail(ctx, log, orderID, res.Attempts, res.Err)
	}

	raw, err := models.ToJSONB(res.Value)
	if err != nil {
		raw = models.JSONB{"split_id": res.Value.SplitID}
	}
	at := s.now().UTC()
	updated, err := s.splits.MarkSent(ctx, orderID, res.Value.SplitID, raw, at)
	if err != nil {
		// The processor accepted the split; the record stays pending so no
		// automatic retry can submit it a second time.
		log.WithError(err).WithField("split_id", res.Value.SplitID).Error("Failed to persist submitted split")
		return nil, err
	}
	if !updated {
		log.Warn("Split record already carried an external id")
	}

	rec, err := s.splits.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, log, events.New(events.TypeSplitSent, orderID.String(), map[string]interface{}{
		"order_id":            orderID,
		"external_payment_id": externalPaymentID,
		"split_id":            res.Value.SplitID,
		"total_cents":         processor.TotalCents(items),
		"wallet_ids":          claim.WalletIDs,
	}))
	log.WithFields(logrus.Fields{"split_id": res.Value.SplitID, "attempts": res.Attempts}).Info("Split submitted")
	return rec, nil
}

func (s *SplitSubmitter) fail(ctx context.Context, log logrus.FieldLogger, orderID uuid.UUID, attempts int, cause error) (*models.SplitRecord, error) {
	payload := models.JSONB{
		"error":    cause.Error(),
		"attempts": attempts,
	}
	var apiErr *processor.APIError
	if errors.As(cause, &apiErr) {
		payload["status_code"] = apiErr.StatusCode
		payload["code"] = apiErr.Code
		payload["body"] = apiErr.Body
	}

	mark := s.splits.MarkFailed
	if apperr.IsConsistency(cause) {
		mark = s.splits.MarkUnconfirmed
	}
	if err := mark(ctx, orderID, cause.Error(), payload); err != nil {
		log.WithError(err).Error("Failed to persist split failure")
	}

	s.publish(ctx, log, events.New(events.TypeSplitFailed, orderID.String(), map[string]interface{}{
		"order_id": orderID,
		"error":    cause.Error(),
	}))
	log.WithError(cause).WithField("attempts", attempts).Error("Split submission failed")

	rec, err := s.splits.GetByOrderID(ctx, orderID)
	if err != nil {
		rec = nil
	}
	return rec, &SubmissionError{OrderID: orderID, Attempts: attempts, Err: cause}
}

func (s *SplitSubmitter) publish(ctx context.Context, log logrus.FieldLogger, ev events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		log.WithError(err).WithField("event_type", ev.Type).Warn("Failed to publish event")
	}
}
