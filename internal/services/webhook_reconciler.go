// internal/services/webhook_reconciler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/events"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/processor"
	"github.com/javajoker/commission-backend/internal/repository"
)

// CommissionTrigger is run for confirmed payments of commission bearing kinds.
type CommissionTrigger interface {
	ProcessPayment(ctx context.Context, paymentID uuid.UUID) (*ProcessResult, error)
}

type PaymentNotifier interface {
	NotifyPaymentStatus(ctx context.Context, payment *models.Payment, status models.PaymentStatus) error
	NotifyCommissionFailed(ctx context.Context, payment *models.Payment, cause error) error
}

type ReconcileResult struct {
	EventID             string                  `json:"event_id"`
	Duplicate           bool                    `json:"duplicate"`
	Ignored             bool                    `json:"ignored"`
	PaymentID           uuid.UUID               `json:"payment_id,omitempty"`
	PreviousStatus      models.PaymentStatus    `json:"previous_status,omitempty"`
	Status              models.PaymentStatus    `json:"status,omitempty"`
	Transitioned        bool                    `json:"transitioned"`
	CommissionTriggered bool                    `json:"commission_triggered"`
	SideEffectErrors    []apperr.PartialFailure `json:"-"`
}

var eventStatus = map[processor.EventType]models.PaymentStatus{
	processor.EventPaymentConfirmed: models.PaymentStatusConfirmed,
	processor.EventPaymentOverdue:   models.PaymentStatusOverdue,
	processor.EventPaymentRefunded:  models.PaymentStatusRefunded,
	processor.EventPaymentCancelled: models.PaymentStatusCancelled,
	processor.EventPaymentFailed:    models.PaymentStatusFailed,
}

var statusEventType = map[models.PaymentStatus]string{
	models.PaymentStatusConfirmed: events.TypePaymentConfirmed,
	models.PaymentStatusOverdue:   events.TypePaymentOverdue,
	models.PaymentStatusRefunded:  events.TypePaymentRefunded,
	models.PaymentStatusCancelled: events.TypePaymentCancelled,
	models.PaymentStatusFailed:    events.TypePaymentFailed,
}

type WebhookReconciler struct {
	webhooks     repository.WebhookEventRepository
	payments     repository.PaymentRepository
	affiliates   repository.AffiliateRepository
	commissions  CommissionTrigger
	notifier     PaymentNotifier
	publisher    events.Publisher
	triggerKinds map[models.PaymentKind]bool
	logger       logrus.FieldLogger
	now          func() time.Time
}

type WebhookReconcilerDeps struct {
	Webhooks     repository.WebhookEventRepository
	Payments     repository.PaymentRepository
	Affiliates   repository.AffiliateRepository
	Commissions  CommissionTrigger
	Notifier     PaymentNotifier
	Publisher    events.Publisher
	TriggerKinds []string
	Logger       logrus.FieldLogger
}

func NewWebhookReconciler(d WebhookReconcilerDeps) *WebhookReconciler {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	kinds := make(map[models.PaymentKind]bool, len(d.TriggerKinds))
	for _, k := range d.TriggerKinds {
		kinds[models.PaymentKind(strings.ToLower(strings.TrimSpace(k)))] = true
	}
	return &WebhookReconciler{
		webhooks:     d.Webhooks,
		payments:     d.Payments,
		affiliates:   d.Affiliates,
		commissions:  d.Commissions,
		notifier:     d.Notifier,
		publisher:    d.Publisher,
		triggerKinds: kinds,
		logger:       logger,
		now:          time.Now,
	}
}

// HandleEvent applies one payment event. A returned error means the primary
// state change was not persisted and the delivery should be retried by the
// processor; everything after that point is best effort and reported in
// SideEffectErrors.
func (r *WebhookReconciler) HandleEvent(ctx context.Context, ev *processor.PaymentEvent) (*ReconcileResult, error) {
	const op = "services.WebhookReconciler.HandleEvent"

	if ev == nil || ev.EventID == "" || ev.ExternalPaymentID == "" {
		return nil, apperr.Validation(op, "event", "event id and payment id are required")
	}

	log := r.logger.WithFields(logrus.Fields{
		"provider":            ev.Provider,
		"event_id":            ev.EventID,
		"event":               ev.RawType,
		"external_payment_id": ev.ExternalPaymentID,
	})
	result := &ReconcileResult{EventID: ev.EventID}

	stored, created, err := r.webhooks.Record(ctx, &models.WebhookEvent{
		Provider:          ev.Provider,
		EventID:           ev.EventID,
		EventType:         ev.RawType,
		ExternalPaymentID: ev.ExternalPaymentID,
		Payload:           models.JSONB(ev.Payload),
	})
	if err != nil {
		return nil, err
	}
	if !created && stored.Processed() {
		log.Info("Duplicate webhook ignored")
		result.Duplicate = true
		return result, nil
	}
	resumed := !created

	if ev.Type == processor.EventIgnored {
		result.Ignored = true
		return result, r.finish(ctx, stored, "")
	}

	payment, err := r.loadOrCreatePayment(ctx, ev)
	if err != nil {
		if apperr.IsValidation(err) {
			log.WithError(err).Warn("Webhook for unknown payment without usable reference")
			result.Ignored = true
			return result, r.finish(ctx, stored, err.Error())
		}
		return nil, err
	}
	result.PaymentID = payment.ID
	result.PreviousStatus = payment.Status
	result.Status = payment.Status
	log = log.WithFields(logrus.Fields{"payment_id": payment.ID, "affiliate_id": payment.AffiliateID})

	target, ok := eventStatus[ev.Type]
	if !ok {
		// payment.created only registers the payment.
		return result, r.finish(ctx, stored, "")
	}

	switch {
	case payment.Status == target:
		if !resumed {
			log.WithField("status", target).Debug("Payment already in target status")
			return result, r.finish(ctx, stored, "")
		}
	case !payment.Status.CanTransitionTo(target):
		msg := fmt.Sprintf("illegal transition %s -> %s", payment.Status, target)
		log.Warn("Ignoring webhook: " + msg)
		return result, r.finish(ctx, stored, msg)
	default:
		moved, err := r.payments.Transition(ctx, payment.ID, payment.Status, target, r.now().UTC())
		if err != nil {
			return nil, err
		}
		if !moved {
			current, err := r.payments.GetByID(ctx, payment.ID)
			if err != nil {
				return nil, err
			}
			result.Status = current.Status
			log.WithField("status", current.Status).Info("Payment changed concurrently, event acknowledged")
			return result, r.finish(ctx, stored, "")
		}
		result.Transitioned = true
		payment.Status = target
	}
	result.Status = target

	affiliate, err := r.applyAffiliateStatus(ctx, payment, target)
	if err != nil {
		if errors.Is(err, apperr.ErrAffiliateNotFound) {
			log.WithError(err).Warn("Payment affiliate not found")
			return result, r.finish(ctx, stored, err.Error())
		}
		return nil, err
	}

	r.sideEffects(ctx, log, result, payment, affiliate, target)

	var procErr string
	if len(result.SideEffectErrors) > 0 {
		parts := make([]string, 0, len(result.SideEffectErrors))
		for _, pf := range result.SideEffectErrors {
			parts = append(parts, pf.Error())
		}
		procErr = strings.Join(parts, "; ")
	}
	log.WithFields(logrus.Fields{
		"from":         result.PreviousStatus,
		"to":           target,
		"side_effects": len(result.SideEffectErrors),
	}).Info("Webhook reconciled")
	return result, r.finish(ctx, stored, procErr)
}

func (r *WebhookReconciler) loadOrCreatePayment(ctx context.Context, ev *processor.PaymentEvent) (*models.Payment, error) {
	payment, err := r.payments.GetByExternalID(ctx, ev.ExternalPaymentID)
	if err == nil {
		return payment, nil
	}
	if !errors.Is(err, apperr.ErrPaymentNotFound) {
		return nil, err
	}

	ref, err := ParseExternalReference(ev.ExternalReference)
	if err != nil {
		return nil, err
	}
	return r.payments.Create(ctx, &models.Payment{
		AffiliateID:       ref.AffiliateID,
		OrderID:           ref.OrderID,
		Kind:              ref.Kind,
		ValueCents:        ev.ValueCents,
		ExternalID:        ev.ExternalPaymentID,
		ExternalReference: ev.ExternalReference,
		SubscriptionID:    ev.SubscriptionID,
		Status:            models.PaymentStatusPending,
	})
}

// applyAffiliateStatus is the primary step tied to the payment transition.
// Storefront visibility only follows payments of store affiliates.
func (r *WebhookReconciler) applyAffiliateStatus(ctx context.Context, payment *models.Payment, status models.PaymentStatus) (*models.Affiliate, error) {
	var next models.AffiliatePaymentStatus
	switch status {
	case models.PaymentStatusConfirmed:
		next = models.AffiliatePaymentActive
	case models.PaymentStatusOverdue:
		next = models.AffiliatePaymentOverdue
	default:
		return nil, nil
	}

	affiliate, err := r.affiliates.GetByID(ctx, payment.AffiliateID)
	if err != nil {
		return nil, err
	}
	if err := r.affiliates.UpdatePaymentStatus(ctx, affiliate.ID, next); err != nil {
		return nil, err
	}
	affiliate.PaymentStatus = next

	if affiliate.Type == models.AffiliateTypeStore {
		visible := next == models.AffiliatePaymentActive
		if err := r.affiliates.SetStorefrontVisible(ctx, affiliate.ID, visible); err != nil {
			return nil, err
		}
		affiliate.StorefrontVisible = visible
	}
	return affiliate, nil
}

func (r *WebhookReconciler) sideEffects(ctx context.Context, log logrus.FieldLogger, result *ReconcileResult, payment *models.Payment, affiliate *models.Affiliate, status models.PaymentStatus) {
	record := func(step string, err error) {
		if err == nil {
			return
		}
		log.WithError(err).WithField("step", step).Warn("Webhook side effect failed")
		result.SideEffectErrors = append(result.SideEffectErrors, apperr.PartialFailure{Step: step, Err: err})
	}

	if affiliate != nil {
		if status == models.PaymentStatusConfirmed {
			record("affiliate_activation", r.publish(ctx, events.New(events.TypeAffiliateActivated, affiliate.ID.String(), map[string]interface{}{
				"affiliate_id": affiliate.ID,
				"payment_id":   payment.ID,
				"kind":         payment.Kind,
			})))
		}
		if affiliate.Type == models.AffiliateTypeStore {
			record("storefront_event", r.publish(ctx, events.New(events.TypeStorefrontVisibility, affiliate.ID.String(), map[string]interface{}{
				"affiliate_id": affiliate.ID,
				"visible":      affiliate.StorefrontVisible,
			})))
		}
	}

	if status == models.PaymentStatusConfirmed && r.triggerKinds[payment.Kind] && r.commissions != nil {
		result.CommissionTriggered = true
		if _, err := r.commissions.ProcessPayment(ctx, payment.ID); err != nil {
			record("commission", err)
			if r.notifier != nil {
				record("commission_notification", r.notifier.NotifyCommissionFailed(ctx, payment, err))
			}
		}
	}

	if r.notifier != nil {
		record("notification", r.notifier.NotifyPaymentStatus(ctx, payment, status))
	}

	if eventType, ok := statusEventType[status]; ok {
		record("payment_event", r.publish(ctx, events.New(eventType, payment.ID.String(), map[string]interface{}{
			"payment_id":          payment.ID,
			"external_payment_id": payment.ExternalID,
			"affiliate_id":        payment.AffiliateID,
			"kind":                payment.Kind,
			"value_cents":         payment.ValueCents,
			"status":              status,
		})))
	}
}

func (r *WebhookReconciler) publish(ctx context.Context, ev events.Event) error {
	if r.publisher == nil {
		return nil
	}
	return r.publisher.Publish(ctx, ev)
}

func (r *WebhookReconciler) finish(ctx context.Context, ev *models.WebhookEvent, procErr string) error {
	if err := r.webhooks.MarkProcessed(ctx, ev.ID, procErr, r.now().UTC()); err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	return nil
}
