// internal/processor/asaas_webhook.go
package processor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/javajoker/commission-backend/internal/apperr"
)

// EventType is the provider independent lifecycle event of a payment.
type EventType string

const (
	EventPaymentConfirmed EventType = "payment.confirmed"
	EventPaymentOverdue   EventType = "payment.overdue"
	EventPaymentRefunded  EventType = "payment.refunded"
	EventPaymentCancelled EventType = "payment.cancelled"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentCreated   EventType = "payment.created"
	EventIgnored          EventType = "ignored"
)

var asaasEventTypes = map[string]EventType{
	"PAYMENT_CREATED":                     EventPaymentCreated,
	"PAYMENT_CONFIRMED":                   EventPaymentConfirmed,
	"PAYMENT_RECEIVED":                    EventPaymentConfirmed,
	"PAYMENT_RECEIVED_IN_CASH":            EventPaymentConfirmed,
	"PAYMENT_OVERDUE":                     EventPaymentOverdue,
	"PAYMENT_REFUNDED":                    EventPaymentRefunded,
	"PAYMENT_PARTIALLY_REFUNDED":          EventPaymentRefunded,
	"PAYMENT_CHARGEBACK_REQUESTED":        EventPaymentRefunded,
	"PAYMENT_DELETED":                     EventPaymentCancelled,
	"PAYMENT_REPROVED_BY_RISK_ANALYSIS":   EventPaymentFailed,
	"PAYMENT_CREDIT_CARD_CAPTURE_REFUSED": EventPaymentFailed,
}

// PaymentEvent is a parsed, validated webhook delivery.
type PaymentEvent struct {
	Provider          string                 `json:"provider"`
	EventID           string                 `json:"event_id"`
	RawType           string                 `json:"raw_type"`
	Type              EventType              `json:"type"`
	ExternalPaymentID string                 `json:"external_payment_id"`
	ExternalReference string                 `json:"external_reference,omitempty"`
	SubscriptionID    string                 `json:"subscription_id,omitempty"`
	ValueCents        int64                  `json:"value_cents"`
	OccurredAt        time.Time              `json:"occurred_at"`
	Payload           map[string]interface{} `json:"-"`
}

type asaasWebhook struct {
	ID          string `json:"id"`
	Event       string `json:"event"`
	DateCreated string `json:"dateCreated"`
	Payment     *struct {
		ID                string          `json:"id"`
		Subscription      string          `json:"subscription"`
		Value             decimal.Decimal `json:"value"`
		Status            string          `json:"status"`
		ExternalReference string          `json:"externalReference"`
	} `json:"payment"`
}

// ParseAsaasWebhook validates an Asaas webhook body and maps it to a PaymentEvent.
// Unknown event names yield EventIgnored rather than an error.
func ParseAsaasWebhook(body []byte) (*PaymentEvent, error) {
	const op = "processor.ParseAsaasWebhook"

	var w asaasWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, apperr.ValidationWrap(op, "body", fmt.Errorf("malformed webhook payload: %w", err))
	}
	if w.Event == "" {
		return nil, apperr.Validation(op, "event", "event name is required")
	}
	if w.Payment == nil || w.Payment.ID == "" {
		return nil, apperr.Validation(op, "payment.id", "payment id is required")
	}
	if w.Payment.Value.IsNegative() {
		return nil, apperr.Validation(op, "payment.value", "payment value must not be negative")
	}

	var payload map[string]interface{}
	_ = json.Unmarshal(body, &payload)

	ev := &PaymentEvent{
		Provider:          ProviderAsaas,
		EventID:           w.ID,
		RawType:           w.Event,
		Type:              EventIgnored,
		ExternalPaymentID: w.Payment.ID,
		ExternalReference: strings.TrimSpace(w.Payment.ExternalReference),
		SubscriptionID:    w.Payment.Subscription,
		ValueCents:        AmountToCents(w.Payment.Value),
		OccurredAt:        parseAsaasTime(w.DateCreated),
		Payload:           payload,
	}
	if t, ok := asaasEventTypes[strings.ToUpper(w.Event)]; ok {
		ev.Type = t
	}
	// Older deliveries carry no event id; the event name is unique per payment.
	if ev.EventID == "" {
		ev.EventID = w.Event + ":" + w.Payment.ID
	}
	return ev, nil
}

func parseAsaasTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
