// internal/events/publisher.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/config"
)

const (
	TypePaymentConfirmed     = "payment.confirmed"
	TypePaymentOverdue       = "payment.overdue"
	TypePaymentRefunded      = "payment.refunded"
	TypePaymentFailed        = "payment.failed"
	TypePaymentCancelled     = "payment.cancelled"
	TypeAffiliateActivated   = "affiliate.activated"
	TypeStorefrontVisibility = "affiliate.storefront_visibility"
	TypeCommissionCalculated = "commission.calculated"
	TypeSplitSent            = "split.sent"
	TypeSplitFailed          = "split.failed"
	TypeSplitStale           = "split.stale"
)

// Event is a lifecycle notification for downstream consumers.
type Event struct {
	ID         uuid.UUID   `json:"id"`
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

func New(eventType, key string, data interface{}) Event {
	return Event{ID: uuid.New(), Type: eventType, Key: key, OccurredAt: time.Now().UTC(), Data: data}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes each event type to "<prefix>.<type>", keyed so that
// events of one payment stay on one partition.
type KafkaPublisher struct {
	writer      messageWriter
	topicPrefix string
}

func NewKafkaPublisher(cfg config.KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		RequiredAcks:           kafka.RequireAll,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		Transport:              &kafka.Transport{ClientID: cfg.ClientID},
	}
	return newKafkaPublisher(w, cfg.TopicPrefix), nil
}

func newKafkaPublisher(w messageWriter, prefix string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topicPrefix: prefix}
}

func (p *KafkaPublisher) Topic(eventType string) string {
	if p.topicPrefix == "" {
		return eventType
	}
	return p.topicPrefix + "." + eventType
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.Topic(ev.Type),
		Key:   []byte(ev.Key),
		Value: payload,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.ID.String())},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// LogPublisher is used when no brokers are configured.
type LogPublisher struct {
	logger logrus.FieldLogger
}

func NewLogPublisher(logger logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.logger.WithFields(logrus.Fields{
		"event_id":   ev.ID,
		"event_type": ev.Type,
		"key":        ev.Key,
	}).Info("Event published")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// NewPublisher picks Kafka when brokers are configured.
func NewPublisher(cfg config.KafkaConfig, logger logrus.FieldLogger) (Publisher, error) {
	if !cfg.Enabled() {
		return NewLogPublisher(logger), nil
	}
	return NewKafkaPublisher(cfg)
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
)
