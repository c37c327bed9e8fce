package repository

import (
	"context"
	"fmt"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	pkgkafka "github.com/EasyE-base/neural-command-layer/pkg/kafka"
)

// Publisher is the subset of the Kafka producer the bus needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}, headers ...pkgkafka.Header) error
}

type Topics struct {
	Orders string
	Alerts string
	Audit  string
}

// KafkaEventBus publishes orders, alerts and audit events as JSON records.
type KafkaEventBus struct {
	pub    Publisher
	topics Topics
}

func NewKafkaEventBus(pub Publisher, topics Topics) *KafkaEventBus {
	return &KafkaEventBus{pub: pub, topics: topics}
}

func (b *KafkaEventBus) PublishOrder(ctx context.Context, o *models.OrderRecord) error {
	if err := b.pub.Publish(ctx, b.topics.Orders, []byte(o.Symbol), o, headers(ctx, "order", o.SessionID)...); err != nil {
		return fmt.Errorf("publish order %s: %w", o.ID, err)
	}
	return nil
}

func (b *KafkaEventBus) PublishAlert(ctx context.Context, a *models.AlertRegistration) error {
	if err := b.pub.Publish(ctx, b.topics.Alerts, []byte(a.Symbol), a, headers(ctx, "alert", a.SessionID)...); err != nil {
		return fmt.Errorf("publish alert %s: %w", a.ID, err)
	}
	return nil
}

func (b *KafkaEventBus) PublishAudit(ctx context.Context, e *models.AuditEvent) error {
	if err := b.pub.Publish(ctx, b.topics.Audit, []byte(e.SessionID), e, headers(ctx, "audit", e.SessionID)...); err != nil {
		return fmt.Errorf("publish audit %s: %w", e.ID, err)
	}
	return nil
}

func headers(ctx context.Context, kind, sessionID string) []pkgkafka.Header {
	hs := []pkgkafka.Header{
		{Key: "event_type", Value: kind},
		{Key: "session_id", Value: sessionID},
	}
	if id := pkgkafka.TraceIDFrom(ctx); id != "" {
		hs = append(hs, pkgkafka.Header{Key: "trace_id", Value: id})
	}
	return hs
}
