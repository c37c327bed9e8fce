package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	domrepo "github.com/EasyE-base/neural-command-layer/internal/domain/repository"
)

// AuditHandler consumes decision audit events and writes them to storage.
type AuditHandler struct {
	topic   string
	store   domrepo.AuditStore
	metrics domrepo.Metrics
}

func NewAuditHandler(topic string, store domrepo.AuditStore, metrics domrepo.Metrics) *AuditHandler {
	return &AuditHandler{topic: topic, store: store, metrics: metrics}
}

func (h *AuditHandler) Topic() string { return h.topic }

// Handle rejects undecodable payloads so the consumer can dead-letter them.
func (h *AuditHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.AuditEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("audit_unmarshal")
		return fmt.Errorf("decode audit event: %w", err)
	}
	if ev.ID == "" {
		h.metrics.RecordError("audit_invalid")
		return fmt.Errorf("audit event without id")
	}
	if !ev.Timestamp.IsZero() {
		h.metrics.RecordLatency("audit_e2e", time.Since(ev.Timestamp))
	}

	start := time.Now()
	err := h.store.StoreBatch(ctx, []*models.AuditEvent{&ev})
	h.metrics.RecordLatency("audit_insert", time.Since(start))
	if err != nil {
		h.metrics.RecordError("audit_store")
		return fmt.Errorf("store audit event %s: %w", ev.ID, err)
	}
	return nil
}
