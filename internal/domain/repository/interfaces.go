package repository

import (
	"context"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
)

// EventBus publishes pipeline output to downstream consumers.
type EventBus interface {
	PublishOrder(ctx context.Context, o *models.OrderRecord) error
	PublishAlert(ctx context.Context, a *models.AlertRegistration) error
	PublishAudit(ctx context.Context, e *models.AuditEvent) error
}

// SessionHistory is a bounded per-session log, newest entries first on read.
type SessionHistory interface {
	Append(ctx context.Context, sessionID string, e models.HistoryEntry) error
	Recent(ctx context.Context, sessionID string, limit int) ([]models.HistoryEntry, error)
}

// PendingStore holds confirmation tokens until they are used or expire.
type PendingStore interface {
	Save(ctx context.Context, p models.PendingAction, ttl time.Duration) error
	// Consume removes and returns the action; models.ErrTokenInvalid if absent.
	Consume(ctx context.Context, sessionID, token string) (*models.PendingAction, error)
	CancelSession(ctx context.Context, sessionID string) (int, error)
	CountSession(ctx context.Context, sessionID string) (int, error)
}

type AuditStore interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, events []*models.AuditEvent) error
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordCommand(intent, outcome string)
	RecordResolver(path string)
	RecordEvidence(source string, isDefault bool)
	RecordVerdict(strategy string)
	RecordOrder(side string)
	RecordError(kind string)
	RecordLatency(op string, d time.Duration)
}
