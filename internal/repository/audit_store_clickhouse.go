package repository

import (
	"context"
	"fmt"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	pkgch "github.com/EasyE-base/neural-command-layer/pkg/clickhouse"
	"github.com/EasyE-base/neural-command-layer/pkg/logger"
)

const auditTable = "decision_audit"

var auditDDL = []string{
	`CREATE TABLE IF NOT EXISTS ` + auditTable + ` (
		id             String,
		ts             DateTime64(3, 'UTC'),
		session_id     String,
		user_id        String,
		command        String,
		intent         LowCardinality(String),
		symbol         LowCardinality(String),
		resolver       LowCardinality(String),
		outcome        LowCardinality(String),
		success        UInt8,
		consensus      Float64,
		should_proceed UInt8,
		defaulted      Array(String),
		breaches       Array(String),
		order_id       String,
		message        String,
		latency_ms     Int64
	) ENGINE = ReplacingMergeTree
	PARTITION BY toYYYYMM(ts)
	ORDER BY (session_id, ts, id)`,
}

const auditInsert = `INSERT INTO ` + auditTable + ` (id, ts, session_id, user_id, command, intent, symbol, resolver,
	outcome, success, consensus, should_proceed, defaulted, breaches, order_id, message, latency_ms)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// ClickHouseAuditStore persists decision audit events. Rows are keyed by
// event id so redelivered messages collapse on merge.
type ClickHouseAuditStore struct {
	ch  *pkgch.Client
	log *logger.Logger
}

func NewClickHouseAuditStore(ch *pkgch.Client, l *logger.Logger) *ClickHouseAuditStore {
	return &ClickHouseAuditStore{ch: ch, log: l}
}

func (s *ClickHouseAuditStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, auditDDL)
}

func (s *ClickHouseAuditStore) StoreBatch(ctx context.Context, events []*models.AuditEvent) error {
	rows := make([][]interface{}, 0, len(events))
	for _, e := range events {
		if e == nil || e.ID == "" {
			continue
		}
		rows = append(rows, auditRow(e))
	}
	if err := s.ch.InsertBatch(ctx, auditInsert, rows); err != nil {
		s.log.Error("audit insert failed", logger.Int("rows", len(rows)), logger.Error(err))
		return fmt.Errorf("store audit batch: %w", err)
	}
	return nil
}

func (s *ClickHouseAuditStore) Health(ctx context.Context) error { return s.ch.Health(ctx) }

func (s *ClickHouseAuditStore) Close() error { return s.ch.Close() }

func auditRow(e *models.AuditEvent) []interface{} {
	return []interface{}{
		e.ID,
		e.Timestamp.UTC(),
		e.SessionID,
		e.UserID,
		e.Command,
		string(e.Intent),
		e.Symbol,
		e.Resolver,
		e.Outcome,
		boolToUInt8(e.Success),
		e.Consensus,
		boolToUInt8(e.ShouldProceed),
		nonNil(e.Defaulted),
		nonNil(e.Breaches),
		e.OrderID,
		e.Message,
		e.LatencyMs,
	}
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
