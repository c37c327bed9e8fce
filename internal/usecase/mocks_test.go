package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	"github.com/EasyE-base/neural-command-layer/pkg/logger"

	"github.com/stretchr/testify/mock"
)

type nopMetrics struct{}

func (nopMetrics) RecordCommand(string, string)        {}
func (nopMetrics) RecordResolver(string)               {}
func (nopMetrics) RecordEvidence(string, bool)         {}
func (nopMetrics) RecordVerdict(string)                {}
func (nopMetrics) RecordOrder(string)                  {}
func (nopMetrics) RecordError(string)                  {}
func (nopMetrics) RecordLatency(string, time.Duration) {}

var testLog = logger.NewNop()

type mockSemantic struct{ mock.Mock }

func (m *mockSemantic) Resolve(ctx context.Context, text string, rc models.RequestContext) (models.ParsedCommand, error) {
	args := m.Called(ctx, text, rc)
	return args.Get(0).(models.ParsedCommand), args.Error(1)
}

type mockMarket struct{ mock.Mock }

func (m *mockMarket) Quote(ctx context.Context, symbol string) (models.MarketData, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(models.MarketData), args.Error(1)
}

type mockSentiment struct{ mock.Mock }

func (m *mockSentiment) Sentiment(ctx context.Context, symbol string) (models.Sentiment, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(models.Sentiment), args.Error(1)
}

type mockRisk struct{ mock.Mock }

func (m *mockRisk) Assess(ctx context.Context, symbol string, intent models.Intent) (models.RiskAssessment, error) {
	args := m.Called(ctx, symbol, intent)
	return args.Get(0).(models.RiskAssessment), args.Error(1)
}

type mockRiskChecker struct{ mock.Mock }

func (m *mockRiskChecker) Check(ctx context.Context, p models.RiskProposal) (models.RiskDecision, error) {
	args := m.Called(ctx, p)
	return args.Get(0).(models.RiskDecision), args.Error(1)
}

func (m *mockRiskChecker) Release(ctx context.Context, p models.RiskProposal) error {
	return m.Called(ctx, p).Error(0)
}

type mockBus struct{ mock.Mock }

func (m *mockBus) PublishOrder(ctx context.Context, o *models.OrderRecord) error {
	return m.Called(ctx, o).Error(0)
}

func (m *mockBus) PublishAlert(ctx context.Context, a *models.AlertRegistration) error {
	return m.Called(ctx, a).Error(0)
}

func (m *mockBus) PublishAudit(ctx context.Context, e *models.AuditEvent) error {
	return m.Called(ctx, e).Error(0)
}

// memPending is a map-backed PendingStore.
type memPending struct {
	mu    sync.Mutex
	items map[string]models.PendingAction
}

func newMemPending() *memPending {
	return &memPending{items: map[string]models.PendingAction{}}
}

func (s *memPending) Save(_ context.Context, p models.PendingAction, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[p.SessionID+"/"+p.Token] = p
	return nil
}

func (s *memPending) Consume(_ context.Context, sessionID, token string) (*models.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.items[sessionID+"/"+token]
	if !ok {
		return nil, models.ErrTokenInvalid
	}
	delete(s.items, sessionID+"/"+token)
	return &p, nil
}

func (s *memPending) CancelSession(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, p := range s.items {
		if p.SessionID == sessionID {
			delete(s.items, k)
			n++
		}
	}
	return n, nil
}

func (s *memPending) CountSession(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.items {
		if p.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

// memHistory keeps entries newest first without a bound.
type memHistory struct {
	mu      sync.Mutex
	entries map[string][]models.HistoryEntry
}

func newMemHistory() *memHistory {
	return &memHistory{entries: map[string][]models.HistoryEntry{}}
}

func (h *memHistory) Append(_ context.Context, sessionID string, e models.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[sessionID] = append([]models.HistoryEntry{e}, h.entries[sessionID]...)
	return nil
}

func (h *memHistory) Recent(_ context.Context, sessionID string, limit int) ([]models.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.entries[sessionID]
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]models.HistoryEntry(nil), out...), nil
}

type auditStoreStub struct {
	mu     sync.Mutex
	stored []*models.AuditEvent
	err    error
}

func (s *auditStoreStub) Init(context.Context) error   { return nil }
func (s *auditStoreStub) Health(context.Context) error { return nil }
func (s *auditStoreStub) Close() error                 { return nil }

func (s *auditStoreStub) StoreBatch(_ context.Context, events []*models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.stored = append(s.stored, events...)
	return nil
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
