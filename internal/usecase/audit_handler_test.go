package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditHandlerStoresEvent(t *testing.T) {
	store := &auditStoreStub{}
	h := NewAuditHandler("ncl.decision-audit", store, nopMetrics{})
	raw, err := json.Marshal(models.AuditEvent{ID: "a1", Timestamp: time.Now(), Intent: models.IntentBuy, Outcome: models.OutcomeExecuted})
	require.NoError(t, err)

	require.NoError(t, h.Handle(context.Background(), raw))
	require.Len(t, store.stored, 1)
	assert.Equal(t, "a1", store.stored[0].ID)
	assert.Equal(t, "ncl.decision-audit", h.Topic())
}

func TestAuditHandlerRejectsBadPayloads(t *testing.T) {
	h := NewAuditHandler("t", &auditStoreStub{}, nopMetrics{})
	assert.Error(t, h.Handle(context.Background(), []byte("{not json")))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"intent":"BUY"}`)))
}

func TestAuditHandlerPropagatesStoreError(t *testing.T) {
	h := NewAuditHandler("t", &auditStoreStub{err: errors.New("clickhouse down")}, nopMetrics{})
	err := h.Handle(context.Background(), []byte(`{"id":"a2"}`))
	assert.ErrorContains(t, err, "clickhouse down")
}
