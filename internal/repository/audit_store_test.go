package repository

import (
	"testing"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRowMatchesInsertColumns(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	row := auditRow(&models.AuditEvent{
		ID: "a1", Timestamp: ts, SessionID: "s1", Intent: models.IntentBuy, Symbol: "AAPL",
		Outcome: models.OutcomeExecuted, Success: true, Consensus: 0.75, Breaches: []string{"maxGross"},
		LatencyMs: 12,
	})

	require.Len(t, row, 17)
	assert.Equal(t, ts.UTC(), row[1])
	assert.Equal(t, "BUY", row[5])
	assert.Equal(t, uint8(1), row[9])
	assert.Equal(t, uint8(0), row[11])
	assert.Equal(t, []string{}, row[12])
	assert.Equal(t, []string{"maxGross"}, row[13])
	assert.Equal(t, int64(12), row[16])
}
