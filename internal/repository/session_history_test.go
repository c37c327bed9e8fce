package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	"github.com/EasyE-base/neural-command-layer/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(i int) models.HistoryEntry {
	return models.HistoryEntry{Command: fmt.Sprintf("cmd %d", i), Intent: models.IntentQuery, Timestamp: time.Unix(int64(i), 0).UTC()}
}

func TestMemoryHistoryBoundedNewestFirst(t *testing.T) {
	h := NewMemorySessionHistory(3, 0)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		require.NoError(t, h.Append(ctx, "s1", entry(i)))
	}

	got, err := h.Recent(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "cmd 5", got[0].Command)
	assert.Equal(t, "cmd 3", got[2].Command)

	got, _ = h.Recent(ctx, "s1", 2)
	assert.Len(t, got, 2)

	got, _ = h.Recent(ctx, "unknown", 5)
	assert.Empty(t, got)
}

func TestMemoryHistoryEvictsLeastRecentSession(t *testing.T) {
	h := NewMemorySessionHistory(5, 2)
	ctx := context.Background()
	require.NoError(t, h.Append(ctx, "a", entry(1)))
	require.NoError(t, h.Append(ctx, "b", entry(2)))
	_, _ = h.Recent(ctx, "a", 1)
	require.NoError(t, h.Append(ctx, "c", entry(3)))

	assert.Equal(t, 2, h.Sessions())
	got, _ := h.Recent(ctx, "b", 0)
	assert.Empty(t, got, "b was least recently used")
	got, _ = h.Recent(ctx, "a", 0)
	assert.Len(t, got, 1)
}

func TestRedisHistoryKeys(t *testing.T) {
	h := NewRedisSessionHistory(nil, "ncl:", 10, 100, 0, logger.NewNop())
	assert.Equal(t, "ncl:history:s1", h.listKey("s1"))
	assert.Equal(t, "ncl:history:sessions", h.indexKey())
}

// Runs against a live Redis when REDIS_ADDR is set.
func TestRedisHistoryLive(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	prefix := fmt.Sprintf("ncltest:%d:", time.Now().UnixNano())
	h := NewRedisSessionHistory(client, prefix, 2, 1, time.Minute, logger.NewNop())
	ctx := context.Background()
	t.Cleanup(func() {
		client.Del(ctx, h.listKey("s1"), h.listKey("s2"), h.indexKey())
	})

	for i := 1; i <= 3; i++ {
		require.NoError(t, h.Append(ctx, "s1", entry(i)))
	}
	got, err := h.Recent(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cmd 3", got[0].Command)

	require.NoError(t, h.Append(ctx, "s2", entry(9)))
	got, err = h.Recent(ctx, "s1", 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
