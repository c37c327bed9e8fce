package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	"github.com/EasyE-base/neural-command-layer/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisSessionHistory stores each session as a capped list (newest at the
// head) and tracks session recency in a sorted set for eviction.
type RedisSessionHistory struct {
	client      *redis.Client
	prefix      string
	capacity    int
	maxSessions int
	ttl         time.Duration
	log         *logger.Logger
}

func NewRedisSessionHistory(client *redis.Client, prefix string, capacity, maxSessions int, ttl time.Duration, l *logger.Logger) *RedisSessionHistory {
	if capacity <= 0 {
		capacity = 10
	}
	return &RedisSessionHistory{
		client:      client,
		prefix:      prefix,
		capacity:    capacity,
		maxSessions: maxSessions,
		ttl:         ttl,
		log:         l,
	}
}

func (h *RedisSessionHistory) listKey(sessionID string) string {
	return h.prefix + "history:" + sessionID
}

func (h *RedisSessionHistory) indexKey() string {
	return h.prefix + "history:sessions"
}

func (h *RedisSessionHistory) Append(ctx context.Context, sessionID string, e models.HistoryEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	key := h.listKey(sessionID)
	pipe := h.client.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, int64(h.capacity-1))
	if h.ttl > 0 {
		pipe.Expire(ctx, key, h.ttl)
	}
	pipe.ZAdd(ctx, h.indexKey(), redis.Z{Score: float64(time.Now().UnixNano()), Member: sessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history %s: %w", sessionID, err)
	}
	return h.evict(ctx)
}

func (h *RedisSessionHistory) Recent(ctx context.Context, sessionID string, limit int) ([]models.HistoryEntry, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	vals, err := h.client.LRange(ctx, h.listKey(sessionID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read history %s: %w", sessionID, err)
	}
	out := make([]models.HistoryEntry, 0, len(vals))
	for _, v := range vals {
		var e models.HistoryEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			h.log.Warn("skipping corrupt history entry", logger.String("session_id", sessionID), logger.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// evict drops the oldest sessions beyond maxSessions.
func (h *RedisSessionHistory) evict(ctx context.Context) error {
	if h.maxSessions <= 0 {
		return nil
	}
	n, err := h.client.ZCard(ctx, h.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	over := n - int64(h.maxSessions)
	if over <= 0 {
		return nil
	}
	stale, err := h.client.ZRange(ctx, h.indexKey(), 0, over-1).Result()
	if err != nil {
		return fmt.Errorf("list stale sessions: %w", err)
	}
	keys := make([]string, 0, len(stale))
	members := make([]interface{}, 0, len(stale))
	for _, id := range stale {
		keys = append(keys, h.listKey(id))
		members = append(members, id)
	}
	pipe := h.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, h.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("evict sessions: %w", err)
	}
	return nil
}
