package repository

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/EasyE-base/neural-command-layer/internal/domain/models"
	"github.com/EasyE-base/neural-command-layer/pkg/cache"
)

// CachePendingStore keeps confirmation tokens in a cache under
// pending:<base64url(session)>:<token>, letting the cache TTL expire them.
type CachePendingStore struct {
	cache cache.Service
}

func NewCachePendingStore(c cache.Service) *CachePendingStore {
	return &CachePendingStore{cache: c}
}

// sessionSegment encodes a client-chosen session ID so it holds no key
// separators or glob characters.
func sessionSegment(sessionID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(sessionID))
}

func pendingKey(sessionID, token string) string {
	return cache.Key("pending", sessionSegment(sessionID), token)
}

func sessionPrefix(sessionID string) string {
	return cache.Key("pending", sessionSegment(sessionID)) + ":"
}

func (s *CachePendingStore) Save(ctx context.Context, p models.PendingAction, ttl time.Duration) error {
	if err := s.cache.Set(ctx, pendingKey(p.SessionID, p.Token), p, ttl); err != nil {
		return fmt.Errorf("save pending action: %w", err)
	}
	return nil
}

func (s *CachePendingStore) Consume(ctx context.Context, sessionID, token string) (*models.PendingAction, error) {
	if token == "" {
		return nil, models.ErrTokenInvalid
	}
	var p models.PendingAction
	if err := s.cache.Take(ctx, pendingKey(sessionID, token), &p); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, models.ErrTokenInvalid
		}
		return nil, fmt.Errorf("consume pending action: %w", err)
	}
	return &p, nil
}

func (s *CachePendingStore) CancelSession(ctx context.Context, sessionID string) (int, error) {
	return s.cache.DeleteByPrefix(ctx, sessionPrefix(sessionID))
}

func (s *CachePendingStore) CountSession(ctx context.Context, sessionID string) (int, error) {
	return s.cache.CountByPrefix(ctx, sessionPrefix(sessionID))
}
