package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrCacheMiss = errors.New("cache: key not found")

// Service is the key/value contract shared by the memory and redis caches.
// Values are stored JSON-encoded; Get and Take decode into dest.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	// Take reads and deletes key in one step.
	Take(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	// DeleteByPrefix removes every key starting with prefix and returns how many went.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	CountByPrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Key joins parts with ':'.
func Key(parts ...interface{}) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += fmt.Sprint(p)
	}
	return key
}
