package cache

import (
	"context"
	"errors"
	"time"

	"folio/internal/config"
)

// ErrMiss is returned when a key is absent or its entry has expired.
var ErrMiss = errors.New("cache miss")

// Store is a small TTL cache used for computed metric blocks. Values are
// opaque bytes; callers own serialization.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}

// KeyPrefix namespaces every cache key so a shared Redis instance can hold
// other tenants' data without collisions.
const KeyPrefix = "folio:metrics:"

// New picks the Redis store when an address is configured, the file store
// otherwise.
func New(cfg *config.Config) (Store, error) {
	if cfg.RedisAddr != "" {
		return NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	}
	return NewFileStore(cfg.DataDir)
}
