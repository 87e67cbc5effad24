// Package cache memoizes nearby-search results as sets of place identifiers.
// Entries are keyed by the rounded query fingerprint and live for a short TTL;
// the cache exists to absorb bursts of near-duplicate requests and cap
// provider spend, not to serve as a long-lived index.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chompfood/search-api/internal/config"
)

// Store is the cache backend contract. Get returns (nil, nil) on a miss;
// entries past their expiration are treated as absent regardless of whether
// they have been physically removed yet.
type Store interface {
	Get(ctx context.Context, key string) ([]string, error)
	Set(ctx context.Context, key string, placeIDs []string, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	// Sweep removes expired entries and returns the number deleted.
	Sweep(ctx context.Context) (int64, error)
	// Clear removes every entry, expired or not.
	Clear(ctx context.Context) (int64, error)
	Close() error
}

// New selects a cache backend from configuration. The Postgres backend reuses
// the service's existing pool; Redis and memory backends manage their own
// connections.
func New(cfg *config.Config, pool *pgxpool.Pool) (Store, error) {
	switch cfg.CacheBackend {
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("postgres cache requires a database pool")
		}
		return NewPostgresStore(pool), nil
	case "redis":
		return NewRedisStore(cfg.RedisURL)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %q", cfg.CacheBackend)
	}
}
