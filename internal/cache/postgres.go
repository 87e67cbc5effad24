package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxQuerier is the subset of pgxpool.Pool the store needs, kept narrow so
// tests can stub it.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ pgxQuerier = (*pgxpool.Pool)(nil)

// PostgresStore keeps cache entries in the nearby_query_cache table. Reads
// filter on expires_at so expired rows are invisible before the sweep
// physically removes them.
type PostgresStore struct {
	pool pgxQuerier
}

// NewPostgresStore wires a cache store over an existing pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get returns the cached place IDs for key, or nil on miss or expiry.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]string, error) {
	row := s.pool.QueryRow(ctx, `
        SELECT restaurant_place_ids
        FROM nearby_query_cache
        WHERE cache_key = $1 AND expires_at > NOW()
    `, key)

	var placeIDs []string
	if err := row.Scan(&placeIDs); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query cache entry: %w", err)
	}
	return placeIDs, nil
}

// Set stores the place IDs under key, overwriting any previous entry.
func (s *PostgresStore) Set(ctx context.Context, key string, placeIDs []string, ttl time.Duration) error {
	expiresAt := time.Now().UTC().Add(ttl)

	_, err := s.pool.Exec(ctx, `
        INSERT INTO nearby_query_cache (cache_key, restaurant_place_ids, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (cache_key) DO UPDATE SET
            restaurant_place_ids = EXCLUDED.restaurant_place_ids,
            expires_at = EXCLUDED.expires_at
    `, key, placeIDs, expiresAt)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

// Delete removes a single entry, reporting whether it existed.
func (s *PostgresStore) Delete(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM nearby_query_cache WHERE cache_key = $1`, key)
	if err != nil {
		return false, fmt.Errorf("delete cache entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Sweep deletes every expired entry and returns the count removed. Safe to
// run concurrently with reads and writes since expired rows are already
// invisible to Get.
func (s *PostgresStore) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM nearby_query_cache WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("sweep expired cache entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Clear removes all entries.
func (s *PostgresStore) Clear(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM nearby_query_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }
