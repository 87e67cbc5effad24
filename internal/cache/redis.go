package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps cache entries in Redis with native TTL expiry. Backend
// errors on reads and writes degrade to cache misses so that a Redis outage
// costs only the optimization, never correctness.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Get returns the cached place IDs for key, or nil on miss or backend error.
func (s *RedisStore) Get(ctx context.Context, key string) ([]string, error) {
	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		log.Printf("redis get failed key=%s err=%v", key, err)
		return nil, nil
	}

	var placeIDs []string
	if err := json.Unmarshal([]byte(data), &placeIDs); err != nil {
		log.Printf("redis entry corrupt key=%s err=%v", key, err)
		return nil, nil
	}
	return placeIDs, nil
}

// Set stores the place IDs under key with the given TTL.
func (s *RedisStore) Set(ctx context.Context, key string, placeIDs []string, ttl time.Duration) error {
	data, err := json.Marshal(placeIDs)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("redis set failed key=%s err=%v", key, err)
	}
	return nil
}

// Delete removes a single entry.
func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis delete: %w", err)
	}
	return n > 0, nil
}

// Sweep is a no-op; Redis expires keys natively.
func (s *RedisStore) Sweep(ctx context.Context) (int64, error) {
	return 0, nil
}

// Clear scans for nearby keys and removes them in batches.
func (s *RedisStore) Clear(ctx context.Context) (int64, error) {
	var deleted int64
	iter := s.client.Scan(ctx, 0, "nearby:*", 200).Iterator()

	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= 200 {
			n, err := s.client.Del(ctx, batch...).Result()
			if err != nil {
				return deleted, fmt.Errorf("redis clear: %w", err)
			}
			deleted += n
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		n, err := s.client.Del(ctx, batch...).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis clear: %w", err)
		}
		deleted += n
	}
	return deleted, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error { return s.client.Close() }
