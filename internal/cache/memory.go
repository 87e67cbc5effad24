package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	placeIDs  []string
	expiresAt time.Time
}

// MemoryStore is an in-process cache backend for local development and tests.
// Semantics match the durable backends: expired entries are invisible to Get
// before Sweep removes them.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore builds an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get returns the cached place IDs for key, or nil on miss or expiry.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(s.now()) {
		return nil, nil
	}
	ids := make([]string, len(entry.placeIDs))
	copy(ids, entry.placeIDs)
	return ids, nil
}

// Set stores the place IDs under key, overwriting any previous entry.
func (s *MemoryStore) Set(ctx context.Context, key string, placeIDs []string, ttl time.Duration) error {
	ids := make([]string, len(placeIDs))
	copy(ids, placeIDs)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{placeIDs: ids, expiresAt: s.now().Add(ttl)}
	return nil
}

// Delete removes a single entry, reporting whether it existed.
func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[key]
	delete(s.entries, key)
	return ok, nil
}

// Sweep removes expired entries and returns the count deleted.
func (s *MemoryStore) Sweep(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	now := s.now()
	for key, entry := range s.entries {
		if !entry.expiresAt.After(now) {
			delete(s.entries, key)
			deleted++
		}
	}
	return deleted, nil
}

// Clear removes all entries.
func (s *MemoryStore) Clear(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := int64(len(s.entries))
	s.entries = make(map[string]memoryEntry)
	return deleted, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
