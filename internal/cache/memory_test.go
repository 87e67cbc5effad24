package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ids := []string{"place-a", "place-b"}
	if err := store.Set(ctx, "k1", ids, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "place-a" || got[1] != "place-b" {
		t.Fatalf("unexpected cached ids: %v", got)
	}

	// Overwrite is last-writer-wins, no merge.
	if err := store.Set(ctx, "k1", []string{"place-c"}, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = store.Get(ctx, "k1")
	if len(got) != 1 || got[0] != "place-c" {
		t.Fatalf("expected overwrite, got %v", got)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	if err := store.Set(ctx, "k1", []string{"place-a"}, 10*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, _ := store.Get(ctx, "k1"); got == nil {
		t.Fatalf("expected hit before expiry")
	}

	// Expired entries are invisible even before a sweep removes them.
	current = current.Add(11 * time.Minute)
	if got, _ := store.Get(ctx, "k1"); got != nil {
		t.Fatalf("expected miss after expiry, got %v", got)
	}

	deleted, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 swept entry, got %d", deleted)
	}
	if deleted, _ := store.Sweep(ctx); deleted != 0 {
		t.Fatalf("expected sweep to be idempotent, got %d", deleted)
	}
}

func TestMemoryStoreDeleteAndClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Set(ctx, "k1", []string{"a"}, time.Minute)
	store.Set(ctx, "k2", []string{"b"}, time.Minute)

	ok, err := store.Delete(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("expected delete to report existing entry, ok=%v err=%v", ok, err)
	}
	if ok, _ := store.Delete(ctx, "k1"); ok {
		t.Fatalf("expected second delete to report missing entry")
	}

	deleted, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 cleared entry, got %d", deleted)
	}
	if got, _ := store.Get(ctx, "k2"); got != nil {
		t.Fatalf("expected empty store after clear")
	}
}
