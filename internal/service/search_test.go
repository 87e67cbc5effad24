package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chompfood/search-api/internal/cache"
	"github.com/chompfood/search-api/internal/entity"
	"github.com/chompfood/search-api/internal/places"
)

// fakeFetcher returns canned results per type-group signature.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   int64
	fetch   func(q places.GroupQuery) (places.GroupResult, error)
	queries []places.GroupQuery
}

func (f *fakeFetcher) FetchTypeGroup(ctx context.Context, q places.GroupQuery) (places.GroupResult, error) {
	f.mu.Lock()
	f.calls++
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return f.fetch(q)
}

func (f *fakeFetcher) CallsMade() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeRestaurants is an in-memory restaurant store with upsert semantics.
type fakeRestaurants struct {
	mu      sync.Mutex
	rows    map[string]entity.Restaurant
	upserts int
	stale   func(placeIDs []string, maxAge time.Duration) ([]string, error)
}

func newFakeRestaurants() *fakeRestaurants {
	return &fakeRestaurants{rows: make(map[string]entity.Restaurant)}
}

func (f *fakeRestaurants) UpsertBatch(ctx context.Context, records []entity.RestaurantUpsert) ([]entity.Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upserts++
	out := make([]entity.Restaurant, 0, len(records))
	for _, record := range records {
		existing, ok := f.rows[record.GooglePlaceID]
		if !ok {
			existing = entity.Restaurant{ID: uuid.New(), GooglePlaceID: record.GooglePlaceID, CreatedAt: time.Now()}
		}
		existing.Name = record.Name
		existing.Rating = record.Rating
		existing.Types = record.Types
		existing.ProviderPayload = record.ProviderPayload
		fetched := record.LastFetchedAt
		existing.LastFetchedAt = &fetched
		existing.UpdatedAt = time.Now()
		f.rows[record.GooglePlaceID] = existing
		out = append(out, existing)
	}
	return out, nil
}

func (f *fakeRestaurants) GetByPlaceIDs(ctx context.Context, placeIDs []string) ([]entity.Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []entity.Restaurant
	for _, id := range placeIDs {
		if row, ok := f.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeRestaurants) GetByPlaceID(ctx context.Context, placeID string) (*entity.Restaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[placeID]; ok {
		return &row, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeRestaurants) StalePlaceIDs(ctx context.Context, placeIDs []string, maxAge time.Duration) ([]string, error) {
	if f.stale != nil {
		return f.stale(placeIDs, maxAge)
	}
	return nil, nil
}

// failingStore simulates an unavailable cache backend.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]string, error) {
	return nil, errors.New("cache backend down")
}
func (failingStore) Set(ctx context.Context, key string, ids []string, ttl time.Duration) error {
	return errors.New("cache backend down")
}
func (failingStore) Delete(ctx context.Context, key string) (bool, error) { return false, nil }
func (failingStore) Sweep(ctx context.Context) (int64, error)             { return 0, nil }
func (failingStore) Clear(ctx context.Context) (int64, error)             { return 0, nil }
func (failingStore) Close() error                                         { return nil }

func testOptions() SearchOptions {
	return SearchOptions{
		DefaultRadius:     1500,
		MaxRadius:         50000,
		DefaultMaxResults: 300,
		MaxProviderCalls:  15,
		PageDepth:         1,
		CacheTTL:          15 * time.Minute,
	}
}

func placeFor(id string, rating float64) places.Place {
	return places.Place{ID: id, Rating: &rating, Raw: []byte(fmt.Sprintf(`{"id":%q}`, id))}
}

func TestSearchNearbyScenario(t *testing.T) {
	// Empty cache, full default fan-out, then a second identical call served
	// from cache with zero provider calls.
	fetcher := &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			return places.GroupResult{Places: []places.Place{
				placeFor("shared", 4.0),
				placeFor("only-"+q.Types[0], 4.2),
			}}, nil
		},
	}
	repo := newFakeRestaurants()
	store := cache.NewMemoryStore()
	svc := NewSearchService(repo, store, fetcher, testOptions())

	query := NearbyQuery{Lat: 40.7128, Lng: -74.0060, Radius: 1600}
	result, err := svc.SearchNearby(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cached {
		t.Fatalf("expected uncached first call")
	}
	if result.Provenance == nil {
		t.Fatalf("expected provenance on uncached result")
	}
	if result.Provenance.RequestsMade != len(places.DefaultTypeGroups) {
		t.Fatalf("expected %d requests, got %d", len(places.DefaultTypeGroups), result.Provenance.RequestsMade)
	}
	if result.Provenance.UniquePlaces > 300 {
		t.Fatalf("unique places exceed ceiling: %d", result.Provenance.UniquePlaces)
	}
	// 15 groups x unique-per-group + 1 shared = 16 unique.
	if result.Provenance.UniquePlaces != 16 {
		t.Fatalf("expected 16 unique places, got %d", result.Provenance.UniquePlaces)
	}
	if result.Provenance.RawPlaces != 30 {
		t.Fatalf("expected 30 raw places, got %d", result.Provenance.RawPlaces)
	}

	callsAfterFirst := fetcher.CallsMade()
	second, err := svc.SearchNearby(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached {
		t.Fatalf("expected cache hit on second call")
	}
	if fetcher.CallsMade() != callsAfterFirst {
		t.Fatalf("expected zero provider calls on cache hit")
	}
	if len(second.Restaurants) != len(result.Restaurants) {
		t.Fatalf("expected identical restaurant set, got %d vs %d", len(second.Restaurants), len(result.Restaurants))
	}
	if second.CacheKey != result.CacheKey {
		t.Fatalf("expected stable cache key")
	}
}

func TestSearchNearbyDedupLastWriteWins(t *testing.T) {
	// Two groups return the same place with different ratings; the
	// later-iterated group's record must win.
	fetcher := &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			switch q.Types[0] {
			case "restaurant":
				return places.GroupResult{Places: []places.Place{placeFor("dup", 3.0)}}, nil
			case "american_restaurant":
				return places.GroupResult{Places: []places.Place{placeFor("dup", 4.8)}}, nil
			default:
				return places.GroupResult{}, nil
			}
		},
	}
	repo := newFakeRestaurants()
	svc := NewSearchService(repo, cache.NewMemoryStore(), fetcher, testOptions())

	result, err := svc.SearchNearby(context.Background(), NearbyQuery{Lat: 40.7, Lng: -74.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Provenance.RawPlaces != 2 || result.Provenance.UniquePlaces != 1 {
		t.Fatalf("unexpected counts: %+v", result.Provenance)
	}
	if len(result.Restaurants) != 1 {
		t.Fatalf("expected 1 restaurant, got %d", len(result.Restaurants))
	}
	if result.Restaurants[0].Rating == nil || *result.Restaurants[0].Rating != 4.8 {
		t.Fatalf("expected later group's rating to win, got %v", result.Restaurants[0].Rating)
	}
}

func TestSearchNearbyTruncationDeterministic(t *testing.T) {
	fetch := func(q places.GroupQuery) (places.GroupResult, error) {
		var out []places.Place
		for i := 0; i < 20; i++ {
			out = append(out, placeFor(fmt.Sprintf("%s-%d", q.Types[0], i), 4.0))
		}
		return places.GroupResult{Places: out}, nil
	}

	run := func() *NearbyResult {
		svc := NewSearchService(newFakeRestaurants(), cache.NewMemoryStore(), &fakeFetcher{fetch: fetch}, testOptions())
		result, err := svc.SearchNearby(context.Background(), NearbyQuery{Lat: 40.7, Lng: -74.0, MaxResults: 50})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return result
	}

	first := run()
	second := run()

	if !first.Provenance.Truncated {
		t.Fatalf("expected truncation with 300 unique and max 50")
	}
	if len(first.Restaurants) != 50 {
		t.Fatalf("expected 50 restaurants, got %d", len(first.Restaurants))
	}
	if first.Provenance.UniquePlaces != 300 {
		t.Fatalf("expected 300 unique places, got %d", first.Provenance.UniquePlaces)
	}
	for i := range first.Restaurants {
		if first.Restaurants[i].GooglePlaceID != second.Restaurants[i].GooglePlaceID {
			t.Fatalf("truncation order differs at %d: %s vs %s",
				i, first.Restaurants[i].GooglePlaceID, second.Restaurants[i].GooglePlaceID)
		}
	}
}

func TestSearchNearbyPartialFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			switch q.Types[0] {
			case "restaurant", "italian_restaurant":
				return places.GroupResult{}, &places.ProviderError{StatusCode: 503, Retryable: true, Message: "unavailable"}
			default:
				return places.GroupResult{Places: []places.Place{placeFor("ok-"+q.Types[0], 4.0)}}, nil
			}
		},
	}
	svc := NewSearchService(newFakeRestaurants(), cache.NewMemoryStore(), fetcher, testOptions())

	result, err := svc.SearchNearby(context.Background(), NearbyQuery{Lat: 40.7, Lng: -74.0})
	if err != nil {
		t.Fatalf("partial failure must not abort the search: %v", err)
	}
	if len(result.Restaurants) != 13 {
		t.Fatalf("expected 13 restaurants from succeeding groups, got %d", len(result.Restaurants))
	}
	if result.Provenance.RequestsMade != 15 {
		t.Fatalf("expected all attempted calls counted, got %d", result.Provenance.RequestsMade)
	}
}

func TestSearchNearbyAllGroupsFailed(t *testing.T) {
	fetcher := &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			return places.GroupResult{}, &places.ProviderError{StatusCode: 503, Retryable: true, Message: "down"}
		},
	}
	store := cache.NewMemoryStore()
	svc := NewSearchService(newFakeRestaurants(), store, fetcher, testOptions())

	_, err := svc.SearchNearby(context.Background(), NearbyQuery{Lat: 40.7, Lng: -74.0})
	var ferr FetchError
	if !errors.As(err, &ferr) {
		t.Fatalf("expected FetchError, got %v", err)
	}

	// Total failure must not write a cache entry.
	key, _ := cache.BuildKey(40.7, -74.0, 1500, nil)
	if ids, _ := store.Get(context.Background(), key); ids != nil {
		t.Fatalf("expected no cache write after total failure")
	}
}

func TestSearchNearbyExplicitTypesSingleGroup(t *testing.T) {
	fetcher := &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			return places.GroupResult{Places: []places.Place{placeFor("bar-1", 4.0)}}, nil
		},
	}
	svc := NewSearchService(newFakeRestaurants(), cache.NewMemoryStore(), fetcher, testOptions())

	result, err := svc.SearchNearby(context.Background(), NearbyQuery{
		Lat: 40.7, Lng: -74.0, IncludedTypes: []string{"bar", "night_club"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.CallsMade() != 1 {
		t.Fatalf("expected a single provider call for explicit types, got %d", fetcher.CallsMade())
	}
	if result.Provenance.RequestsMade != 1 {
		t.Fatalf("unexpected requests made: %d", result.Provenance.RequestsMade)
	}
	if len(fetcher.queries[0].Types) != 2 {
		t.Fatalf("expected explicit types passed through, got %v", fetcher.queries[0].Types)
	}
}

func TestSearchNearbySkipCache(t *testing.T) {
	fetcher := &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			return places.GroupResult{Places: []places.Place{placeFor("p-"+q.Types[0], 4.0)}}, nil
		},
	}
	svc := NewSearchService(newFakeRestaurants(), cache.NewMemoryStore(), fetcher, testOptions())

	query := NearbyQuery{Lat: 40.7, Lng: -74.0}
	if _, err := svc.SearchNearby(context.Background(), query); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	query.SkipCache = true
	result, err := svc.SearchNearby(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cached {
		t.Fatalf("expected skip-cache to bypass the cache entry")
	}
	if fetcher.CallsMade() != int64(2*len(places.DefaultTypeGroups)) {
		t.Fatalf("expected a full second fan-out, got %d calls", fetcher.CallsMade())
	}
}

func TestSearchNearbyCacheBackendFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			return places.GroupResult{Places: []places.Place{placeFor("p-1", 4.0)}}, nil
		},
	}
	svc := NewSearchService(newFakeRestaurants(), failingStore{}, fetcher, testOptions())

	result, err := svc.SearchNearby(context.Background(), NearbyQuery{Lat: 40.7, Lng: -74.0})
	if err != nil {
		t.Fatalf("cache backend failure must fall back to a fresh fetch: %v", err)
	}
	if result.Cached {
		t.Fatalf("expected uncached result when backend is down")
	}
	if len(result.Restaurants) != 1 {
		t.Fatalf("expected fresh results, got %d", len(result.Restaurants))
	}
}

func TestSearchNearbyValidation(t *testing.T) {
	svc := NewSearchService(newFakeRestaurants(), cache.NewMemoryStore(), &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			t.Fatal("provider must not be called for invalid input")
			return places.GroupResult{}, nil
		},
	}, testOptions())

	tests := map[string]NearbyQuery{
		"lat too big":      {Lat: 91, Lng: 0},
		"lng too small":    {Lat: 0, Lng: -181},
		"radius too low":   {Lat: 0, Lng: 0, Radius: 50},
		"radius too high":  {Lat: 0, Lng: 0, Radius: 60000},
		"too many results": {Lat: 0, Lng: 0, MaxResults: 301},
	}
	for name, query := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.SearchNearby(context.Background(), query)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestSearchNearbyBudgetCapsGroups(t *testing.T) {
	fetcher := &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			return places.GroupResult{Places: []places.Place{placeFor("p-"+q.Types[0], 4.0)}}, nil
		},
	}
	opts := testOptions()
	opts.MaxProviderCalls = 5
	svc := NewSearchService(newFakeRestaurants(), cache.NewMemoryStore(), fetcher, opts)

	result, err := svc.SearchNearby(context.Background(), NearbyQuery{Lat: 40.7, Lng: -74.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.CallsMade() != 5 {
		t.Fatalf("expected budget to cap calls at 5, got %d", fetcher.CallsMade())
	}
	if result.Provenance.MaxRequests != 5 {
		t.Fatalf("unexpected max requests: %d", result.Provenance.MaxRequests)
	}
}

func TestSearchNearbyPagination(t *testing.T) {
	fetcher := &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			if q.PageToken == "" {
				return places.GroupResult{
					Places:        []places.Place{placeFor("page1-"+q.Types[0], 4.0)},
					NextPageToken: "tok",
				}, nil
			}
			return places.GroupResult{Places: []places.Place{placeFor("page2-"+q.Types[0], 4.0)}}, nil
		},
	}
	opts := testOptions()
	opts.PageDepth = 2
	svc := NewSearchService(newFakeRestaurants(), cache.NewMemoryStore(), fetcher, opts)

	result, err := svc.SearchNearby(context.Background(), NearbyQuery{
		Lat: 40.7, Lng: -74.0, IncludedTypes: []string{"bar"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.CallsMade() != 2 {
		t.Fatalf("expected 2 paginated calls, got %d", fetcher.CallsMade())
	}
	if len(result.Restaurants) != 2 {
		t.Fatalf("expected results from both pages, got %d", len(result.Restaurants))
	}
}

func TestSearchNearbyIdempotentUpsert(t *testing.T) {
	fetcher := &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			return places.GroupResult{Places: []places.Place{placeFor("stable", 4.2)}}, nil
		},
	}
	repo := newFakeRestaurants()
	svc := NewSearchService(repo, cache.NewMemoryStore(), fetcher, testOptions())

	query := NearbyQuery{Lat: 40.7, Lng: -74.0, SkipCache: true}
	first, err := svc.SearchNearby(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.SearchNearby(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first.Restaurants[0].ID != second.Restaurants[0].ID {
		t.Fatalf("expected repeated upsert to keep the same row identity")
	}
	if *first.Restaurants[0].Rating != *second.Restaurants[0].Rating {
		t.Fatalf("expected identical structured fields after re-upsert")
	}
	if repo.upserts != 2 {
		t.Fatalf("expected 2 upsert batches, got %d", repo.upserts)
	}
}

func TestSearchNearbyStaleCacheHitRefetches(t *testing.T) {
	fetcher := &fakeFetcher{
		fetch: func(q places.GroupQuery) (places.GroupResult, error) {
			return places.GroupResult{Places: []places.Place{placeFor("aging", 4.1)}}, nil
		},
	}
	repo := newFakeRestaurants()
	opts := testOptions()
	opts.StaleAfter = time.Hour
	svc := NewSearchService(repo, cache.NewMemoryStore(), fetcher, opts)

	query := NearbyQuery{Lat: 40.7, Lng: -74.0}
	if _, err := svc.SearchNearby(context.Background(), query); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	callsAfterFirst := fetcher.CallsMade()

	// Fresh rows: the cached identifier set is served without provider calls.
	second, err := svc.SearchNearby(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Cached || fetcher.CallsMade() != callsAfterFirst {
		t.Fatalf("expected cache hit while rows are fresh")
	}

	// Rows past the refresh window force a refetch despite the cache entry.
	repo.stale = func(placeIDs []string, maxAge time.Duration) ([]string, error) {
		if maxAge != time.Hour {
			t.Fatalf("expected staleness window to propagate, got %s", maxAge)
		}
		return []string{"aging"}, nil
	}
	third, err := svc.SearchNearby(context.Background(), query)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if third.Cached {
		t.Fatalf("expected stale rows to bypass the cache")
	}
	if fetcher.CallsMade() == callsAfterFirst {
		t.Fatalf("expected provider refetch for stale rows")
	}
}
