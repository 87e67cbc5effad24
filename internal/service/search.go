package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chompfood/search-api/internal/cache"
	"github.com/chompfood/search-api/internal/entity"
	"github.com/chompfood/search-api/internal/places"
	"github.com/chompfood/search-api/internal/repository"
)

const (
	minRadiusMeters   = 100
	maxResultsCeiling = 300
)

// SearchOptions are the tunables for the fan-out orchestrator.
type SearchOptions struct {
	DefaultRadius     int
	MaxRadius         int
	DefaultMaxResults int
	// MaxProviderCalls caps how many provider calls one search may spend.
	MaxProviderCalls int
	// PageDepth is how many pages each type group may follow.
	PageDepth int
	CacheTTL  time.Duration
	// StaleAfter is how old a stored restaurant row may be before a cache hit
	// covering it is treated as a miss and the details refetched. Zero
	// disables the staleness check.
	StaleAfter time.Duration
}

// NearbyQuery is a validated-on-entry search request.
type NearbyQuery struct {
	Lat           float64
	Lng           float64
	Radius        int
	MaxResults    int
	IncludedTypes []string
	SkipCache     bool
}

// Provenance reports how an uncached result set was produced.
type Provenance struct {
	RequestsMade int
	MaxRequests  int
	RawPlaces    int
	UniquePlaces int
	Truncated    bool
}

// NearbyResult is the orchestrator's response. Provenance is nil when the
// result was served from cache.
type NearbyResult struct {
	Restaurants []entity.Restaurant
	Cached      bool
	CacheKey    string
	Provenance  *Provenance
}

// SearchService drives the bounded fan-out across provider type groups,
// merging and deduplicating results, persisting them, and memoizing the
// identifier set.
type SearchService struct {
	restaurants repository.RestaurantsRepository
	cache       cache.Store
	provider    places.Fetcher
	opts        SearchOptions
	now         func() time.Time
}

// NewSearchService wires the orchestrator.
func NewSearchService(restaurants repository.RestaurantsRepository, store cache.Store, provider places.Fetcher, opts SearchOptions) *SearchService {
	if opts.PageDepth <= 0 {
		opts.PageDepth = 1
	}
	return &SearchService{
		restaurants: restaurants,
		cache:       store,
		provider:    provider,
		opts:        opts,
		now:         time.Now,
	}
}

// SearchNearby resolves a nearby query via the cache when possible, otherwise
// fans out across type groups within the call budget. The cache is only
// written after a fully merged result set, so an aborted search never leaves
// a partial entry behind.
func (s *SearchService) SearchNearby(ctx context.Context, q NearbyQuery) (*NearbyResult, error) {
	if q.Radius == 0 {
		q.Radius = s.opts.DefaultRadius
	}
	if q.MaxResults == 0 {
		q.MaxResults = s.opts.DefaultMaxResults
	}
	if err := s.validate(q); err != nil {
		return nil, err
	}

	key, err := cache.BuildKey(q.Lat, q.Lng, q.Radius, q.IncludedTypes)
	if err != nil {
		return nil, ValidationError{Message: err.Error()}
	}

	if !q.SkipCache {
		if result := s.lookupCache(ctx, key); result != nil {
			return result, nil
		}
	}

	return s.fanOut(ctx, q, key)
}

func (s *SearchService) validate(q NearbyQuery) error {
	if math.IsNaN(q.Lat) || math.IsInf(q.Lat, 0) || q.Lat < -90 || q.Lat > 90 {
		return ValidationError{Message: "latitude must be a finite number between -90 and 90"}
	}
	if math.IsNaN(q.Lng) || math.IsInf(q.Lng, 0) || q.Lng < -180 || q.Lng > 180 {
		return ValidationError{Message: "longitude must be a finite number between -180 and 180"}
	}
	if q.Radius < minRadiusMeters || q.Radius > s.opts.MaxRadius {
		return ValidationError{Message: fmt.Sprintf("radius must be between %d and %d meters", minRadiusMeters, s.opts.MaxRadius)}
	}
	if q.MaxResults < 1 || q.MaxResults > maxResultsCeiling {
		return ValidationError{Message: fmt.Sprintf("max_results must be between 1 and %d", maxResultsCeiling)}
	}
	return nil
}

// lookupCache returns a resolved cached result, or nil on miss. A cache
// backend failure is logged and treated as a miss so a broken cache never
// breaks search.
func (s *SearchService) lookupCache(ctx context.Context, key string) *NearbyResult {
	placeIDs, err := s.cache.Get(ctx, key)
	if err != nil {
		log.Printf("cache lookup failed key=%s err=%v", key, err)
		return nil
	}
	if placeIDs == nil {
		return nil
	}

	// Identifiers whose restaurant row has vanished are dropped here.
	restaurants, err := s.restaurants.GetByPlaceIDs(ctx, placeIDs)
	if err != nil {
		log.Printf("cache resolve failed key=%s err=%v", key, err)
		return nil
	}

	if s.opts.StaleAfter > 0 {
		stale, err := s.restaurants.StalePlaceIDs(ctx, placeIDs, s.opts.StaleAfter)
		if err != nil {
			log.Printf("staleness check failed key=%s err=%v", key, err)
		} else if len(stale) > 0 {
			log.Printf("cache hit has %d stale restaurants key=%s, refetching", len(stale), key)
			return nil
		}
	}

	log.Printf("cache hit key=%s restaurants=%d", key, len(restaurants))
	return &NearbyResult{
		Restaurants: restaurants,
		Cached:      true,
		CacheKey:    key,
	}
}

type groupOutcome struct {
	places []places.Place
	calls  int
	err    error
}

func (s *SearchService) fanOut(ctx context.Context, q NearbyQuery, key string) (*NearbyResult, error) {
	groups := s.planGroups(q)
	budget := s.opts.MaxProviderCalls
	if len(groups) > budget {
		groups = groups[:budget]
	}
	maxRequests := len(groups) * s.opts.PageDepth
	if maxRequests > budget {
		maxRequests = budget
	}

	log.Printf("cache miss key=%s groups=%d budget=%d", key, len(groups), budget)

	// callBudget holds the calls left beyond each group's first page; extra
	// pages must reserve from it so the ceiling holds across goroutines.
	var extraBudget atomic.Int64
	extraBudget.Store(int64(budget - len(groups)))
	var rawSeen atomic.Int64

	outcomes := make([]groupOutcome, len(groups))
	var eg errgroup.Group
	for i, group := range groups {
		i, group := i, group
		eg.Go(func() error {
			outcomes[i] = s.fetchGroup(ctx, q, group, &extraBudget, &rawSeen)
			return nil
		})
	}
	// Join barrier: provenance is computed over a consistent snapshot, never
	// over a partially merged set.
	_ = eg.Wait()

	requestsMade := 0
	failures := 0
	var lastErr error
	for i, outcome := range outcomes {
		requestsMade += outcome.calls
		if outcome.err != nil {
			failures++
			lastErr = outcome.err
			log.Printf("type group failed key=%s group=%d types=%v err=%v", key, i, groups[i], outcome.err)
		}
	}
	if failures == len(groups) {
		return nil, FetchError{Message: fmt.Sprintf("all %d provider requests failed: %v", len(groups), lastErr)}
	}

	// Merge in fixed group order; a later group's record for the same place
	// overwrites an earlier one, while first-seen order drives truncation.
	merged := make(map[string]places.Place)
	var firstSeen []string
	rawCount := 0
	for _, outcome := range outcomes {
		for _, place := range outcome.places {
			if place.ID == "" {
				continue
			}
			rawCount++
			if _, ok := merged[place.ID]; !ok {
				firstSeen = append(firstSeen, place.ID)
			}
			merged[place.ID] = place
		}
	}

	uniqueCount := len(firstSeen)
	truncated := uniqueCount > q.MaxResults
	retained := firstSeen
	if truncated {
		retained = firstSeen[:q.MaxResults]
	}

	provenance := &Provenance{
		RequestsMade: requestsMade,
		MaxRequests:  maxRequests,
		RawPlaces:    rawCount,
		UniquePlaces: uniqueCount,
		Truncated:    truncated,
	}

	if len(retained) == 0 {
		return &NearbyResult{Restaurants: []entity.Restaurant{}, CacheKey: key, Provenance: provenance}, nil
	}

	fetchedAt := s.now().UTC()
	records := make([]entity.RestaurantUpsert, 0, len(retained))
	for _, id := range retained {
		records = append(records, places.ParsePlace(merged[id], fetchedAt))
	}

	restaurants, err := s.restaurants.UpsertBatch(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("persist search results: %w", err)
	}

	if err := s.cache.Set(ctx, key, retained, s.opts.CacheTTL); err != nil {
		log.Printf("cache write failed key=%s err=%v", key, err)
	}

	return &NearbyResult{
		Restaurants: restaurants,
		CacheKey:    key,
		Provenance:  provenance,
	}, nil
}

// planGroups picks the type groups to query: the caller's explicit list as a
// single group, or the fixed default fan-out.
func (s *SearchService) planGroups(q NearbyQuery) [][]string {
	if len(q.IncludedTypes) > 0 {
		return [][]string{q.IncludedTypes}
	}
	return places.DefaultTypeGroups
}

// fetchGroup issues the first-page call for one type group and follows
// pagination while the shared budget and the result cap allow it. The first
// page is pre-budgeted by the caller; only follow-up pages draw from
// extraBudget. With PageDepth > 1, which groups win an extraBudget
// reservation and where rawSeen crosses MaxResults depend on goroutine
// scheduling, so the fetched page set is only deterministic at depth 1.
func (s *SearchService) fetchGroup(ctx context.Context, q NearbyQuery, types []string, extraBudget, rawSeen *atomic.Int64) groupOutcome {
	outcome := groupOutcome{}
	pageToken := ""

	for page := 0; page < s.opts.PageDepth; page++ {
		if page > 0 {
			if pageToken == "" || rawSeen.Load() >= int64(q.MaxResults) {
				break
			}
			if extraBudget.Add(-1) < 0 {
				extraBudget.Add(1)
				break
			}
		}

		outcome.calls++
		result, err := s.provider.FetchTypeGroup(ctx, places.GroupQuery{
			Lat:       q.Lat,
			Lng:       q.Lng,
			Radius:    q.Radius,
			Types:     types,
			PageToken: pageToken,
		})
		if err != nil {
			// A page-one failure fails the group; a later page failure keeps
			// what earlier pages returned.
			if page == 0 {
				outcome.err = err
			}
			break
		}

		outcome.places = append(outcome.places, result.Places...)
		rawSeen.Add(int64(len(result.Places)))
		pageToken = result.NextPageToken
	}

	return outcome
}
