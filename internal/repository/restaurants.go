package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chompfood/search-api/internal/entity"
)

// ErrRestaurantNotFound is returned when no restaurant matches the lookup.
var ErrRestaurantNotFound = errors.New("restaurant not found")

// RestaurantsRepository describes persistence operations for restaurants.
// Restaurants are only ever inserted or refreshed, never deleted: a place
// missing from the latest fetch is not evidence of closure.
type RestaurantsRepository interface {
	UpsertBatch(ctx context.Context, records []entity.RestaurantUpsert) ([]entity.Restaurant, error)
	GetByPlaceIDs(ctx context.Context, placeIDs []string) ([]entity.Restaurant, error)
	GetByPlaceID(ctx context.Context, placeID string) (*entity.Restaurant, error)
	StalePlaceIDs(ctx context.Context, placeIDs []string, maxAge time.Duration) ([]string, error)
}

// PGXRestaurantsRepository implements RestaurantsRepository with pgx.
type PGXRestaurantsRepository struct {
	pool *pgxpool.Pool
}

// NewPGXRestaurantsRepository instantiates a restaurants repository.
func NewPGXRestaurantsRepository(pool *pgxpool.Pool) *PGXRestaurantsRepository {
	return &PGXRestaurantsRepository{pool: pool}
}

const restaurantColumns = `
        id,
        google_place_id,
        name,
        formatted_address,
        lat,
        lng,
        primary_type,
        types,
        rating,
        user_rating_count,
        price_level,
        phone,
        website,
        provider_payload,
        last_fetched_at,
        created_at,
        updated_at`

const upsertRestaurantSQL = `
        INSERT INTO restaurants (
            google_place_id,
            name,
            formatted_address,
            lat,
            lng,
            primary_type,
            types,
            rating,
            user_rating_count,
            price_level,
            phone,
            website,
            provider_payload,
            last_fetched_at,
            updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NOW())
        ON CONFLICT (google_place_id) DO UPDATE SET
            name = EXCLUDED.name,
            formatted_address = EXCLUDED.formatted_address,
            lat = EXCLUDED.lat,
            lng = EXCLUDED.lng,
            primary_type = EXCLUDED.primary_type,
            types = EXCLUDED.types,
            rating = EXCLUDED.rating,
            user_rating_count = EXCLUDED.user_rating_count,
            price_level = EXCLUDED.price_level,
            phone = EXCLUDED.phone,
            website = EXCLUDED.website,
            provider_payload = EXCLUDED.provider_payload,
            last_fetched_at = EXCLUDED.last_fetched_at,
            updated_at = NOW()
        RETURNING ` + restaurantColumns

// UpsertBatch inserts or refreshes one row per snapshot, keyed by
// google_place_id, inside a single transaction. Returned rows preserve the
// input order.
func (r *PGXRestaurantsRepository) UpsertBatch(ctx context.Context, records []entity.RestaurantUpsert) ([]entity.Restaurant, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("start upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	restaurants := make([]entity.Restaurant, 0, len(records))
	for _, record := range records {
		if record.GooglePlaceID == "" {
			return nil, fmt.Errorf("upsert restaurant: missing place id")
		}

		payload := record.ProviderPayload
		if len(payload) == 0 {
			payload = json.RawMessage("{}")
		}

		row := tx.QueryRow(ctx, upsertRestaurantSQL,
			record.GooglePlaceID,
			record.Name,
			record.FormattedAddress,
			record.Lat,
			record.Lng,
			record.PrimaryType,
			record.Types,
			record.Rating,
			record.UserRatingCount,
			record.PriceLevel,
			record.Phone,
			record.Website,
			payload,
			record.LastFetchedAt,
		)

		restaurant, err := scanRestaurant(row)
		if err != nil {
			return nil, fmt.Errorf("upsert restaurant %q: %w", record.GooglePlaceID, err)
		}
		restaurants = append(restaurants, *restaurant)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit upsert tx: %w", err)
	}

	return restaurants, nil
}

// GetByPlaceIDs fetches restaurants for the given place IDs, preserving the
// order of the input slice and silently dropping IDs with no stored row.
func (r *PGXRestaurantsRepository) GetByPlaceIDs(ctx context.Context, placeIDs []string) ([]entity.Restaurant, error) {
	if len(placeIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx, `
        SELECT `+restaurantColumns+`
        FROM restaurants
        WHERE google_place_id = ANY($1)
    `, placeIDs)
	if err != nil {
		return nil, fmt.Errorf("query restaurants by place ids: %w", err)
	}
	defer rows.Close()

	byPlaceID := make(map[string]entity.Restaurant, len(placeIDs))
	for rows.Next() {
		restaurant, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan restaurant: %w", err)
		}
		byPlaceID[restaurant.GooglePlaceID] = *restaurant
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate restaurants: %w", err)
	}

	ordered := make([]entity.Restaurant, 0, len(byPlaceID))
	for _, id := range placeIDs {
		if restaurant, ok := byPlaceID[id]; ok {
			ordered = append(ordered, restaurant)
		}
	}
	return ordered, nil
}

// GetByPlaceID retrieves a single restaurant by its place ID.
func (r *PGXRestaurantsRepository) GetByPlaceID(ctx context.Context, placeID string) (*entity.Restaurant, error) {
	row := r.pool.QueryRow(ctx, `
        SELECT `+restaurantColumns+`
        FROM restaurants
        WHERE google_place_id = $1
    `, placeID)

	restaurant, err := scanRestaurant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRestaurantNotFound
		}
		return nil, fmt.Errorf("query restaurant by place id: %w", err)
	}
	return restaurant, nil
}

// StalePlaceIDs returns the subset of placeIDs whose stored row is older than
// maxAge or missing entirely; those need a provider refresh.
func (r *PGXRestaurantsRepository) StalePlaceIDs(ctx context.Context, placeIDs []string, maxAge time.Duration) ([]string, error) {
	if len(placeIDs) == 0 {
		return nil, nil
	}

	cutoff := time.Now().UTC().Add(-maxAge)
	rows, err := r.pool.Query(ctx, `
        SELECT google_place_id
        FROM restaurants
        WHERE google_place_id = ANY($1) AND last_fetched_at > $2
    `, placeIDs, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query fresh restaurants: %w", err)
	}
	defer rows.Close()

	fresh := make(map[string]struct{}, len(placeIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan fresh place id: %w", err)
		}
		fresh[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fresh place ids: %w", err)
	}

	var stale []string
	for _, id := range placeIDs {
		if _, ok := fresh[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale, nil
}

func scanRestaurant(row pgx.Row) (*entity.Restaurant, error) {
	var (
		restaurant entity.Restaurant
		payload    []byte
	)
	if err := row.Scan(
		&restaurant.ID,
		&restaurant.GooglePlaceID,
		&restaurant.Name,
		&restaurant.FormattedAddress,
		&restaurant.Lat,
		&restaurant.Lng,
		&restaurant.PrimaryType,
		&restaurant.Types,
		&restaurant.Rating,
		&restaurant.UserRatingCount,
		&restaurant.PriceLevel,
		&restaurant.Phone,
		&restaurant.Website,
		&payload,
		&restaurant.LastFetchedAt,
		&restaurant.CreatedAt,
		&restaurant.UpdatedAt,
	); err != nil {
		return nil, err
	}
	restaurant.ProviderPayload = payload
	return &restaurant, nil
}
