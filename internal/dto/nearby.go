package dto

import (
	"time"

	"github.com/chompfood/search-api/internal/entity"
)

// Location is the caller-supplied search center.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NearbySearchRequest is the payload for POST /api/v1/nearby. Location is
// required; zero values for radius and max_results are replaced by configured
// defaults.
type NearbySearchRequest struct {
	Location      *Location `json:"location"`
	Radius        int       `json:"radius,omitempty"`
	MaxResults    int       `json:"max_results,omitempty"`
	IncludedTypes []string  `json:"included_types,omitempty"`
}

// NearbySearchResponse returns matched restaurants plus fetch provenance.
// The provenance counters are only present for uncached responses.
type NearbySearchResponse struct {
	Restaurants  []RestaurantResponse `json:"restaurants"`
	Count        int                  `json:"count"`
	Cached       bool                 `json:"cached"`
	CacheKey     string               `json:"cache_key,omitempty"`
	RequestsMade *int                 `json:"requests_made,omitempty"`
	MaxRequests  *int                 `json:"max_requests,omitempty"`
	RawPlaces    *int                 `json:"raw_places,omitempty"`
	UniquePlaces *int                 `json:"unique_places,omitempty"`
	Truncated    *bool                `json:"truncated,omitempty"`
}

// RestaurantResponse is the restaurant shape returned to clients. The raw
// provider payload stays server-side.
type RestaurantResponse struct {
	ID               string     `json:"id"`
	GooglePlaceID    string     `json:"google_place_id"`
	Name             *string    `json:"name"`
	FormattedAddress *string    `json:"formatted_address"`
	Lat              *float64   `json:"lat"`
	Lng              *float64   `json:"lng"`
	PrimaryType      *string    `json:"primary_type"`
	Types            []string   `json:"types"`
	Rating           *float64   `json:"rating"`
	UserRatingCount  *int       `json:"user_rating_count"`
	PriceLevel       *int       `json:"price_level"`
	Phone            *string    `json:"phone"`
	Website          *string    `json:"website"`
	LastFetchedAt    *time.Time `json:"last_fetched_at"`
}

// NewRestaurantResponse maps a stored restaurant to its client shape.
func NewRestaurantResponse(r entity.Restaurant) RestaurantResponse {
	return RestaurantResponse{
		ID:               r.ID.String(),
		GooglePlaceID:    r.GooglePlaceID,
		Name:             r.Name,
		FormattedAddress: r.FormattedAddress,
		Lat:              r.Lat,
		Lng:              r.Lng,
		PrimaryType:      r.PrimaryType,
		Types:            r.Types,
		Rating:           r.Rating,
		UserRatingCount:  r.UserRatingCount,
		PriceLevel:       r.PriceLevel,
		Phone:            r.Phone,
		Website:          r.Website,
		LastFetchedAt:    r.LastFetchedAt,
	}
}

// HealthResponse reports service liveness and database connectivity.
type HealthResponse struct {
	Status    string    `json:"status"`
	Database  string    `json:"database"`
	Timestamp time.Time `json:"timestamp"`
}
