package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Restaurant is the canonical record for a physical establishment, keyed by
// its Google Place ID. Rows are created on first fetch and refreshed in place
// on every subsequent fetch; they are never deleted.
type Restaurant struct {
	ID               uuid.UUID       `json:"id"`
	GooglePlaceID    string          `json:"google_place_id"`
	Name             *string         `json:"name,omitempty"`
	FormattedAddress *string         `json:"formatted_address,omitempty"`
	Lat              *float64        `json:"lat,omitempty"`
	Lng              *float64        `json:"lng,omitempty"`
	PrimaryType      *string         `json:"primary_type,omitempty"`
	Types            []string        `json:"types,omitempty"`
	Rating           *float64        `json:"rating,omitempty"`
	UserRatingCount  *int            `json:"user_rating_count,omitempty"`
	PriceLevel       *int            `json:"price_level,omitempty"`
	Phone            *string         `json:"phone,omitempty"`
	Website          *string         `json:"website,omitempty"`
	ProviderPayload  json.RawMessage `json:"-"`
	LastFetchedAt    *time.Time      `json:"last_fetched_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// RestaurantUpsert is a provider snapshot of a single establishment, ready to
// be written to the canonical store. Upserting the same snapshot twice leaves
// the stored row unchanged aside from timestamps.
type RestaurantUpsert struct {
	GooglePlaceID    string
	Name             *string
	FormattedAddress *string
	Lat              *float64
	Lng              *float64
	PrimaryType      *string
	Types            []string
	Rating           *float64
	UserRatingCount  *int
	PriceLevel       *int
	Phone            *string
	Website          *string
	ProviderPayload  json.RawMessage
	LastFetchedAt    time.Time
}
