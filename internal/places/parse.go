package places

import (
	"strings"
	"time"

	"github.com/nyaruka/phonenumbers"

	"github.com/chompfood/search-api/internal/entity"
)

const defaultPhoneRegion = "US"

var priceLevelOrdinals = map[string]int{
	"PRICE_LEVEL_FREE":           0,
	"PRICE_LEVEL_INEXPENSIVE":    1,
	"PRICE_LEVEL_MODERATE":       2,
	"PRICE_LEVEL_EXPENSIVE":      3,
	"PRICE_LEVEL_VERY_EXPENSIVE": 4,
}

// ParsePlace maps a provider place onto the canonical restaurant snapshot.
// Unknown price levels stay nil, phones normalize to E.164 when parseable,
// and the full provider object is retained for later field extraction.
func ParsePlace(place Place, fetchedAt time.Time) entity.RestaurantUpsert {
	record := entity.RestaurantUpsert{
		GooglePlaceID:   place.ID,
		Types:           place.Types,
		Rating:          place.Rating,
		UserRatingCount: place.UserRatingCount,
		ProviderPayload: place.Raw,
		LastFetchedAt:   fetchedAt,
	}

	if place.DisplayName != nil && place.DisplayName.Text != "" {
		record.Name = ptr(place.DisplayName.Text)
	}
	if place.FormattedAddress != "" {
		record.FormattedAddress = ptr(place.FormattedAddress)
	}
	if place.Location != nil {
		record.Lat = ptr(place.Location.Latitude)
		record.Lng = ptr(place.Location.Longitude)
	}
	if place.PrimaryType != "" {
		record.PrimaryType = ptr(place.PrimaryType)
	}
	if level, ok := priceLevelOrdinals[place.PriceLevel]; ok {
		record.PriceLevel = ptr(level)
	}
	if phone := normalizePhone(place.NationalPhoneNumber, defaultPhoneRegion); phone != "" {
		record.Phone = ptr(phone)
	}
	if place.WebsiteURI != "" {
		record.Website = ptr(place.WebsiteURI)
	}

	return record
}

// normalizePhone formats the provider's national number as E.164, falling
// back to the raw string when it will not parse as a valid number.
func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	number, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return raw
	}
	if !phonenumbers.IsPossibleNumber(number) || !phonenumbers.IsValidNumber(number) {
		return raw
	}
	return phonenumbers.Format(number, phonenumbers.E164)
}

func ptr[T any](v T) *T { return &v }
