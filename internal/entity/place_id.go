package entity

import (
	"fmt"
	"strings"
)

// PlaceID references an establishment in the external places provider. It is
// the loose link shared across services: validated for shape only, never
// enforced as a foreign key, so each service can ingest and age data on its
// own schedule.
type PlaceID string

const maxPlaceIDLength = 512

// ParsePlaceID validates the shape of an external place identifier.
func ParsePlaceID(raw string) (PlaceID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("place id must not be empty")
	}
	if len(trimmed) > maxPlaceIDLength {
		return "", fmt.Errorf("place id exceeds %d characters", maxPlaceIDLength)
	}
	for _, r := range trimmed {
		if r < 0x21 || r > 0x7e {
			return "", fmt.Errorf("place id contains invalid character %q", r)
		}
	}
	return PlaceID(trimmed), nil
}

// String returns the raw identifier.
func (p PlaceID) String() string { return string(p) }
