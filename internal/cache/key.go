package cache

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// keyPrecision is the number of decimal digits kept on coordinates, roughly a
// 110m grid. Nearby requests collapse onto the same grid cell and share one
// cache entry.
const keyPrecision = 3

// BuildKey produces the deterministic cache key for a nearby query.
// Coordinates are rounded, the type set is sorted, and an empty type set maps
// onto a distinct default-group sentinel (the trailing empty segment).
func BuildKey(lat, lng float64, radius int, types []string) (string, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return "", fmt.Errorf("latitude is not a finite number")
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) {
		return "", fmt.Errorf("longitude is not a finite number")
	}

	sorted := make([]string, 0, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		if t != "" {
			sorted = append(sorted, t)
		}
	}
	sort.Strings(sorted)

	return fmt.Sprintf("nearby:%s:%s:%d:%s",
		formatCoordinate(lat),
		formatCoordinate(lng),
		radius,
		strings.Join(sorted, ","),
	), nil
}

func formatCoordinate(v float64) string {
	factor := math.Pow10(keyPrecision)
	rounded := math.Round(v*factor) / factor
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
