package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/chompfood/search-api/internal/dto"
	"github.com/chompfood/search-api/internal/service"
)

// NearbySearcher is the orchestrator contract the handler depends on.
type NearbySearcher interface {
	SearchNearby(ctx context.Context, q service.NearbyQuery) (*service.NearbyResult, error)
}

// NearbyHandler serves the nearby-search endpoints.
type NearbyHandler struct {
	search NearbySearcher
}

// NewNearbyHandler constructs a nearby-search handler.
func NewNearbyHandler(search NearbySearcher) *NearbyHandler {
	return &NearbyHandler{search: search}
}

// Search handles POST /api/v1/nearby. The X-Skip-Cache header forces a fresh
// provider fan-out regardless of cache state.
func (h *NearbyHandler) Search(c echo.Context) error {
	var req dto.NearbySearchRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}
	if req.Location == nil {
		return Error(c, http.StatusBadRequest, "location is required")
	}

	query := service.NearbyQuery{
		Lat:           req.Location.Lat,
		Lng:           req.Location.Lng,
		Radius:        req.Radius,
		MaxResults:    req.MaxResults,
		IncludedTypes: req.IncludedTypes,
		SkipCache:     strings.EqualFold(c.Request().Header.Get("X-Skip-Cache"), "true"),
	}

	return h.respond(c, query)
}

// SearchGet handles GET /api/v1/nearby, a query-param convenience variant
// for manual testing.
func (h *NearbyHandler) SearchGet(c echo.Context) error {
	lat, err := strconv.ParseFloat(c.QueryParam("lat"), 64)
	if err != nil {
		return Error(c, http.StatusBadRequest, "lat must be a number")
	}
	lng, err := strconv.ParseFloat(c.QueryParam("lng"), 64)
	if err != nil {
		return Error(c, http.StatusBadRequest, "lng must be a number")
	}

	query := service.NearbyQuery{Lat: lat, Lng: lng}
	if raw := c.QueryParam("radius"); raw != "" {
		radius, err := strconv.Atoi(raw)
		if err != nil {
			return Error(c, http.StatusBadRequest, "radius must be an integer")
		}
		query.Radius = radius
	}
	if raw := c.QueryParam("max_results"); raw != "" {
		maxResults, err := strconv.Atoi(raw)
		if err != nil {
			return Error(c, http.StatusBadRequest, "max_results must be an integer")
		}
		query.MaxResults = maxResults
	}

	return h.respond(c, query)
}

func (h *NearbyHandler) respond(c echo.Context, query service.NearbyQuery) error {
	result, err := h.search.SearchNearby(c.Request().Context(), query)
	if err != nil {
		var verr service.ValidationError
		if errors.As(err, &verr) {
			return Error(c, http.StatusBadRequest, verr.Message)
		}
		var ferr service.FetchError
		if errors.As(err, &ferr) {
			log.Printf("nearby search unavailable: %v", ferr)
			return Error(c, http.StatusServiceUnavailable, "restaurant search temporarily unavailable")
		}
		log.Printf("nearby search failed: %v", err)
		return Error(c, http.StatusInternalServerError, "failed to process search results")
	}

	restaurants := make([]dto.RestaurantResponse, 0, len(result.Restaurants))
	for _, restaurant := range result.Restaurants {
		restaurants = append(restaurants, dto.NewRestaurantResponse(restaurant))
	}

	resp := dto.NearbySearchResponse{
		Restaurants: restaurants,
		Count:       len(restaurants),
		Cached:      result.Cached,
		CacheKey:    result.CacheKey,
	}
	if p := result.Provenance; p != nil {
		resp.RequestsMade = &p.RequestsMade
		resp.MaxRequests = &p.MaxRequests
		resp.RawPlaces = &p.RawPlaces
		resp.UniquePlaces = &p.UniquePlaces
		resp.Truncated = &p.Truncated
	}

	return c.JSON(http.StatusOK, resp)
}
