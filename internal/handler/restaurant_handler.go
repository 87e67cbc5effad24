package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chompfood/search-api/internal/dto"
	"github.com/chompfood/search-api/internal/entity"
	"github.com/chompfood/search-api/internal/repository"
)

// RestaurantHandler serves stored restaurant lookups.
type RestaurantHandler struct {
	restaurants repository.RestaurantsRepository
}

// NewRestaurantHandler constructs a restaurant handler.
func NewRestaurantHandler(restaurants repository.RestaurantsRepository) *RestaurantHandler {
	return &RestaurantHandler{restaurants: restaurants}
}

// GetByPlaceID handles GET /api/v1/restaurants/:place_id, returning the
// stored record without touching the provider.
func (h *RestaurantHandler) GetByPlaceID(c echo.Context) error {
	placeID, err := entity.ParsePlaceID(c.Param("place_id"))
	if err != nil {
		return Error(c, http.StatusBadRequest, err.Error())
	}

	restaurant, err := h.restaurants.GetByPlaceID(c.Request().Context(), placeID.String())
	if err != nil {
		if errors.Is(err, repository.ErrRestaurantNotFound) {
			return Error(c, http.StatusNotFound, "restaurant not found")
		}
		return Error(c, http.StatusInternalServerError, "failed to load restaurant")
	}

	return c.JSON(http.StatusOK, dto.NewRestaurantResponse(*restaurant))
}
