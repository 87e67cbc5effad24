package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chompfood/search-api/internal/config"
	"github.com/chompfood/search-api/internal/handler"
	middlewarepkg "github.com/chompfood/search-api/internal/middleware"
)

// Version identifies the running build; surfaced by GET /version.
const Version = "search-api-1.0.0"

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Health     *handler.HealthHandler
	Nearby     *handler.NearbyHandler
	Restaurant *handler.RestaurantHandler
	Admin      *handler.AdminHandler
}

// Register wires all HTTP routes for the API. The admin group assumes a
// trusted-network deployment and carries no authentication.
func Register(e *echo.Echo, cfg *config.Config, handlers Handlers) {
	e.GET("/health", handlers.Health.Check)
	e.GET("/version", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"version": Version})
	})

	v1 := e.Group("/api/v1")

	nearbyLimiter := middlewarepkg.NearbyRateLimiter(cfg.RateLimitNearby)
	v1.POST("/nearby", handlers.Nearby.Search, nearbyLimiter)
	v1.GET("/nearby", handlers.Nearby.SearchGet, nearbyLimiter)

	v1.GET("/restaurants/:place_id", handlers.Restaurant.GetByPlaceID)

	admin := v1.Group("/admin")
	admin.POST("/cleanup-cache", handlers.Admin.CleanupCache)
	admin.POST("/clear-all-cache", handlers.Admin.ClearAllCache)
}
