package handler

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/chompfood/search-api/internal/cache"
)

// AdminHandler exposes cache maintenance endpoints. Deployment assumes a
// trusted network; there is no caller authentication on these routes.
type AdminHandler struct {
	cache cache.Store
}

// NewAdminHandler constructs an admin handler over the cache store.
func NewAdminHandler(store cache.Store) *AdminHandler {
	return &AdminHandler{cache: store}
}

// CleanupCache handles POST /api/v1/admin/cleanup-cache, removing only
// entries that have already expired.
func (h *AdminHandler) CleanupCache(c echo.Context) error {
	deleted, err := h.cache.Sweep(c.Request().Context())
	if err != nil {
		log.Printf("cache sweep failed: %v", err)
		return Error(c, http.StatusInternalServerError, "cache sweep failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"deleted_entries": deleted})
}

// ClearAllCache handles POST /api/v1/admin/clear-all-cache. Used when search
// parameters or type groups change and every memoized result is suspect.
func (h *AdminHandler) ClearAllCache(c echo.Context) error {
	deleted, err := h.cache.Clear(c.Request().Context())
	if err != nil {
		log.Printf("cache clear failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"success": false, "error": "cache clear failed"})
	}
	log.Printf("cleared all %d cache entries", deleted)
	return c.JSON(http.StatusOK, map[string]any{"success": true, "deleted_entries": deleted})
}
