package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/chompfood/search-api/internal/dto"
)

// HealthHandler reports liveness plus database connectivity.
type HealthHandler struct {
	dbCheck func(ctx context.Context) bool
}

// NewHealthHandler constructs a health handler around a connectivity probe.
func NewHealthHandler(dbCheck func(ctx context.Context) bool) *HealthHandler {
	return &HealthHandler{dbCheck: dbCheck}
}

// Check handles GET /health.
func (h *HealthHandler) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	resp := dto.HealthResponse{
		Status:    "ok",
		Database:  "connected",
		Timestamp: time.Now().UTC(),
	}
	if h.dbCheck == nil || !h.dbCheck(ctx) {
		resp.Status = "degraded"
		resp.Database = "disconnected"
	}
	return c.JSON(http.StatusOK, resp)
}
