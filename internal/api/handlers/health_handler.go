package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/welldanyogia/ephemera-backend/internal/database"
)

// pingTimeout bounds a single database probe
const pingTimeout = 2 * time.Second

// HealthHandler handles health check HTTP requests
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func (h *HealthHandler) ping(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
	defer cancel()
	return database.Ping(ctx, h.db)
}

// Health handles GET /health
func (h *HealthHandler) Health(c echo.Context) error {
	resp := HealthResponse{
		Status:   "healthy",
		Services: map[string]string{"database": "healthy"},
	}

	statusCode := http.StatusOK
	if err := h.ping(c); err != nil {
		resp.Status = "unhealthy"
		resp.Services["database"] = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, resp)
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c echo.Context) error {
	if err := h.ping(c); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database ping failed",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
	})
}
