package handlers

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/ephemera-backend/internal/api/response"
)

// Sweeper runs one orphan reclamation pass
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// AdminHandler exposes operator actions
type AdminHandler struct {
	sweeper Sweeper
	errs    errorReporter
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(sweeper Sweeper, log *slog.Logger) *AdminHandler {
	return &AdminHandler{sweeper: sweeper, errs: newErrorReporter(nil, log)}
}

// Sweep handles POST /api/v1/admin/sweep
func (h *AdminHandler) Sweep(c echo.Context) error {
	n, err := h.sweeper.Sweep(c.Request().Context())
	if err != nil {
		return h.errs.fail(c, err, "")
	}
	return response.Success(c, map[string]int{"reclaimed": n})
}
