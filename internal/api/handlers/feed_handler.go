package handlers

import (
	"log/slog"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/ephemera-backend/internal/websocket"
)

// FeedHandler upgrades clients onto the live post feed
type FeedHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	log      *slog.Logger
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(hub *websocket.Hub, upgrader gorillaws.Upgrader, log *slog.Logger) *FeedHandler {
	return &FeedHandler{hub: hub, upgrader: upgrader, log: log}
}

// Feed handles GET /api/v1/feed
func (h *FeedHandler) Feed(c echo.Context) error {
	if err := websocket.Serve(h.hub, &h.upgrader, c.Response(), c.Request(), h.log); err != nil {
		// The upgrader has already written the HTTP error
		h.log.Debug("websocket upgrade failed", slog.Any("error", err))
	}
	return nil
}
