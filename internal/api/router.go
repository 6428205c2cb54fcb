package api

import (
	"fmt"
	"log/slog"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/welldanyogia/ephemera-backend/internal/api/handlers"
	"github.com/welldanyogia/ephemera-backend/internal/api/middleware"
	"github.com/welldanyogia/ephemera-backend/internal/logger"
	"github.com/welldanyogia/ephemera-backend/internal/metrics"
	"github.com/welldanyogia/ephemera-backend/internal/services"
	"github.com/welldanyogia/ephemera-backend/internal/storage"
	"github.com/welldanyogia/ephemera-backend/internal/websocket"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB          *gorm.DB
	Posts       services.PostService
	Attachments services.AttachmentService
	Sweeper     handlers.Sweeper
	Uploads     storage.FileStorage
	Hub         *websocket.Hub
	Upgrader    gorillaws.Upgrader
	Logger      *slog.Logger
	Security    *logger.SecurityLogger

	// Security configuration
	APIKey         string   // API key for admin routes (empty = open)
	AllowedOrigins []string // Allowed CORS and websocket origins
	AppEnv         string
	RateLimiter    *middleware.IPRateLimiter
}

// maxPostBody bounds a whole create request: the signal plus the largest
// permitted attachment set and multipart framing.
var maxPostBody = fmt.Sprintf("%dK", (services.MaxAttachmentsPerPost*services.MaxAttachmentSize)/1024+1024)

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	e.HTTPErrorHandler = httpErrorHandler(log)

	// 1. Recover from panics
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	// 2. Security headers
	e.Use(middleware.SecureHeaders())

	// 3. CORS
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.AppEnv))

	// 4. Rate limiting
	if cfg.RateLimiter != nil {
		e.Use(middleware.RateLimiter(cfg.RateLimiter, cfg.Security))
	}

	// 5. Request logging
	if cfg.Logger != nil {
		e.Use(middleware.RequestLogger(cfg.Logger))
	}

	healthHandler := handlers.NewHealthHandler(cfg.DB)
	postHandler := handlers.NewPostHandler(cfg.Posts, cfg.Uploads, cfg.Security, log)
	attachmentHandler := handlers.NewAttachmentHandler(cfg.Attachments, cfg.Security, log)
	feedHandler := handlers.NewFeedHandler(cfg.Hub, cfg.Upgrader, log)
	adminHandler := handlers.NewAdminHandler(cfg.Sweeper, log)

	// Probes
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	v1 := e.Group("/api/v1")

	v1.POST("/post", postHandler.Create, middleware.BodyLimit(maxPostBody))
	v1.DELETE("/post", postHandler.Delete, middleware.BodyLimit("64K"))
	v1.GET("/posts", postHandler.List)
	v1.GET("/attachments/:id", attachmentHandler.Get)
	v1.GET("/feed", feedHandler.Feed)

	admin := v1.Group("/admin", middleware.APIKeyAuth(cfg.APIKey, cfg.Security, cfg.Logger))
	admin.POST("/sweep", adminHandler.Sweep)

	return e
}
