package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gorm.io/gorm/schema"

	"github.com/welldanyogia/ephemera-backend/internal/api"
	"github.com/welldanyogia/ephemera-backend/internal/api/middleware"
	"github.com/welldanyogia/ephemera-backend/internal/config"
	"github.com/welldanyogia/ephemera-backend/internal/database"
	"github.com/welldanyogia/ephemera-backend/internal/logger"
	"github.com/welldanyogia/ephemera-backend/internal/metrics"
	"github.com/welldanyogia/ephemera-backend/internal/models"
	"github.com/welldanyogia/ephemera-backend/internal/repository"
	"github.com/welldanyogia/ephemera-backend/internal/services"
	"github.com/welldanyogia/ephemera-backend/internal/storage"
	"github.com/welldanyogia/ephemera-backend/internal/websocket"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)
	security := logger.NewSecurityLoggerWithHandler(log.Handler())

	slog.Info("Starting Ephemera Backend Server...")
	cfg.LogConfig(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.ConnectWithRetry(ctx, cfg.DatabaseURL, cfg.DBMaxConnectAttempts, log)
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}

	// Storage
	attachmentStore, err := storage.NewLocalStorage(cfg.AttachmentDir())
	if err != nil {
		return fmt.Errorf("attachment storage: %w", err)
	}
	uploads, err := storage.NewLocalStorage(cfg.UploadDir())
	if err != nil {
		return fmt.Errorf("upload storage: %w", err)
	}

	// Services
	hub := websocket.NewHub(log)
	attachments := services.NewAttachmentService(attachmentStore, repository.NewAttachmentRepository(db), services.AttachmentServiceConfig{
		OrphanGracePeriod: cfg.OrphanGracePeriod,
	}, log)
	posts := services.NewPostService(
		services.PostServiceConfig{
			Host:            cfg.Host,
			AllowedTimeSkew: time.Duration(cfg.AllowedTimeSkewMillis) * time.Millisecond,
		},
		repository.NewPostRepository(db),
		repository.NewTransactor(db),
		attachments,
		hub,
		log,
	)
	sweeper := services.NewOrphanSweeper(attachments, services.OrphanSweeperConfig{
		Interval: cfg.OrphanSweepInterval,
	}, log)

	limiter := middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitRequests), cfg.RateLimitBurst)

	// Background workers
	go hub.Run(ctx)
	go limiter.RunCleanup(ctx, 10*time.Minute)
	go (&metrics.Collector{
		DB:     db,
		Tables: []schema.Tabler{models.Post{}, models.Attachment{}, models.PostAttachment{}},
		Logger: log,
	}).Run(ctx)
	sweeper.Start()
	defer sweeper.Stop()

	origins := cfg.Origins()
	e := api.NewRouter(&api.RouterConfig{
		DB:             db,
		Posts:          posts,
		Attachments:    attachments,
		Sweeper:        sweeper,
		Uploads:        uploads,
		Hub:            hub,
		Upgrader:       websocket.NewSecureUpgrader(origins, security),
		Logger:         log,
		Security:       security,
		APIKey:         cfg.APIKey,
		AllowedOrigins: origins,
		AppEnv:         cfg.AppEnv,
		RateLimiter:    limiter,
	})

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		slog.Info("HTTP server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", slog.Any("error", err))
	}

	slog.Info("Server stopped")
	return nil
}
