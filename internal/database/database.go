package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/welldanyogia/ephemera-backend/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connection pool configuration
const (
	DefaultMaxIdleConns    = 10
	DefaultMaxOpenConns    = 100
	DefaultConnMaxLifetime = time.Hour
	DefaultConnMaxIdleTime = 10 * time.Minute
)

// Connection retry configuration
const (
	RetryInitialInterval = time.Second
	RetryMaxInterval     = 30 * time.Second
)

// SQLitePrefix selects the embedded SQLite driver in DATABASE_URL.
const SQLitePrefix = "sqlite://"

// ErrSSLDisabled rejects a production postgres URL with sslmode=disable.
var ErrSSLDisabled = errors.New("SSL mode cannot be disabled in production")

// Connect opens the database named by databaseURL. A sqlite:// URL opens a
// SQLite file; anything else is handed to the PostgreSQL driver.
// Configuration errors are wrapped with backoff.Permanent so
// ConnectWithRetry gives up on them at once.
func Connect(databaseURL string) (*gorm.DB, error) {
	// Validate SSL mode in production
	env := os.Getenv("APP_ENV")
	if env == "production" {
		if err := validateSSLMode(databaseURL); err != nil {
			return nil, backoff.Permanent(err)
		}
	}

	db, err := gorm.Open(dialector(databaseURL), &gorm.Config{
		Logger:         logger.Default.LogMode(gormLogLevel(env)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := configureConnectionPool(db, isSQLite(databaseURL)); err != nil {
		return nil, err
	}

	slog.Info("Connected to database successfully", slog.String("driver", db.Dialector.Name()))
	return db, nil
}

// ConnectWithRetry calls Connect until it succeeds, ctx is cancelled,
// maxAttempts attempts have failed, or Connect reports a permanent error. Waits grow exponentially from one
// second up to thirty.
func ConnectWithRetry(ctx context.Context, databaseURL string, maxAttempts int, log *slog.Logger) (*gorm.DB, error) {
	return connectWithRetry(ctx, func() (*gorm.DB, error) {
		return Connect(databaseURL)
	}, maxAttempts, RetryInitialInterval, log)
}

func connectWithRetry(ctx context.Context, connect func() (*gorm.DB, error), maxAttempts int, initial time.Duration, log *slog.Logger) (*gorm.DB, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.MaxInterval = RetryMaxInterval
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(maxAttempts-1)), ctx)

	attempt := 0
	var db *gorm.DB
	err := backoff.RetryNotify(func() error {
		attempt++
		conn, err := connect()
		if err != nil {
			return err
		}
		db = conn
		return nil
	}, policy, func(err error, wait time.Duration) {
		log.Warn("database connection failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempt, err)
	}
	return db, nil
}

func isSQLite(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, SQLitePrefix)
}

func dialector(databaseURL string) gorm.Dialector {
	if isSQLite(databaseURL) {
		dsn := strings.TrimPrefix(databaseURL, SQLitePrefix)
		if !strings.Contains(dsn, "?") {
			dsn += "?_busy_timeout=5000&_journal_mode=WAL"
		}
		return sqlite.Open(dsn)
	}
	return postgres.Open(databaseURL)
}

func gormLogLevel(env string) logger.LogLevel {
	if env == "production" {
		return logger.Warn
	}
	return logger.Info
}

// validateSSLMode ensures SSL is enabled in production
func validateSSLMode(databaseURL string) error {
	if isSQLite(databaseURL) {
		return nil
	}

	// Check if sslmode is explicitly disabled
	if strings.Contains(databaseURL, "sslmode=disable") {
		return ErrSSLDisabled
	}

	// If no sslmode specified, it's okay (defaults to prefer/require depending on server)
	return nil
}

// configureConnectionPool sets up connection pool limits. SQLite allows a
// single writer, so its pool is one connection wide.
func configureConnectionPool(db *gorm.DB, singleConn bool) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if singleConn {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		return nil
	}

	sqlDB.SetMaxIdleConns(DefaultMaxIdleConns)
	sqlDB.SetMaxOpenConns(DefaultMaxOpenConns)
	sqlDB.SetConnMaxLifetime(DefaultConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(DefaultConnMaxIdleTime)

	return nil
}

// Migrate runs auto-migration for all models
func Migrate(db *gorm.DB) error {
	slog.Info("Running database migrations...")

	err := db.AutoMigrate(
		&models.Post{},
		&models.Attachment{},
		&models.PostAttachment{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("Database migrations completed successfully")
	return nil
}

// Ping checks that the database answers within ctx
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
