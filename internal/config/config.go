package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/welldanyogia/ephemera-backend/internal/validator"
)

// Defaults
const (
	DefaultAPIPort               = 8080
	DefaultDataDir               = "./data"
	DefaultAllowedTimeSkewMillis = 5 * 60 * 1000
	DefaultOrphanSweepInterval   = time.Hour
	DefaultOrphanGracePeriod     = 10 * time.Minute
	DefaultDBMaxConnectAttempts  = 10
)

// Config holds all configuration for the application
type Config struct {
	// Identity of this deployment as it appears in signed headers
	Host string

	// Database
	DatabaseURL          string
	DBMaxConnectAttempts int

	// Server ports
	APIPort int

	// Storage
	DataDir string

	// Post validation
	AllowedTimeSkewMillis int64

	// Background jobs
	OrphanSweepInterval time.Duration
	OrphanGracePeriod   time.Duration

	// Logging
	LogLevel string

	// Security
	APIKey         string
	AllowedOrigins string
	AppEnv         string

	// Rate Limiting
	RateLimitRequests float64
	RateLimitBurst    int
}

// AttachmentDir is where content-addressed attachment files live.
func (c *Config) AttachmentDir() string {
	return filepath.Join(c.DataDir, "attachments")
}

// UploadDir is where multipart uploads are spooled before validation.
func (c *Config) UploadDir() string {
	return filepath.Join(c.DataDir, "uploads")
}

// Origins splits AllowedOrigins into trimmed, non-empty entries.
func (c *Config) Origins() []string {
	return ParseOrigins(c.AllowedOrigins)
}

// ParseOrigins splits a comma-separated origin list
func ParseOrigins(list string) []string {
	return lo.Compact(lo.Map(strings.Split(list, ","), func(o string, _ int) string {
		return strings.TrimSpace(o)
	}))
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Required: EPHEMERA_HOST
	cfg.Host = os.Getenv("EPHEMERA_HOST")
	if cfg.Host == "" {
		return nil, fmt.Errorf("EPHEMERA_HOST is required but not set")
	}

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	var err error
	if cfg.APIPort, err = intEnv("API_PORT", DefaultAPIPort); err != nil {
		return nil, err
	}
	if cfg.DBMaxConnectAttempts, err = intEnv("DB_MAX_CONNECT_ATTEMPTS", DefaultDBMaxConnectAttempts); err != nil {
		return nil, err
	}

	// DATA_DIR (default: ./data); ATTACHMENT_STORAGE_PATH is the older name
	cfg.DataDir = os.Getenv("DATA_DIR")
	if cfg.DataDir == "" {
		cfg.DataDir = os.Getenv("ATTACHMENT_STORAGE_PATH")
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}

	// ALLOWED_TIME_SKEW_MILLIS (default: 5 minutes)
	cfg.AllowedTimeSkewMillis = DefaultAllowedTimeSkewMillis
	if v := os.Getenv("ALLOWED_TIME_SKEW_MILLIS"); v != "" {
		skew, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ALLOWED_TIME_SKEW_MILLIS must be a valid integer: %w", err)
		}
		cfg.AllowedTimeSkewMillis = skew
	}

	// ORPHAN_SWEEP_INTERVAL (default: 1h)
	cfg.OrphanSweepInterval = DefaultOrphanSweepInterval
	if v := os.Getenv("ORPHAN_SWEEP_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ORPHAN_SWEEP_INTERVAL must be a valid duration: %w", err)
		}
		cfg.OrphanSweepInterval = d
	}

	// ORPHAN_GRACE_PERIOD (default: 10m, 0 reclaims at once)
	cfg.OrphanGracePeriod = DefaultOrphanGracePeriod
	if v := os.Getenv("ORPHAN_GRACE_PERIOD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("ORPHAN_GRACE_PERIOD must be a valid duration: %w", err)
		}
		cfg.OrphanGracePeriod = d
	}

	// LOG_LEVEL (default: info)
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// Security configuration
	cfg.APIKey = os.Getenv("API_KEY")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.AppEnv = os.Getenv("APP_ENV")
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}

	// Rate limiting configuration
	if rps := os.Getenv("RATE_LIMIT_REQUESTS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimitRequests = v
		}
	} else {
		cfg.RateLimitRequests = 10.0
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimitBurst = v
		}
	} else {
		cfg.RateLimitBurst = 20
	}

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", name, err)
	}
	return n, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validator.ValidateHost(c.Host); err != nil {
		return fmt.Errorf("EPHEMERA_HOST %q is not a valid host[:port]: %w", c.Host, err)
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DataDir cannot be empty")
	}
	if c.AllowedTimeSkewMillis < 0 {
		return fmt.Errorf("AllowedTimeSkewMillis cannot be negative")
	}
	if c.OrphanSweepInterval <= 0 {
		return fmt.Errorf("OrphanSweepInterval must be positive")
	}
	if c.OrphanGracePeriod < 0 {
		return fmt.Errorf("OrphanGracePeriod cannot be negative")
	}
	if c.DBMaxConnectAttempts < 1 {
		return fmt.Errorf("DBMaxConnectAttempts must be at least 1")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required in production")
	}

	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	return nil
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.String("host", c.Host),
		slog.Int("api_port", c.APIPort),
		slog.String("data_dir", c.DataDir),
		slog.Int64("allowed_time_skew_ms", c.AllowedTimeSkewMillis),
		slog.Duration("orphan_sweep_interval", c.OrphanSweepInterval),
		slog.Duration("orphan_grace_period", c.OrphanGracePeriod),
		slog.Int("db_max_connect_attempts", c.DBMaxConnectAttempts),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
	)
}
