// Package logger builds the process loggers and records security events
// for the Ephemera backend.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values fall
// back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a JSON logger writing to w at the given LOG_LEVEL.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// SecurityLogger records rejected requests and abuse signals.
// It never logs signal bodies, signatures, or credentials.
type SecurityLogger struct {
	logger *slog.Logger
}

// NewSecurityLogger creates a new SecurityLogger with JSON output.
func NewSecurityLogger() *SecurityLogger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &SecurityLogger{
		logger: slog.New(handler),
	}
}

// NewSecurityLoggerWithHandler creates a SecurityLogger with a custom handler.
func NewSecurityLoggerWithHandler(handler slog.Handler) *SecurityLogger {
	return &SecurityLogger{
		logger: slog.New(handler),
	}
}

// AuthFailure logs a failed admin API key check.
func (s *SecurityLogger) AuthFailure(ip, path, reason string) {
	s.logger.Warn("authentication_failure",
		slog.String("event_type", "auth_failure"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// RateLimitExceeded logs when a client exceeds rate limits.
func (s *SecurityLogger) RateLimitExceeded(ip, path string) {
	s.logger.Warn("rate_limit_exceeded",
		slog.String("event_type", "rate_limit"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// SignalRejected logs a signal that failed signature, host, or timestamp
// checks. author is the claimed identity and may be forged.
func (s *SecurityLogger) SignalRejected(ip, path, code, author string) {
	s.logger.Warn("signal_rejected",
		slog.String("event_type", "signal_rejected"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.String("code", code),
		slog.String("claimed_author", author),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// PathTraversalAttempt logs a request for a malformed attachment id.
func (s *SecurityLogger) PathTraversalAttempt(ip, path, attemptedPath string) {
	s.logger.Warn("path_traversal_attempt",
		slog.String("event_type", "path_traversal"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.String("attempted_path", attemptedPath),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// InvalidOrigin logs a rejected WebSocket connection due to invalid origin.
func (s *SecurityLogger) InvalidOrigin(ip, origin string) {
	s.logger.Warn("invalid_origin",
		slog.String("event_type", "invalid_origin"),
		slog.String("ip", ip),
		slog.String("origin", origin),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// BlockedFileUpload logs an attachment refused for size, type, or shape.
func (s *SecurityLogger) BlockedFileUpload(ip, filename, reason string) {
	s.logger.Warn("blocked_file_upload",
		slog.String("event_type", "blocked_upload"),
		slog.String("ip", ip),
		slog.String("filename", filename),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// SecurityEvent logs a generic security event.
func (s *SecurityLogger) SecurityEvent(eventType, ip string, details map[string]string) {
	attrs := []any{
		slog.String("event_type", eventType),
		slog.String("ip", ip),
		slog.Time("timestamp", time.Now().UTC()),
	}

	for k, v := range details {
		if isSensitiveKey(k) {
			continue
		}
		attrs = append(attrs, slog.String(k, v))
	}

	s.logger.Warn("security_event", attrs...)
}

// GetLogger returns the underlying slog.Logger for use with middleware.
func (s *SecurityLogger) GetLogger() *slog.Logger {
	return s.logger
}

var sensitiveKeys = map[string]bool{
	"api_key":       true,
	"apikey":        true,
	"authorization": true,
	"private_key":   true,
	"secret":        true,
	"signature":     true,
	"token":         true,
	"body":          true,
	"content":       true,
}

// isSensitiveKey checks if a key might contain sensitive data.
func isSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}
