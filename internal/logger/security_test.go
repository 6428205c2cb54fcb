package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferedLogger() (*SecurityLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewSecurityLoggerWithHandler(slog.NewJSONHandler(&buf, nil)), &buf
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewSecurityLogger(t *testing.T) {
	logger := NewSecurityLogger()
	assert.NotNil(t, logger)
	assert.NotNil(t, logger.GetLogger())
}

func TestSecurityLogger_AuthFailure_JSONFormat(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.AuthFailure("192.168.1.1", "/api/v1/admin/sweep", "invalid_key")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "auth_failure", entry["event_type"])
	assert.Equal(t, "192.168.1.1", entry["ip"])
	assert.Equal(t, "/api/v1/admin/sweep", entry["path"])
	assert.Equal(t, "invalid_key", entry["reason"])
	assert.Contains(t, entry, "timestamp")
}

func TestSecurityLogger_RateLimitExceeded_JSONFormat(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.RateLimitExceeded("192.168.1.1", "/api/v1/post")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "rate_limit", entry["event_type"])
	assert.Equal(t, "/api/v1/post", entry["path"])
}

func TestSecurityLogger_SignalRejected(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.SignalRejected("10.0.0.1", "/api/v1/post", "HOST_MISMATCH", "6y")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "signal_rejected", entry["event_type"])
	assert.Equal(t, "HOST_MISMATCH", entry["code"])
	assert.Equal(t, "6y", entry["claimed_author"])
}

func TestSecurityLogger_PathTraversalAttempt(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.PathTraversalAttempt("192.168.1.1", "/api/v1/attachments", "../../../etc/passwd")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "path_traversal", entry["event_type"])
	assert.Equal(t, "../../../etc/passwd", entry["attempted_path"])
}

func TestSecurityLogger_InvalidOrigin(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.InvalidOrigin("192.168.1.1", "http://malicious.com")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "invalid_origin", entry["event_type"])
	assert.Equal(t, "http://malicious.com", entry["origin"])
}

func TestSecurityLogger_BlockedFileUpload(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.BlockedFileUpload("192.168.1.1", "payload.bin", "ATTACHMENT_TYPE_NOT_ALLOWED")

	entry := decodeEntry(t, buf)
	assert.Equal(t, "blocked_upload", entry["event_type"])
	assert.Equal(t, "payload.bin", entry["filename"])
	assert.Equal(t, "ATTACHMENT_TYPE_NOT_ALLOWED", entry["reason"])
}

func TestSecurityLogger_SensitiveDataNotLogged(t *testing.T) {
	logger, buf := newBufferedLogger()

	logger.SecurityEvent("test_event", "192.168.1.1", map[string]string{
		"author":    "6y",
		"signature": "deadbeef",
		"API_KEY":   "sk-12345",
		"content":   "hello world",
		"path":      "/api/v1/post",
	})

	output := buf.String()
	assert.NotContains(t, output, "deadbeef")
	assert.NotContains(t, output, "sk-12345")
	assert.NotContains(t, output, "hello world")
	assert.Contains(t, output, "6y")
	assert.Contains(t, output, "/api/v1/post")
}

func TestIsSensitiveKey(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"api_key", true},
		{"Authorization", true},
		{"private_key", true},
		{"signature", true},
		{"token", true},
		{"content", true},
		{"author", false},
		{"path", false},
		{"ip", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.expected, isSensitiveKey(tt.key))
		})
	}
}
