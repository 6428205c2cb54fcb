package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/welldanyogia/ephemera-backend/internal/logger"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "success")
}

func runAuth(t *testing.T, apiKey, header string, security *logger.SecurityLogger) (*httptest.ResponseRecorder, error) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/sweep", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/admin/sweep")

	return rec, APIKeyAuth(apiKey, security, nil)(okHandler)(c)
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		header  string
		wantErr bool
	}{
		{"missing header", "test-api-key", "", true},
		{"invalid key", "test-api-key", "Bearer wrong-key", true},
		{"prefix of key", "test-api-key", "Bearer test-api", true},
		{"valid bearer", "test-api-key", "Bearer test-api-key", false},
		{"valid bare token", "test-api-key", "test-api-key", false},
		{"no key configured", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := runAuth(t, tt.apiKey, tt.header, nil)

			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				return
			}
			var httpErr *echo.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		})
	}
}

func TestAPIKeyAuth_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	security := logger.NewSecurityLoggerWithHandler(slog.NewJSONHandler(&buf, nil))

	_, err := runAuth(t, "test-api-key", "Bearer nope", security)

	require.Error(t, err)
	assert.Contains(t, buf.String(), "auth_failure")
	assert.Contains(t, buf.String(), "/api/v1/admin/sweep")
	assert.NotContains(t, buf.String(), "test-api-key")
}

func TestAPIKeyAuth_WarnsWhenUnset(t *testing.T) {
	var buf bytes.Buffer

	APIKeyAuth("", nil, slog.New(slog.NewTextHandler(&buf, nil)))

	assert.Contains(t, buf.String(), "UNSECURED")
}
