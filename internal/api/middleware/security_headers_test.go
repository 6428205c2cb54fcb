package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestSecureHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecureHeaders())
	e.GET("/test", okHandler)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	expected := map[string]string{
		"X-Frame-Options":              "DENY",
		"X-Content-Type-Options":       "nosniff",
		"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'; sandbox",
		"Cross-Origin-Resource-Policy": "cross-origin",
		"Referrer-Policy":              "no-referrer",
	}
	for header, value := range expected {
		assert.Equal(t, value, rec.Header().Get(header), header)
	}
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"), "HSTS only over https")
}

func TestSecureHeaders_HSTSOverHTTPS(t *testing.T) {
	e := echo.New()
	e.Use(SecureHeaders())
	e.GET("/test", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(echo.HeaderXForwardedProto, "https")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, "max-age=31536000; includeSubDomains", rec.Header().Get("Strict-Transport-Security"))
}
