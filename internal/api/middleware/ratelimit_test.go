package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/welldanyogia/ephemera-backend/internal/logger"
)

func rateLimitedEcho(rps float64, burst int, security *logger.SecurityLogger) *echo.Echo {
	e := echo.New()
	e.Use(RateLimiter(NewIPRateLimiter(rate.Limit(rps), burst), security))
	e.GET("/test", okHandler)
	return e
}

func hit(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_BurstThenLimited(t *testing.T) {
	e := rateLimitedEcho(1, 3, nil)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(e, "192.0.2.1").Code, "request %d", i)
	}

	rec := hit(e, "192.0.2.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRateLimiter_RetryAfterForSlowRates(t *testing.T) {
	e := rateLimitedEcho(0.1, 1, nil)

	hit(e, "192.0.2.1")
	rec := hit(e, "192.0.2.1")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "11", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_PerIPIsolation(t *testing.T) {
	e := rateLimitedEcho(1, 1, nil)

	assert.Equal(t, http.StatusOK, hit(e, "192.0.2.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(e, "192.0.2.1").Code)
	assert.Equal(t, http.StatusOK, hit(e, "192.0.2.2").Code)
}

func TestRateLimiter_LogsSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	e := rateLimitedEcho(1, 1, logger.NewSecurityLoggerWithHandler(slog.NewJSONHandler(&buf, nil)))

	hit(e, "192.0.2.9")
	hit(e, "192.0.2.9")

	assert.Contains(t, buf.String(), "rate_limit_exceeded")
	assert.Contains(t, buf.String(), "192.0.2.9")
}

func TestIPRateLimiter_GetLimiterReusesPerIP(t *testing.T) {
	limiter := NewIPRateLimiter(10, 20)

	l1 := limiter.GetLimiter("192.0.2.1")
	l2 := limiter.GetLimiter("192.0.2.1")
	l3 := limiter.GetLimiter("192.0.2.2")

	assert.Same(t, l1, l2)
	assert.NotSame(t, l1, l3)
	assert.Equal(t, 2, limiter.Len())
}

func TestIPRateLimiter_CleanupOldEntries(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewIPRateLimiter(10, 20)
	limiter.now = func() time.Time { return now }

	limiter.GetLimiter("192.0.2.1")
	now = now.Add(5 * time.Minute)
	limiter.GetLimiter("192.0.2.2")
	now = now.Add(6 * time.Minute)

	limiter.CleanupOldEntries(limiterIdleTTL)

	assert.Equal(t, 1, limiter.Len())
	limiter.mu.Lock()
	_, kept := limiter.visitors["192.0.2.2"]
	limiter.mu.Unlock()
	assert.True(t, kept)
}
