package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/welldanyogia/ephemera-backend/internal/logger"
)

// limiterIdleTTL is how long an unused per-IP limiter is kept
const limiterIdleTTL = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter manages rate limiters per IP address
type IPRateLimiter struct {
	visitors map[string]*visitor
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

// NewIPRateLimiter creates a new IP-based rate limiter
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
		now:      time.Now,
	}
}

// GetLimiter returns the rate limiter for the given IP
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	v, exists := i.visitors[ip]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(i.rate, i.burst)}
		i.visitors[ip] = v
	}
	v.lastSeen = i.now()

	return v.limiter
}

// CleanupOldEntries forgets IPs not seen for maxIdle
func (i *IPRateLimiter) CleanupOldEntries(maxIdle time.Duration) {
	i.mu.Lock()
	defer i.mu.Unlock()

	cutoff := i.now().Add(-maxIdle)
	for ip, v := range i.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(i.visitors, ip)
		}
	}
}

// Len returns the number of tracked IPs
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.visitors)
}

// RunCleanup evicts idle entries every interval until ctx is done
func (i *IPRateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.CleanupOldEntries(limiterIdleTTL)
		}
	}
}

// RateLimiter returns rate limiting middleware backed by limiter
func RateLimiter(limiter *IPRateLimiter, security *logger.SecurityLogger) echo.MiddlewareFunc {
	retryAfter := "1"
	if limiter.rate > 0 && limiter.rate < 1 {
		retryAfter = strconv.Itoa(int(1/float64(limiter.rate)) + 1)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			if !limiter.GetLimiter(ip).Allow() {
				if security != nil {
					security.RateLimitExceeded(ip, c.Path())
				}

				c.Response().Header().Set("Retry-After", retryAfter)
				return echo.NewHTTPError(http.StatusTooManyRequests, map[string]string{
					"error": "rate limit exceeded",
					"code":  "RATE_LIMITED",
				})
			}

			return next(c)
		}
	}
}
