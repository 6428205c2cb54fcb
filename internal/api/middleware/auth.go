// Package middleware provides HTTP middleware for the Ephemera API.
package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/ephemera-backend/internal/logger"
)

// APIKeyAuth guards operator routes with a bearer API key. Comparison is
// constant-time. An empty apiKey leaves the routes open, which is only
// accepted outside production.
func APIKeyAuth(apiKey string, security *logger.SecurityLogger, log *slog.Logger) echo.MiddlewareFunc {
	if apiKey == "" && log != nil {
		log.Warn("API_KEY not set - admin routes are UNSECURED")
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if apiKey == "" {
				return next(c)
			}

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return reject(c, security, "missing authorization header")
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
				return reject(c, security, "invalid API key")
			}

			return next(c)
		}
	}
}

func reject(c echo.Context, security *logger.SecurityLogger, reason string) error {
	if security != nil {
		security.AuthFailure(c.RealIP(), c.Path(), reason)
	}
	return echo.NewHTTPError(http.StatusUnauthorized, map[string]string{
		"error": reason,
		"code":  "UNAUTHORIZED",
	})
}
