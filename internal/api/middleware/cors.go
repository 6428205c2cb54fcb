package middleware

import (
	"slices"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DefaultOrigin is allowed when no origins are configured
const DefaultOrigin = "http://localhost:3000"

// SecureCORS returns CORS middleware for the given origins. The wildcard
// origin is dropped in production.
func SecureCORS(origins []string, env string) echo.MiddlewareFunc {
	if env == "production" {
		origins = slices.DeleteFunc(slices.Clone(origins), func(o string) bool { return o == "*" })
	}
	if len(origins) == 0 {
		origins = []string{DefaultOrigin}
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{echo.GET, echo.POST, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		MaxAge:       300,
	})
}
