package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RequestLogger returns a middleware that logs HTTP requests
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				// Resolve the status before logging it
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			logger.Info("request",
				slog.String("id", res.Header().Get(echo.HeaderXRequestID)),
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.Int("status", res.Status),
				slog.Int64("bytes_in", req.ContentLength),
				slog.Int64("bytes_out", res.Size),
				slog.Duration("latency", time.Since(start)),
				slog.String("remote_ip", c.RealIP()),
			)

			return nil
		}
	}
}

// RequestID tags every request with an X-Request-ID
func RequestID() echo.MiddlewareFunc {
	return middleware.RequestID()
}

// Recover returns a middleware that recovers from panics
func Recover() echo.MiddlewareFunc {
	return middleware.Recover()
}

// BodyLimit caps request bodies, e.g. "80M"
func BodyLimit(limit string) echo.MiddlewareFunc {
	return middleware.BodyLimit(limit)
}
