package websocket

import (
	"net"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"

	"github.com/welldanyogia/ephemera-backend/internal/logger"
)

// DefaultOrigin is allowed when no origins are configured
const DefaultOrigin = "http://localhost:3000"

// NewSecureUpgrader creates a WebSocket upgrader that only accepts the
// given origins. security may be nil.
func NewSecureUpgrader(allowedOrigins []string, security *logger.SecurityLogger) websocket.Upgrader {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{DefaultOrigin}
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Allow same-origin requests (empty Origin)
			if origin == "" {
				return true
			}

			if slices.Contains(allowedOrigins, origin) {
				return true
			}

			if security != nil {
				security.InvalidOrigin(remoteIP(r), origin)
			}
			return false
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
