// Package auth guards the /v1 API with a shared key.
package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	headerName = "X-API-Key"
	// Browsers cannot set headers on a WebSocket handshake, so the status
	// stream may pass the key as a query parameter instead.
	queryName = "api_key"
)

// APIKeyMiddleware validates the API key from the X-API-Key header or the
// api_key query parameter. If apiKey is empty, authentication is disabled.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := Key(c.Request)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing API key",
			})
			return
		}

		if !Valid(provided, apiKey) {
			slog.Warn("rejected API key", "path", c.Request.URL.Path, "ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "invalid API key",
			})
			return
		}

		c.Next()
	}
}

// Key extracts the caller's key, preferring the header.
func Key(r *http.Request) string {
	if k := r.Header.Get(headerName); k != "" {
		return k
	}
	return r.URL.Query().Get(queryName)
}

// Valid compares in constant time.
func Valid(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
