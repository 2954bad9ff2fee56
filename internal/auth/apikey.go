package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// The dashboard sends its key in this header on every /v1 call.
const headerName = "X-API-Key"

// APIKeyMiddleware guards the admin API with the static key configured under
// server.api_key. An empty key disables the check entirely, which is how
// local development runs; the system endpoints (healthz, readyz, metrics)
// are mounted outside this middleware and never require a key.
func APIKeyMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		provided := c.GetHeader(headerName)
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "api key required",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "api key rejected",
			})
			return
		}

		c.Next()
	}
}
