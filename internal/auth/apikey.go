package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyMiddleware guards the gallery endpoints with a single shared key
// carried in the X-API-Key header, meant for photographer tooling and the
// event kiosk frontend. An empty configured key disables the check so local
// development needs no credentials.
func APIKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}

		candidate := c.GetHeader("X-API-Key")
		if candidate == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "API key required",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(candidate), []byte(key)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "API key rejected",
			})
			return
		}

		c.Next()
	}
}
