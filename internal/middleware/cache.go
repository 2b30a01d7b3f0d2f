package middleware

import (
	"github.com/gin-gonic/gin"
)

// NoStore forbids caching of responses. Session state and remaining time are
// only valid at the instant they are served.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
