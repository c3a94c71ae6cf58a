package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServiceKey guards the stage endpoints. An empty required key disables the
// check (local development).
func ServiceKey(required string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if required == "" {
			c.Next()
			return
		}
		key := c.GetHeader("X-Service-Key")
		if key != required {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Invalid service key",
				},
			})
			return
		}
		c.Next()
	}
}
