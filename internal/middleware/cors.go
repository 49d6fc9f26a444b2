package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS lets browsers on allowedOrigins ("*" or a comma-separated list) read
// the API. Preflights only need to clear the JSON POST routes, which carry a
// bearer token.
func CORS(allowedOrigins string) gin.HandlerFunc {
	anyOrigin, origins := parseOrigins(allowedOrigins)
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := origin != "" && (anyOrigin || origins[origin])
		if allowed {
			if anyOrigin {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
		}
		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		if allowed {
			c.Header("Access-Control-Allow-Methods", http.MethodPost)
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}

// parseOrigins treats an empty list like "*".
func parseOrigins(s string) (bool, map[string]bool) {
	origins := make(map[string]bool)
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = true
		}
	}
	return len(origins) == 0 || origins["*"], origins
}
