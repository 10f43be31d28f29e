package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS allows the configured origins ("*" for any). Terminals authenticate
// with bearer tokens, so credentials are never allowed.
func CORS(origenes string) gin.HandlerFunc {
	permitidos := map[string]bool{}
	todos := false
	for _, o := range strings.Split(origenes, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			todos = true
		}
		if o != "" {
			permitidos[o] = true
		}
	}
	return func(c *gin.Context) {
		origen := c.GetHeader("Origin")
		switch {
		case todos:
			c.Header("Access-Control-Allow-Origin", "*")
		case origen != "" && permitidos[origen]:
			c.Header("Access-Control-Allow-Origin", origen)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+RequestIDHeader)
		c.Header("Access-Control-Expose-Headers", RequestIDHeader)
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
