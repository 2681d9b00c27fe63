package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "focusflow/backend/internal/errors"
)

const (
	corsAllowMethods = "GET,POST,PUT,OPTIONS"
	// Last-Event-ID and Cache-Control are sent by EventSource reconnects.
	corsAllowHeaders = "Authorization,Content-Type,Last-Event-ID,Cache-Control"
	corsMaxAge       = "86400"
)

// CORS allows the dashboard origins listed in allowedOrigins. "*" allows any
// origin. Preflight requests from other origins are rejected with 403.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAny := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "" {
			continue
		}
		if origin == "*" {
			allowAny = true
		}
		allowed[origin] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		preflight := c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != ""

		if origin == "" {
			if preflight {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
			return
		}

		_, ok := allowed[origin]
		switch {
		case allowAny:
			c.Header("Access-Control-Allow-Origin", "*")
		case ok:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		default:
			if preflight {
				writeError(c, apperrors.New(http.StatusForbidden, "origin_not_allowed", "origin not allowed"))
				return
			}
			c.Next()
			return
		}

		if preflight {
			c.Header("Access-Control-Allow-Methods", corsAllowMethods)
			c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
			c.Header("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
