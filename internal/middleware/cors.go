package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origins is the set of browser origins allowed to reach the dashboard API and socket.
// An empty set or one containing "*" allows every origin.
type Origins map[string]bool

// ParseOrigins reads a comma-separated origin list such as CORS_ALLOWED_ORIGINS.
func ParseOrigins(s string) Origins {
	m := make(Origins)
	for _, o := range strings.Split(strings.TrimSpace(s), ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" {
			m[o] = true
		}
	}
	return m
}

// Any reports whether every origin is allowed.
func (o Origins) Any() bool { return len(o) == 0 || o["*"] }

// Allows reports whether a request carrying this Origin header may proceed. Requests without an
// Origin (curl, the worker, server-side probes) are always allowed.
func (o Origins) Allows(origin string) bool {
	return origin == "" || o.Any() || o[origin]
}

// CORS sets CORS headers for the dashboard's browser client. Preflights from unknown origins are
// refused; plain requests from them pass through without CORS headers and the browser blocks the read.
func CORS(origins Origins) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowOrigin := ""
		if origins.Any() {
			allowOrigin = "*"
		} else if origin != "" && origins[origin] {
			allowOrigin = origin
			c.Header("Vary", "Origin")
		}
		if allowOrigin != "" {
			c.Header("Access-Control-Allow-Origin", allowOrigin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			// Accept picks JSON vs the reload page when a handler panics.
			c.Header("Access-Control-Allow-Headers", "Content-Type, Accept")
			c.Header("Access-Control-Max-Age", "600")
		}
		if c.Request.Method == http.MethodOptions {
			if allowOrigin == "" {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
