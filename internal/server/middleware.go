package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-ID"
	headerForwarded = "X-Forwarded-For"
)

// RequestID propagates an inbound request id or mints one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// clientIP prefers the first forwarded hop so the audit trail records
// the caller, not the load balancer.
func clientIP(c *gin.Context) string {
	if fwd := strings.TrimSpace(c.GetHeader(headerForwarded)); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	return c.ClientIP()
}

// actorID reads the authenticated principal injected by the edge
// proxy. Empty means an unauthenticated or internal caller.
func actorID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-Actor-ID"))
}
