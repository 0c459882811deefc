package middleware

import (
	"github.com/gin-gonic/gin"
)

// clientIP keys rate limits and request logs. Forwarding headers only count
// when the socket peer is one of the engine's trusted proxies, so a caller
// cannot pick its own key by sending X-Forwarded-For.
func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return c.Request.RemoteAddr
}
