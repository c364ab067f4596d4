package middleware

import (
	"byteshop/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequestMeta stores the client address and user agent on the request
// context for audit entries.
func RequestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithClient(c.Request.Context(), auth.Client{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("X-XSS-Protection", "0")
		c.Next()
	}
}
