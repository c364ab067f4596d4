package middleware

import (
	"context"
	"net/http"
	"time"

	"byteshop/internal/apperrors"
	"byteshop/internal/auth"
	"byteshop/internal/models"

	"github.com/gin-gonic/gin"
)

type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog)
}

// AuditFailures records rejected attempts at a critical action. Successful
// calls are audited by the services themselves.
func AuditFailures(audit AuditLogger, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if len(c.Errors) > 0 {
			status = apperrors.StatusOf(c.Errors.Last().Err)
		}
		if status < http.StatusBadRequest {
			return
		}

		client := auth.ClientFrom(c.Request.Context())
		entry := models.AuditLog{
			Action:     action,
			Resource:   resource,
			ResourceID: c.Param("id"),
			Success:    false,
			IPAddress:  client.IP,
			UserAgent:  client.UserAgent,
			Timestamp:  time.Now().UTC(),
		}
		if id, ok := CurrentIdentity(c); ok {
			entry.UserID = id.UserID
			entry.UserEmail = id.Email
		}
		if len(c.Errors) > 0 {
			entry.ErrorMsg = apperrors.As(c.Errors.Last().Err).Message
		} else {
			entry.ErrorMsg = http.StatusText(status)
		}
		audit.Log(c.Request.Context(), entry)
	}
}
