package services

import (
	"context"
	"encoding/json"
	"time"

	"byteshop/internal/auth"
	"byteshop/internal/models"
)

// auditEntry prefills an entry with the caller and client found on ctx.
func auditEntry(ctx context.Context, action, resource, resourceID string) models.AuditLog {
	entry := models.AuditLog{
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Success:    true,
		Timestamp:  time.Now().UTC(),
	}
	if id, ok := auth.IdentityFrom(ctx); ok {
		entry.UserID = id.UserID
		entry.UserEmail = id.Email
	}
	client := auth.ClientFrom(ctx)
	entry.IPAddress = client.IP
	entry.UserAgent = client.UserAgent
	return entry
}

func toJSON(v interface{}) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// detached keeps ctx values but drops its cancellation, for work that
// outlives the request.
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}
