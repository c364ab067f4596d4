package middleware

import (
	"context"
	"strings"

	"byteshop/internal/apperrors"
	"byteshop/internal/auth"
	"byteshop/internal/models"

	"github.com/gin-gonic/gin"
)

const (
	identityKey = "identity"
	userIDKey   = "user_id"
	tokenKey    = "access_token"
)

// IdentityResolver turns a bearer token into the caller's identity.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, rawToken string) (*models.Identity, error)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func authenticate(c *gin.Context, r IdentityResolver, raw string) bool {
	id, err := r.ResolveIdentity(c.Request.Context(), raw)
	if err != nil {
		_ = c.Error(err)
		c.Abort()
		return false
	}
	c.Set(identityKey, *id)
	c.Set(userIDKey, id.UserID)
	c.Set(tokenKey, raw)
	c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), *id))
	return true
}

// Authenticate requires a valid bearer token.
func Authenticate(r IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			_ = c.Error(apperrors.Unauthorized("Missing or invalid authorization header"))
			c.Abort()
			return
		}
		if authenticate(c, r, raw) {
			c.Next()
		}
	}
}

// AuthenticateQuery also accepts the token in the "token" query parameter,
// for websocket clients that cannot set headers.
func AuthenticateQuery(r IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			raw = c.Query("token")
		}
		if raw == "" {
			_ = c.Error(apperrors.Unauthorized("Missing or invalid authorization header"))
			c.Abort()
			return
		}
		if authenticate(c, r, raw) {
			c.Next()
		}
	}
}

// OptionalAuth resolves the caller when a token is present and ignores bad ones.
func OptionalAuth(r IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearerToken(c); ok {
			if id, err := r.ResolveIdentity(c.Request.Context(), raw); err == nil {
				c.Set(identityKey, *id)
				c.Set(userIDKey, id.UserID)
				c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), *id))
			}
		}
		c.Next()
	}
}

// Authorize allows the request through only for the given roles.
func Authorize(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := CurrentIdentity(c)
		if !ok {
			_ = c.Error(apperrors.Unauthorized("Authentication required"))
			c.Abort()
			return
		}
		for _, role := range roles {
			if id.Role == role {
				c.Next()
				return
			}
		}
		_ = c.Error(apperrors.Forbidden("Insufficient permissions"))
		c.Abort()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return Authorize(models.RoleAdmin)
}

func CurrentIdentity(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	return id, ok
}

// AccessToken returns the raw bearer token of an authenticated request.
func AccessToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}
