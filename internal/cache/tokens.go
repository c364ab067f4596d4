package cache

import (
	"context"
	"time"

	"byteshop/internal/models"
)

// Revoke blacklists a token id until the token would have expired anyway.
func (r *Redis) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, blacklistKey(tokenID), "revoked", ttl).Err()
}

func (r *Redis) IsRevoked(ctx context.Context, tokenID string) bool {
	n, err := r.client.Exists(ctx, blacklistKey(tokenID)).Result()
	if err != nil {
		r.log.WithError(err).Warn("token blacklist lookup failed")
		return false
	}
	return n > 0
}

func (r *Redis) GetRole(ctx context.Context, userID string) (models.Role, bool) {
	val, ok, err := r.Get(ctx, roleKey(userID))
	if err != nil || !ok {
		return "", false
	}
	role := models.Role(val)
	if !role.IsValid() {
		return "", false
	}
	return role, true
}

func (r *Redis) SetRole(ctx context.Context, userID string, role models.Role) {
	if err := r.client.Set(ctx, roleKey(userID), string(role), RoleCacheTTL).Err(); err != nil {
		r.log.WithError(err).WithField("user_id", userID).Debug("role not cached")
	}
}

func (r *Redis) InvalidateRole(ctx context.Context, userID string) {
	if err := r.client.Del(ctx, roleKey(userID)).Err(); err != nil {
		r.log.WithError(err).WithField("user_id", userID).Warn("role cache invalidation failed")
	}
}
