package cache

import (
	"context"
	"testing"
	"time"

	"byteshop/internal/logging"
	"byteshop/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// unreachable returns a client pointed at a closed port so every command fails fast.
func unreachable() *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	return New(client, logging.Discard())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "blacklist:abc", blacklistKey("abc"))
	assert.Equal(t, "role:u1", roleKey("u1"))
	assert.Equal(t, "product:p1", productKey("p1"))
	assert.Equal(t, "events:u1", eventsChannel("u1"))

	now := time.Unix(1200, 0)
	assert.Equal(t, "ratelimit:login:1.2.3.4:20", rateLimitKey("login", "1.2.3.4", time.Minute, now))
	assert.Equal(t, rateLimitKey("login", "x", time.Minute, now), rateLimitKey("login", "x", time.Minute, now.Add(59*time.Second)))
}

func TestFailuresDegradeToMisses(t *testing.T) {
	r := unreachable()
	defer r.Client().Close()
	ctx := context.Background()

	assert.False(t, r.IsRevoked(ctx, "token"))

	_, ok := r.GetRole(ctx, "user")
	assert.False(t, ok)

	_, ok = r.GetProduct(ctx, "product")
	assert.False(t, ok)

	// must not panic
	r.SetRole(ctx, "user", models.RoleAdmin)
	r.SetProduct(ctx, &models.Product{ID: "product"})
	r.InvalidateRole(ctx, "user")
	r.InvalidateProduct(ctx, "product")

	_, err := r.IncrementRateLimit(ctx, "login", "ip", time.Minute)
	assert.Error(t, err)
	assert.Error(t, r.Publish(ctx, "user", models.Event{Type: models.EventCartUpdated}))
}

func TestRevokeSkipsExpiredTokens(t *testing.T) {
	r := unreachable()
	defer r.Client().Close()

	assert.NoError(t, r.Revoke(context.Background(), "token", 0))
	assert.Error(t, r.Revoke(context.Background(), "token", time.Minute))
}
