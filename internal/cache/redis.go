package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	RoleCacheTTL    = 5 * time.Minute
	ProductCacheTTL = 10 * time.Minute
)

// Redis backs the role cache, token blacklist, product cache, rate limit
// counters and realtime events.
type Redis struct {
	client *redis.Client
	log    logrus.FieldLogger
}

func New(client *redis.Client, log logrus.FieldLogger) *Redis {
	return &Redis{client: client, log: log}
}

func (r *Redis) Client() *redis.Client { return r.client }

// --- keys

func blacklistKey(tokenID string) string { return "blacklist:" + tokenID }
func roleKey(userID string) string       { return "role:" + userID }
func productKey(productID string) string { return "product:" + productID }
func eventsChannel(userID string) string { return "events:" + userID }
func rateLimitKey(scope, subject string, window time.Duration, now time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", scope, subject, now.Unix()/int64(window.Seconds()))
}

// --- generic

func (r *Redis) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Get returns ok=false on a miss.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// --- rate limiting

// IncrementRateLimit counts one hit for subject in the current fixed window
// and returns the hit count so far.
func (r *Redis) IncrementRateLimit(ctx context.Context, scope, subject string, window time.Duration) (int64, error) {
	key := rateLimitKey(scope, subject, window, time.Now())
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
