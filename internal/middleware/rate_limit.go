package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"byteshop/internal/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	LoginMaxAttempts    = 5
	RegisterMaxAttempts = 3
	APIMaxRequests      = 100
	CartMaxRequests     = 20
	SearchMaxRequests   = 30

	LoginWindow    = 15 * time.Minute
	RegisterWindow = 30 * time.Minute
	APIWindow      = time.Minute
)

// Counter counts hits per subject in fixed windows.
type Counter interface {
	IncrementRateLimit(ctx context.Context, scope, subject string, window time.Duration) (int64, error)
}

// RateLimiter builds per-route limits on top of a Counter. Without a counter,
// or when the counter fails, requests pass through.
type RateLimiter struct {
	counter Counter
	log     logrus.FieldLogger
}

func NewRateLimiter(counter Counter, log logrus.FieldLogger) *RateLimiter {
	return &RateLimiter{counter: counter, log: log}
}

// Limit allows max requests per window for the subject returned by key.
// An empty subject is not limited.
func (rl *RateLimiter) Limit(scope string, max int64, window time.Duration, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.counter == nil {
			c.Next()
			return
		}
		subject := key(c)
		if subject == "" {
			c.Next()
			return
		}

		hits, err := rl.counter.IncrementRateLimit(c.Request.Context(), scope, subject, window)
		if err != nil {
			rl.log.WithError(err).WithField("scope", scope).Warn("rate limit counter unavailable")
			c.Next()
			return
		}

		remaining := max - hits
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(max, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if hits > max {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			_ = c.Error(apperrors.TooManyRequests(fmt.Sprintf("Too many requests. Try again in %s", window)))
			c.Abort()
			return
		}
		c.Next()
	}
}

func ByIP(c *gin.Context) string { return c.ClientIP() }

// ByUser keys on the authenticated user and falls back to the client IP.
func ByUser(c *gin.Context) string {
	if id := c.GetString(userIDKey); id != "" {
		return id
	}
	return c.ClientIP()
}

func (rl *RateLimiter) Login() gin.HandlerFunc {
	return rl.Limit("login", LoginMaxAttempts, LoginWindow, ByIP)
}

func (rl *RateLimiter) Register() gin.HandlerFunc {
	return rl.Limit("register", RegisterMaxAttempts, RegisterWindow, ByIP)
}

func (rl *RateLimiter) API() gin.HandlerFunc {
	return rl.Limit("api", APIMaxRequests, APIWindow, ByIP)
}

func (rl *RateLimiter) Cart() gin.HandlerFunc {
	return rl.Limit("cart", CartMaxRequests, time.Minute, ByUser)
}

func (rl *RateLimiter) Search() gin.HandlerFunc {
	return rl.Limit("search", SearchMaxRequests, time.Minute, ByIP)
}
