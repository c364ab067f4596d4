package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"byteshop/internal/apperrors"
	"byteshop/internal/auth"
	"byteshop/internal/logging"
	"byteshop/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolver map[string]models.Identity

func (s stubResolver) ResolveIdentity(_ context.Context, raw string) (*models.Identity, error) {
	id, ok := s[raw]
	if !ok {
		return nil, apperrors.Unauthorized("Invalid or expired token")
	}
	return &id, nil
}

var resolver = stubResolver{
	"customer-token": {UserID: "u1", Email: "c@example.com", Role: models.RoleCustomer},
	"admin-token":    {UserID: "u2", Email: "a@example.com", Role: models.RoleAdmin},
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler(logging.Discard(), false))
	r.GET("/t", append(handlers, func(c *gin.Context) {
		id, _ := auth.IdentityFrom(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": id.UserID})
	})...)
	return r
}

func do(r http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	msg, _ := body["error"].(string)
	return msg
}

func TestAuthenticate(t *testing.T) {
	r := newRouter(Authenticate(resolver))

	w := do(r, "/t", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Missing or invalid authorization header", errorOf(t, w))

	w = do(r, "/t", "bogus")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, "/t", "customer-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"u1"}`, w.Body.String())
}

func TestAuthenticateQuery(t *testing.T) {
	r := newRouter(AuthenticateQuery(resolver))

	assert.Equal(t, http.StatusOK, do(r, "/t?token=customer-token", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, "/t", "").Code)

	// the plain middleware ignores the query parameter
	r = newRouter(Authenticate(resolver))
	assert.Equal(t, http.StatusUnauthorized, do(r, "/t?token=customer-token", "").Code)
}

func TestAuthorize(t *testing.T) {
	r := newRouter(Authenticate(resolver), RequireAdmin())

	w := do(r, "/t", "customer-token")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Insufficient permissions", errorOf(t, w))

	assert.Equal(t, http.StatusOK, do(r, "/t", "admin-token").Code)

	// no identity at all is a 401, not a 403
	r = newRouter(Authorize(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, do(r, "/t", "").Code)
}

func TestOptionalAuth(t *testing.T) {
	r := newRouter(OptionalAuth(resolver))

	assert.JSONEq(t, `{"user_id":""}`, do(r, "/t", "").Body.String())
	assert.JSONEq(t, `{"user_id":""}`, do(r, "/t", "bogus").Body.String())
	assert.JSONEq(t, `{"user_id":"u2"}`, do(r, "/t", "admin-token").Body.String())
}

func TestErrorHandlerHidesInternalCauseInProduction(t *testing.T) {
	for _, production := range []bool{true, false} {
		r := gin.New()
		r.Use(ErrorHandler(logging.Discard(), production))
		r.GET("/boom", func(c *gin.Context) {
			_ = c.Error(errors.New("pq: connection refused"))
		})

		w := do(r, "/boom", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Internal server error", body["error"])
		_, hasStack := body["stack"]
		assert.Equal(t, !production, hasStack)
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(logging.Discard(), true))
	r.GET("/panic", func(c *gin.Context) { panic("nil map") })

	w := do(r, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "nil map")
}

func TestNotFound(t *testing.T) {
	r := gin.New()
	r.NoRoute(NotFound())

	w := do(r, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route GET /nope not found", errorOf(t, w))
}

type memCounter struct {
	mu   sync.Mutex
	hits map[string]int64
	err  error
}

func (m *memCounter) IncrementRateLimit(_ context.Context, scope, subject string, _ time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hits == nil {
		m.hits = map[string]int64{}
	}
	m.hits[scope+":"+subject]++
	return m.hits[scope+":"+subject], nil
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(&memCounter{}, logging.Discard())
	r := newRouter(rl.Limit("test", 2, time.Minute, ByIP))

	assert.Equal(t, http.StatusOK, do(r, "/t", "").Code)
	w := do(r, "/t", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do(r, "/t", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimiterFailsOpen(t *testing.T) {
	rl := NewRateLimiter(&memCounter{err: errors.New("redis down")}, logging.Discard())
	r := newRouter(rl.Limit("test", 1, time.Minute, ByIP))
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(r, "/t", "").Code)
	}

	r = newRouter(NewRateLimiter(nil, logging.Discard()).Login())
	assert.Equal(t, http.StatusOK, do(r, "/t", "").Code)
}

type recordingAudit struct {
	entries []models.AuditLog
}

func (r *recordingAudit) Log(_ context.Context, e models.AuditLog) { r.entries = append(r.entries, e) }

func TestAuditFailures(t *testing.T) {
	audit := &recordingAudit{}
	r := newRouter(Authenticate(resolver), AuditFailures(audit, models.ActionUserPromote, models.ResourceUser), RequireAdmin())

	assert.Equal(t, http.StatusForbidden, do(r, "/t", "customer-token").Code)
	require.Len(t, audit.entries, 1)
	assert.False(t, audit.entries[0].Success)
	assert.Equal(t, "u1", audit.entries[0].UserID)
	assert.Equal(t, "Insufficient permissions", audit.entries[0].ErrorMsg)

	assert.Equal(t, http.StatusOK, do(r, "/t", "admin-token").Code)
	assert.Len(t, audit.entries, 1)
}

func TestSecurityHeadersAndRequestMeta(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(), RequestMeta())
	r.GET("/t", func(c *gin.Context) {
		c.String(http.StatusOK, auth.ClientFrom(c.Request.Context()).UserAgent)
	})

	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	req.Header.Set("User-Agent", "shop-test/1.0")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "shop-test/1.0", w.Body.String())
}
