package routes

import (
	"net/http"
	"testing"

	"byteshop/internal/handlers/handlertest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*gin.Engine, *handlertest.Env) {
	t.Helper()
	env := handlertest.NewEnv(t)
	r := NewRouter(Dependencies{
		Log:         env.Log,
		Environment: "test",
		FrontendURL: "http://localhost:5173",
		DB:          env.Store,
		Auth:        env.Auth,
		Products:    env.Products,
		Cart:        env.Cart,
		Orders:      env.Orders,
	})
	return r, env
}

func TestHealthAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	w := handlertest.Do(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w = handlertest.Do(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	r, _ := newTestRouter(t)

	w := handlertest.Do(r, http.MethodGet, "/api/nowhere", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route GET /api/nowhere not found", handlertest.Decode(t, w).Error)

	w = handlertest.Do(r, http.MethodGet, "/api/events/ws", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteGuards(t *testing.T) {
	r, env := newTestRouter(t)
	_, customer := env.Customer(t, "c@example.com")
	_, admin := env.Admin(t, "a@example.com")

	cases := []struct {
		method, path, token string
		want                int
	}{
		{http.MethodGet, "/api/products", "", http.StatusOK},
		{http.MethodGet, "/api/products/inventory/stats", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/products/inventory/stats", customer, http.StatusForbidden},
		{http.MethodGet, "/api/products/inventory/stats", admin, http.StatusOK},
		{http.MethodGet, "/api/cart", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/cart", customer, http.StatusOK},
		{http.MethodGet, "/api/orders/all", customer, http.StatusForbidden},
		{http.MethodGet, "/api/orders/all", admin, http.StatusOK},
		{http.MethodGet, "/api/auth/users", customer, http.StatusForbidden},
		{http.MethodGet, "/api/admin/audit-logs", admin, http.StatusServiceUnavailable},
		{http.MethodPost, "/api/payments/webhook", "", http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		w := handlertest.Do(r, tc.method, tc.path, tc.token, nil)
		assert.Equal(t, tc.want, w.Code, "%s %s", tc.method, tc.path)
	}
}
