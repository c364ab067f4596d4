package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"byteshop/internal/auth"
	"byteshop/internal/logging"
	"byteshop/internal/models"
	"byteshop/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    *storetest.MockStore
	auth     *AuthService
	products *ProductService
	cart     *CartService
	orders   *OrderService
	audit    *recordingAudit
	tokens   *auth.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logging.Discard()
	ms := storetest.NewMockStore()
	audit := &recordingAudit{}
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	products := NewProductService(ms, ProductDeps{Audit: audit, LowStockThreshold: 5}, log)
	return &testEnv{
		store:    ms,
		auth:     NewAuthService(ms, tokens, AuthDeps{Audit: audit, Revoked: newMemRevoker()}, log),
		products: products,
		cart:     NewCartService(ms, products, nil, log),
		orders:   NewOrderService(ms, OrderDeps{Audit: audit}, log),
		audit:    audit,
		tokens:   tokens,
	}
}

func (e *testEnv) seedProduct(t *testing.T, name string, price string, stock int) *models.Product {
	t.Helper()
	p, err := e.products.Create(context.Background(), CreateProductInput{
		Name:          name,
		Description:   name + " description text",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Category:      models.CategoryPeripherals,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) seedUser(t *testing.T, email string) *models.User {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{Email: email, Password: "secret123", FullName: "Test User"})
	require.NoError(t, err)
	return res.User
}

func (e *testEnv) stockOf(t *testing.T, id string) int {
	t.Helper()
	p, err := e.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.StockQuantity
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (r *recordingAudit) Log(_ context.Context, e models.AuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

type memRevoker struct {
	mu  sync.Mutex
	ids map[string]bool
}

func newMemRevoker() *memRevoker { return &memRevoker{ids: map[string]bool{}} }

func (m *memRevoker) Revoke(_ context.Context, id string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[id] = true
	return nil
}

func (m *memRevoker) IsRevoked(_ context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[id]
}

type fakeImages struct {
	uploaded []string
	deleted  []string
}

func (f *fakeImages) Upload(_ context.Context, path string, r io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	f.uploaded = append(f.uploaded, path)
	return "http://minio.local/product-images/" + path, nil
}

func (f *fakeImages) Delete(_ context.Context, path string) error {
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *fakeImages) List(_ context.Context, prefix string) ([]models.StoredImage, error) {
	out := []models.StoredImage{}
	for _, p := range f.uploaded {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			out = append(out, models.StoredImage{Path: p})
		}
	}
	return out, nil
}

func (f *fakeImages) PathFromURL(url string) string {
	const base = "http://minio.local/product-images/"
	if len(url) > len(base) && url[:len(base)] == base {
		return url[len(base):]
	}
	return ""
}

type fakeSearch struct {
	ids []string
	err error
}

func (f *fakeSearch) IndexProduct(context.Context, *models.Product) error { return nil }
func (f *fakeSearch) RemoveProduct(context.Context, string) error         { return nil }
func (f *fakeSearch) Search(context.Context, string, int) ([]string, error) {
	return f.ids, f.err
}
func (f *fakeSearch) Suggest(context.Context, string, int) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []string{fmt.Sprintf("%d hits", len(f.ids))}, nil
}

type memCache struct {
	mu       sync.Mutex
	products map[string]models.Product
}

func newMemCache() *memCache { return &memCache{products: map[string]models.Product{}} }

func (c *memCache) GetProduct(_ context.Context, id string) (*models.Product, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, false
	}
	return &p, true
}

func (c *memCache) SetProduct(_ context.Context, p *models.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = *p
}

func (c *memCache) InvalidateProduct(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
}
