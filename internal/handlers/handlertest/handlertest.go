// Package handlertest wires services on an in-memory store for controller
// tests.
package handlertest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"byteshop/internal/auth"
	"byteshop/internal/logging"
	"byteshop/internal/middleware"
	"byteshop/internal/models"
	"byteshop/internal/services"
	"byteshop/internal/store/storetest"
	"byteshop/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Register()
}

type Env struct {
	Store    *storetest.MockStore
	Auth     *services.AuthService
	Products *services.ProductService
	Cart     *services.CartService
	Orders   *services.OrderService
	Log      *logrus.Logger
}

type Options struct {
	Product services.ProductDeps
	Order   services.OrderDeps
}

func NewEnv(t *testing.T, opts ...Options) *Env {
	t.Helper()
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Product.LowStockThreshold == 0 {
		o.Product.LowStockThreshold = 5
	}

	log := logging.Discard()
	ms := storetest.NewMockStore()
	products := services.NewProductService(ms, o.Product, log)
	return &Env{
		Store:    ms,
		Auth:     services.NewAuthService(ms, auth.NewTokenManager("handler-test-secret", time.Hour), services.AuthDeps{}, log),
		Products: products,
		Cart:     services.NewCartService(ms, products, nil, log),
		Orders:   services.NewOrderService(ms, o.Order, log),
		Log:      log,
	}
}

// Engine returns a router with the production error envelope.
func (e *Env) Engine() *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler(e.Log, false))
	return r
}

func (e *Env) Authenticate() gin.HandlerFunc {
	return middleware.Authenticate(e.Auth)
}

func (e *Env) Customer(t *testing.T, email string) (*models.User, string) {
	t.Helper()
	res, err := e.Auth.Register(context.Background(), services.RegisterInput{
		Email:    email,
		Password: "secret123",
		FullName: "Test Customer",
	})
	require.NoError(t, err)
	return res.User, res.Token
}

func (e *Env) Admin(t *testing.T, email string) (*models.User, string) {
	t.Helper()
	u, token := e.Customer(t, email)
	promoted, err := e.Auth.PromoteToAdmin(context.Background(), u.ID)
	require.NoError(t, err)
	return promoted, token
}

func (e *Env) Product(t *testing.T, name, price string, stock int) *models.Product {
	t.Helper()
	p, err := e.Products.Create(context.Background(), services.CreateProductInput{
		Name:          name,
		Description:   name + " for handler tests",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		Category:      models.CategoryAccessories,
	})
	require.NoError(t, err)
	return p
}

// Do sends body as JSON unless it is already an io.Reader.
func Do(h http.Handler, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		r = b
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type Response struct {
	Success    bool               `json:"success"`
	Data       json.RawMessage    `json:"data"`
	Message    string             `json:"message"`
	Error      string             `json:"error"`
	Pagination *models.Pagination `json:"pagination"`
}

func Decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var r Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r), w.Body.String())
	return r
}

// DecodeData unmarshals the envelope's data into dst.
func DecodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) Response {
	t.Helper()
	r := Decode(t, w)
	require.NoError(t, json.Unmarshal(r.Data, dst), string(r.Data))
	return r
}
