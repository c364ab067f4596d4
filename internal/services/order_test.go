package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"byteshop/internal/apperrors"
	"byteshop/internal/logging"
	"byteshop/internal/models"
	"byteshop/internal/store"
	"byteshop/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu            sync.Mutex
	confirmations []string
	statusChanges []models.OrderStatus
}

func (r *recordingNotifier) OrderConfirmation(_ context.Context, to *models.User, _ *models.OrderWithItems) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmations = append(r.confirmations, to.Email)
	return nil
}

func (r *recordingNotifier) OrderStatusChanged(_ context.Context, _ *models.User, o *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusChanges = append(r.statusChanges, o.Status)
	return nil
}

func (r *recordingNotifier) LowStockAlert(context.Context, []models.Product) error { return nil }

func (r *recordingNotifier) sent() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.confirmations), len(r.statusChanges)
}

type fakePayments struct{ err error }

func (f fakePayments) CreatePaymentIntent(_ context.Context, o *models.Order, _ *models.User) (*models.PaymentIntent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.PaymentIntent{ID: "pi_123", ClientSecret: "secret", Amount: o.TotalAmount, Currency: "brl", Status: "requires_payment_method"}, nil
}

type fakeInvoices struct{}

func (fakeInvoices) Render(_ context.Context, o *models.OrderWithItems, _ *models.User) ([]byte, error) {
	return []byte("%PDF-" + o.ID), nil
}

func customer(u *models.User) models.Identity {
	return models.Identity{UserID: u.ID, Email: u.Email, Role: models.RoleCustomer}
}

func placeOrder(t *testing.T, env *testEnv, userID string, lines ...models.OrderLine) *models.OrderWithItems {
	t.Helper()
	o, err := env.orders.Create(context.Background(), userID, CreateOrderInput{ShippingAddress: "Rua A, 100", Items: lines})
	require.NoError(t, err)
	return o
}

func TestCreateOrderEmpty(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "empty@example.com")

	_, err := env.orders.Create(context.Background(), user.ID, CreateOrderInput{ShippingAddress: "Rua A, 100"})
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	assert.Zero(t, env.store.OrderCount())
}

func TestCreateOrderDecrementsStockAndTotals(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "buyer@example.com")
	a := env.seedProduct(t, "Notebook", "3500.00", 5)
	b := env.seedProduct(t, "Mouse pad", "39.90", 10)

	o := placeOrder(t, env, user.ID,
		models.OrderLine{ProductID: a.ID, Quantity: 2},
		models.OrderLine{ProductID: b.ID, Quantity: 3},
	)

	assert.Equal(t, models.OrderPending, o.Status)
	assert.Equal(t, user.ID, o.UserID)
	require.Len(t, o.Items, 2)
	assert.True(t, decimal.RequireFromString("7119.70").Equal(o.TotalAmount), o.TotalAmount.String())
	assert.Equal(t, 3, env.stockOf(t, a.ID))
	assert.Equal(t, 7, env.stockOf(t, b.ID))

	movements, err := env.products.StockMovements(context.Background(), a.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, models.MovementSale, movements[0].Type)
	assert.Equal(t, -2, movements[0].Quantity)
	require.NotNil(t, movements[0].OrderID)
	assert.Equal(t, o.ID, *movements[0].OrderID)
	assert.Contains(t, env.audit.actions(), models.ActionOrderCreate)
}

func TestCreateOrderUnavailableLeavesNothing(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "short@example.com")
	a := env.seedProduct(t, "Printer", "900.00", 5)
	b := env.seedProduct(t, "Toner", "150.00", 1)

	_, err := env.orders.Create(context.Background(), user.ID, CreateOrderInput{
		ShippingAddress: "Rua A, 100",
		Items: []models.OrderLine{
			{ProductID: a.ID, Quantity: 1},
			{ProductID: b.ID, Quantity: 2},
		},
	})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	assert.Equal(t, `Product "Toner" is not available in requested quantity`, err.Error())

	assert.Zero(t, env.store.OrderCount())
	assert.Zero(t, env.store.OrderItemCount())
	assert.Equal(t, 5, env.stockOf(t, a.ID))
	assert.Equal(t, 1, env.stockOf(t, b.ID))
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "ghost@example.com")

	_, err := env.orders.Create(context.Background(), user.ID, CreateOrderInput{
		ShippingAddress: "Rua A, 100",
		Items:           []models.OrderLine{{ProductID: "does-not-exist", Quantity: 1}},
	})
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
	assert.Zero(t, env.store.OrderCount())
}

func TestCreateOrderLineInsertFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "rollback@example.com")
	p := env.seedProduct(t, "Switch", "250.00", 4)
	env.store.FailOn("InsertOrderItems", errors.New("connection reset"))

	_, err := env.orders.Create(context.Background(), user.ID, CreateOrderInput{
		ShippingAddress: "Rua A, 100",
		Items:           []models.OrderLine{{ProductID: p.ID, Quantity: 1}},
	})
	assert.Equal(t, http.StatusInternalServerError, apperrors.StatusOf(err))
	assert.Zero(t, env.store.OrderCount())
	assert.Zero(t, env.store.OrderItemCount())
	assert.Equal(t, 4, env.stockOf(t, p.ID))
}

func TestCreateOrderStockFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "stockfail@example.com")
	p := env.seedProduct(t, "Hub", "80.00", 4)
	env.store.FailOn("AdjustStock", errors.New("lock timeout"))

	_, err := env.orders.Create(context.Background(), user.ID, CreateOrderInput{
		ShippingAddress: "Rua A, 100",
		Items:           []models.OrderLine{{ProductID: p.ID, Quantity: 1}},
	})
	require.Error(t, err)
	assert.Zero(t, env.store.OrderCount())
	assert.Equal(t, 4, env.stockOf(t, p.ID))
}

func TestCreateOrderMergesDuplicateLines(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "merge@example.com")
	p := env.seedProduct(t, "Pendrive", "30.00", 3)

	o := placeOrder(t, env, user.ID,
		models.OrderLine{ProductID: p.ID, Quantity: 2},
		models.OrderLine{ProductID: p.ID, Quantity: 1},
	)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 3, o.Items[0].Quantity)
	assert.Zero(t, env.stockOf(t, p.ID))

	// merged quantity is checked as a whole
	q := env.seedProduct(t, "Adapter", "15.00", 3)
	_, err := env.orders.Create(context.Background(), user.ID, CreateOrderInput{
		ShippingAddress: "Rua A, 100",
		Items:           []models.OrderLine{{ProductID: q.ID, Quantity: 2}, {ProductID: q.ID, Quantity: 2}},
	})
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
}

func TestOrderKeepsPurchasePrice(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "price@example.com")
	p := env.seedProduct(t, "Chair", "1000.00", 3)
	o := placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 1})

	newPrice := decimal.RequireFromString("1200.00")
	_, err := env.products.Update(context.Background(), p.ID, models.ProductUpdate{Price: &newPrice})
	require.NoError(t, err)

	got, err := env.orders.Get(context.Background(), o.ID, customer(user))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1000").Equal(got.Items[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("1000").Equal(got.TotalAmount))
}

func TestCreateOrderClearsCart(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "clear@example.com")
	p := env.seedProduct(t, "Lamp", "60.00", 5)
	ctx := context.Background()

	_, _, err := env.cart.Add(ctx, user.ID, p.ID, 2)
	require.NoError(t, err)

	_, err = env.orders.Create(ctx, user.ID, CreateOrderInput{
		ShippingAddress: "Rua A, 100",
		Items:           []models.OrderLine{{ProductID: p.ID, Quantity: 2}},
		ClearCart:       true,
	})
	require.NoError(t, err)

	lines, err := env.cart.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestGetOrderOwnership(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedUser(t, "alice@example.com")
	bob := env.seedUser(t, "bob@example.com")
	p := env.seedProduct(t, "Tripod", "90.00", 5)
	o := placeOrder(t, env, alice.ID, models.OrderLine{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()

	_, err := env.orders.Get(ctx, o.ID, customer(bob))
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))

	admin := models.Identity{UserID: bob.ID, Role: models.RoleAdmin}
	got, err := env.orders.Get(ctx, o.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	mine, page, err := env.orders.ListMine(ctx, bob.ID, models.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, mine)
	assert.Zero(t, page.Total)

	all, _, err := env.orders.ListAll(ctx, models.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "status@example.com")
	p := env.seedProduct(t, "Camera", "2500.00", 2)
	o := placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()

	updated, err := env.orders.UpdateStatus(ctx, o.ID, models.OrderProcessing)
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, updated.Status)

	_, err = env.orders.UpdateStatus(ctx, o.ID, models.OrderPending)
	require.Error(t, err)
	assert.Equal(t, "Cannot change order status from processing to pending", err.Error())

	_, err = env.orders.UpdateStatus(ctx, o.ID, models.OrderDelivered)
	require.NoError(t, err)

	_, err = env.orders.UpdateStatus(ctx, o.ID, models.OrderCancelled)
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	_, err = env.orders.UpdateStatus(ctx, o.ID, models.OrderStatus("lost"))
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))

	_, err = env.orders.UpdateStatus(ctx, "missing", models.OrderShipped)
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestCancelRestocks(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "cancel@example.com")
	p := env.seedProduct(t, "Console", "4000.00", 3)
	o := placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 2})
	require.Equal(t, 1, env.stockOf(t, p.ID))

	_, err := env.orders.UpdateStatus(context.Background(), o.ID, models.OrderCancelled)
	require.NoError(t, err)
	assert.Equal(t, 3, env.stockOf(t, p.ID))

	movements, err := env.products.StockMovements(context.Background(), p.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.Equal(t, models.MovementReturn, movements[0].Type)
}

func TestOrderEmailsAreSentInBackground(t *testing.T) {
	env := newTestEnv(t)
	notifier := &recordingNotifier{}
	env.orders = NewOrderService(env.store, OrderDeps{Notifier: notifier}, logging.Discard())
	user := env.seedUser(t, "mail@example.com")
	p := env.seedProduct(t, "Drone", "3000.00", 2)

	o := placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 1})
	_, err := env.orders.UpdateStatus(context.Background(), o.ID, models.OrderShipped)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		confirmations, changes := notifier.sent()
		return confirmations == 1 && changes == 1
	}, time.Second, 10*time.Millisecond)
}

func TestExportCSV(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "csv@example.com")
	p := env.seedProduct(t, "Router, dual band", "199.90", 5)
	placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 2})

	var buf bytes.Buffer
	n, err := env.orders.ExportCSV(context.Background(), models.OrderFilter{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, "csv@example.com", records[1][2])
	assert.Equal(t, "399.80", records[1][4])
	assert.Equal(t, "1", records[1][7])
}

func TestDashboards(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "dash@example.com")
	p := env.seedProduct(t, "Earbuds", "100.00", 10)
	placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 2})
	placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()

	days, err := env.orders.SalesDashboard(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, 2, days[0].OrdersCount)
	assert.Equal(t, 3, days[0].ItemsSold)

	history, err := env.orders.CustomerHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 2, history[0].TotalOrders)
	assert.True(t, decimal.NewFromInt(300).Equal(history[0].TotalSpent))
}

func TestPaymentIntent(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "pay@example.com")
	p := env.seedProduct(t, "Watch", "799.00", 3)
	o := placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()

	_, err := env.orders.CreatePaymentIntent(ctx, o.ID, customer(user))
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.StatusOf(err))

	env.orders.payments = fakePayments{}
	intent, err := env.orders.CreatePaymentIntent(ctx, o.ID, customer(user))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(799).Equal(intent.Amount))

	env.orders.payments = fakePayments{err: errors.New("card network down")}
	_, err = env.orders.CreatePaymentIntent(ctx, o.ID, customer(user))
	assert.Equal(t, http.StatusBadGateway, apperrors.StatusOf(err))

	_, err = env.orders.UpdateStatus(ctx, o.ID, models.OrderProcessing)
	require.NoError(t, err)
	env.orders.payments = fakePayments{}
	_, err = env.orders.CreatePaymentIntent(ctx, o.ID, customer(user))
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
}

func TestInvoice(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "invoice@example.com")
	other := env.seedUser(t, "other@example.com")
	p := env.seedProduct(t, "Tablet", "1500.00", 3)
	o := placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()

	_, err := env.orders.Invoice(ctx, o.ID, customer(user))
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.StatusOf(err))

	env.orders.invoices = fakeInvoices{}
	pdf, err := env.orders.Invoice(ctx, o.ID, customer(user))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-"+o.ID, string(pdf))

	_, err = env.orders.Invoice(ctx, o.ID, customer(other))
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestMarkPaid(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "paid@example.com")
	p := env.seedProduct(t, "Dock", "150.00", 4)
	o := placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 1})
	ctx := context.Background()

	require.NoError(t, env.orders.MarkPaid(ctx, o.ID))
	got, err := env.orders.Get(ctx, o.ID, customer(user))
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, got.Status)

	require.NoError(t, env.orders.MarkPaid(ctx, o.ID))
	got, err = env.orders.Get(ctx, o.ID, customer(user))
	require.NoError(t, err)
	assert.Equal(t, models.OrderProcessing, got.Status)

	err = env.orders.MarkPaid(ctx, "missing")
	assert.Equal(t, http.StatusNotFound, apperrors.StatusOf(err))
}

func TestConcurrentCancelsRestockOnce(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "double-cancel@example.com")
	p := env.seedProduct(t, "Monitor", "1200.00", 5)
	o := placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 2})
	require.Equal(t, 3, env.stockOf(t, p.ID))

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.orders.UpdateStatus(context.Background(), o.ID, models.OrderCancelled)
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			assert.Equal(t, http.StatusBadRequest, apperrors.StatusOf(err))
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 5, env.stockOf(t, p.ID))

	movements, err := env.products.StockMovements(context.Background(), p.ID, 10)
	require.NoError(t, err)
	returns := 0
	for _, m := range movements {
		if m.Type == models.MovementReturn {
			returns++
		}
	}
	assert.Equal(t, 1, returns)
}

// staleLocks answers LockOrder with a copy read before another writer
// committed, the row an unlocked SELECT can return.
type staleLocks struct {
	*storetest.MockStore
	order models.Order
}

func (s *staleLocks) InTx(ctx context.Context, fn func(q store.Queries) error) error {
	return s.MockStore.InTx(ctx, func(q store.Queries) error {
		return fn(staleQueries{Queries: q, order: s.order})
	})
}

type staleQueries struct {
	store.Queries
	order models.Order
}

func (q staleQueries) LockOrder(context.Context, string) (*models.Order, error) {
	o := q.order
	return &o, nil
}

func TestStatusUpdateRejectsStaleRead(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "stale@example.com")
	p := env.seedProduct(t, "Tablet", "1800.00", 5)
	o := placeOrder(t, env, user.ID, models.OrderLine{ProductID: p.ID, Quantity: 2})
	ctx := context.Background()

	pending, err := env.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	_, err = env.orders.UpdateStatus(ctx, o.ID, models.OrderCancelled)
	require.NoError(t, err)
	require.Equal(t, 5, env.stockOf(t, p.ID))

	stale := NewOrderService(&staleLocks{MockStore: env.store, order: *pending}, OrderDeps{}, logging.Discard())

	_, err = stale.UpdateStatus(ctx, o.ID, models.OrderCancelled)
	assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))
	assert.Equal(t, 5, env.stockOf(t, p.ID))

	err = stale.MarkPaid(ctx, o.ID)
	assert.Equal(t, http.StatusConflict, apperrors.StatusOf(err))

	got, err := env.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, got.Status)
}

func TestStockChangesEvictCachedProducts(t *testing.T) {
	env := newTestEnv(t)
	cache := newMemCache()
	log := logging.Discard()
	products := NewProductService(env.store, ProductDeps{Cache: cache, LowStockThreshold: 5}, log)
	orders := NewOrderService(env.store, OrderDeps{Cache: cache}, log)
	user := env.seedUser(t, "cached@example.com")
	p := env.seedProduct(t, "Headset", "350.00", 5)
	ctx := context.Background()

	got, err := products.Get(ctx, p.ID, false)
	require.NoError(t, err)
	require.Equal(t, 5, got.StockQuantity)

	o, err := orders.Create(ctx, user.ID, CreateOrderInput{
		ShippingAddress: "Rua B, 200",
		Items:           []models.OrderLine{{ProductID: p.ID, Quantity: 4}},
	})
	require.NoError(t, err)

	got, err = products.Get(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, got.StockQuantity)

	_, err = orders.UpdateStatus(ctx, o.ID, models.OrderCancelled)
	require.NoError(t, err)

	got, err = products.Get(ctx, p.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 5, got.StockQuantity)
}
