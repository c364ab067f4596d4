package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"byteshop/internal/apperrors"
	"byteshop/internal/metrics"
	"byteshop/internal/models"
	"byteshop/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	salesDashboardDays = 30
	sideEffectTimeout  = 30 * time.Second
)

type CreateOrderInput struct {
	ShippingAddress string
	Items           []models.OrderLine
	ClearCart       bool
}

type OrderService struct {
	store    store.Store
	notifier Notifier
	events   EventPublisher
	audit    AuditLogger
	payments PaymentGateway
	invoices InvoiceRenderer
	cache    ProductCache
	log      logrus.FieldLogger
}

type OrderDeps struct {
	Notifier Notifier
	Events   EventPublisher
	Audit    AuditLogger
	Payments PaymentGateway
	Invoices InvoiceRenderer
	// Cache is the product cache; stock changes evict the affected products.
	Cache ProductCache
}

func NewOrderService(s store.Store, deps OrderDeps, log logrus.FieldLogger) *OrderService {
	svc := &OrderService{
		store:    s,
		notifier: deps.Notifier,
		events:   deps.Events,
		audit:    deps.Audit,
		payments: deps.Payments,
		invoices: deps.Invoices,
		cache:    deps.Cache,
		log:      log,
	}
	if svc.notifier == nil {
		svc.notifier = Nop{}
	}
	if svc.events == nil {
		svc.events = Nop{}
	}
	if svc.audit == nil {
		svc.audit = Nop{}
	}
	if svc.cache == nil {
		svc.cache = Nop{}
	}
	return svc
}

// mergeLines folds repeated products into one line, keeping first-seen order.
func mergeLines(lines []models.OrderLine) []models.OrderLine {
	merged := make([]models.OrderLine, 0, len(lines))
	index := map[string]int{}
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(merged)
		merged = append(merged, l)
	}
	return merged
}

// Create places an order for userID. Availability checks, price capture,
// header and line inserts, stock decrements and total reconciliation run in
// one transaction, so a failure at any step leaves nothing behind.
func (s *OrderService) Create(ctx context.Context, userID string, in CreateOrderInput) (*models.OrderWithItems, error) {
	if len(in.Items) == 0 {
		metrics.RecordOrderFailure("empty")
		return nil, apperrors.BadRequest("Order must have at least one item")
	}
	lines := mergeLines(in.Items)
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, apperrors.BadRequest("Quantity must be at least 1")
		}
		ids = append(ids, l.ProductID)
	}

	var result *models.OrderWithItems
	err := s.store.InTx(ctx, func(q store.Queries) error {
		locked, err := q.GetProducts(ctx, ids, true)
		if err != nil {
			return fmt.Errorf("lock products: %w", err)
		}
		byID := make(map[string]models.Product, len(locked))
		for _, p := range locked {
			byID[p.ID] = p
		}

		for _, l := range lines {
			ok, err := q.CheckAvailability(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return fmt.Errorf("check availability: %w", err)
			}
			if !ok {
				name := l.ProductID
				if p, found := byID[l.ProductID]; found {
					name = p.Name
				}
				metrics.RecordOrderFailure("unavailable")
				return apperrors.BadRequest("Product %q is not available in requested quantity", name)
			}
		}

		order := &models.Order{
			ID:              uuid.NewString(),
			UserID:          userID,
			ShippingAddress: strings.TrimSpace(in.ShippingAddress),
			TotalAmount:     decimal.Zero,
			Status:          models.OrderPending,
		}
		items := make([]models.OrderItem, 0, len(lines))
		for _, l := range lines {
			p, found := byID[l.ProductID]
			if !found {
				return apperrors.BadRequest("Product %s not found", l.ProductID)
			}
			items = append(items, models.OrderItem{
				ID:        uuid.NewString(),
				OrderID:   order.ID,
				ProductID: p.ID,
				Quantity:  l.Quantity,
				UnitPrice: p.Price,
			})
		}

		if err := q.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if err := q.InsertOrderItems(ctx, items); err != nil {
			return fmt.Errorf("insert order items: %w", err)
		}

		for _, it := range items {
			prev, next, err := q.AdjustStock(ctx, it.ProductID, -it.Quantity)
			if errors.Is(err, store.ErrInsufficientStock) {
				metrics.RecordOrderFailure("stock")
				return apperrors.BadRequest("Product %q is not available in requested quantity", byID[it.ProductID].Name)
			}
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			orderID := order.ID
			err = q.InsertStockMovement(ctx, &models.StockMovement{
				ID:        uuid.NewString(),
				ProductID: it.ProductID,
				OrderID:   &orderID,
				Type:      models.MovementSale,
				Quantity:  -it.Quantity,
				PrevStock: prev,
				NewStock:  next,
				Reason:    "order " + order.ID,
				UserID:    userID,
			})
			if err != nil {
				return fmt.Errorf("record stock movement: %w", err)
			}
		}

		if _, err := q.RecalculateOrderTotal(ctx, order.ID); err != nil {
			return fmt.Errorf("recalculate total: %w", err)
		}
		if in.ClearCart {
			if err := q.ClearCart(ctx, userID); err != nil {
				return fmt.Errorf("clear cart: %w", err)
			}
		}

		result, err = loadOrder(ctx, q, order.ID)
		return err
	})
	if err != nil {
		var appErr *apperrors.Error
		if !errors.As(err, &appErr) {
			metrics.RecordOrderFailure("internal")
			s.log.WithError(err).WithField("user_id", userID).Error("order creation rolled back")
		}
		return nil, classify(err)
	}

	sold := make([]string, 0, len(lines))
	for _, l := range lines {
		sold = append(sold, l.ProductID)
	}
	s.evict(ctx, sold)

	total, _ := result.TotalAmount.Float64()
	metrics.RecordOrderCreated(total)

	entry := auditEntry(ctx, models.ActionOrderCreate, models.ResourceOrder, result.ID)
	entry.NewValue = toJSON(result)
	s.audit.Log(ctx, entry)

	s.afterCommit(ctx, userID, models.EventOrderCreated, result, func(bg context.Context, u *models.User) error {
		return s.notifier.OrderConfirmation(bg, u, result)
	})
	return result, nil
}

func loadOrder(ctx context.Context, q store.Queries, id string) (*models.OrderWithItems, error) {
	o, err := q.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := q.ListOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.OrderWithItems{Order: *o, Items: items}, nil
}

// afterCommit publishes the event and sends the email without holding the request.
func (s *OrderService) afterCommit(ctx context.Context, userID, eventType string, data interface{}, email func(context.Context, *models.User) error) {
	if err := s.events.Publish(ctx, userID, models.Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()}); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Debug("order event not published")
	}

	bg, cancel := detached(ctx, sideEffectTimeout)
	go func() {
		defer cancel()
		u, err := s.store.GetUserByID(bg, userID)
		if err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("order email skipped, user lookup failed")
			return
		}
		if err := email(bg, u); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("order email failed")
		}
	}()
}

// Get returns an order with its lines. Customers only see their own orders.
func (s *OrderService) Get(ctx context.Context, id string, caller models.Identity) (*models.OrderWithItems, error) {
	o, err := loadOrder(ctx, s.store, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !caller.IsAdmin() && o.UserID != caller.UserID {
		return nil, apperrors.NotFound("Order not found")
	}
	return o, nil
}

func (s *OrderService) ListMine(ctx context.Context, userID string, f models.OrderFilter) ([]models.Order, models.Pagination, error) {
	f.UserID = userID
	return s.list(ctx, f)
}

// ListAll lists orders across customers, optionally narrowed by f.UserID.
func (s *OrderService) ListAll(ctx context.Context, f models.OrderFilter) ([]models.Order, models.Pagination, error) {
	return s.list(store.Elevate(ctx), f)
}

func (s *OrderService) list(ctx context.Context, f models.OrderFilter) ([]models.Order, models.Pagination, error) {
	f.Page, f.Limit = models.NormalizePage(f.Page, f.Limit)
	orders, total, err := s.store.ListOrders(ctx, f)
	if err != nil {
		return nil, models.Pagination{}, apperrors.Internal(err)
	}
	return orders, models.NewPagination(f.Page, f.Limit, total), nil
}

// UpdateStatus moves an order along its lifecycle. Cancelling returns the
// ordered quantities to stock in the same transaction.
func (s *OrderService) UpdateStatus(ctx context.Context, id string, next models.OrderStatus) (*models.Order, error) {
	if !next.IsValid() {
		return nil, apperrors.BadRequest("Invalid order status %q", next)
	}
	return s.transition(ctx, id, next, nil)
}

var errSkipTransition = errors.New("order transition skipped")

// transition locks the order row, validates the move and applies it. A non-nil
// precheck may veto the move with errSkipTransition, which returns (nil, nil).
func (s *OrderService) transition(ctx context.Context, id string, next models.OrderStatus, precheck func(*models.Order) error) (*models.Order, error) {
	var before, after *models.Order
	var restocked []string
	err := s.store.InTx(ctx, func(q store.Queries) error {
		o, err := q.LockOrder(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.NotFound("Order not found")
		}
		if err != nil {
			return err
		}
		if precheck != nil {
			if err := precheck(o); err != nil {
				return err
			}
		}
		if !o.Status.CanTransitionTo(next) {
			return apperrors.BadRequest("Cannot change order status from %s to %s", o.Status, next)
		}
		before = o

		after, err = q.UpdateOrderStatus(store.Elevate(ctx), id, o.Status, next)
		if errors.Is(err, store.ErrConflict) {
			return apperrors.Conflict("Order status was changed by another request")
		}
		if err != nil {
			return err
		}
		if next == models.OrderCancelled {
			restocked, err = restock(ctx, q, id)
			return err
		}
		return nil
	})
	if errors.Is(err, errSkipTransition) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}

	s.evict(ctx, restocked)
	metrics.RecordStatusChange(string(next))
	entry := auditEntry(ctx, models.ActionOrderStatus, models.ResourceOrder, id)
	entry.OldValue = string(before.Status)
	entry.NewValue = string(after.Status)
	s.audit.Log(ctx, entry)

	s.afterCommit(ctx, after.UserID, models.EventOrderStatusChanged, after, func(bg context.Context, u *models.User) error {
		return s.notifier.OrderStatusChanged(bg, u, after)
	})
	return after, nil
}

// evict drops cached copies of products whose stock changed.
func (s *OrderService) evict(ctx context.Context, productIDs []string) {
	for _, id := range productIDs {
		s.cache.InvalidateProduct(ctx, id)
	}
}

// restock returns every line to stock and reports the touched product ids.
func restock(ctx context.Context, q store.Queries, orderID string) ([]string, error) {
	items, err := q.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		prev, next, err := q.AdjustStock(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return nil, fmt.Errorf("restock %s: %w", it.ProductID, err)
		}
		id := orderID
		err = q.InsertStockMovement(ctx, &models.StockMovement{
			ID:        uuid.NewString(),
			ProductID: it.ProductID,
			OrderID:   &id,
			Type:      models.MovementReturn,
			Quantity:  it.Quantity,
			PrevStock: prev,
			NewStock:  next,
			Reason:    "order " + orderID + " cancelled",
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, it.ProductID)
	}
	return ids, nil
}

// SalesDashboard returns per-day sales, newest first, for at most 30 days.
func (s *OrderService) SalesDashboard(ctx context.Context, start, end *time.Time) ([]models.SalesDay, error) {
	days, err := s.store.SalesDashboard(store.Elevate(ctx), start, end, salesDashboardDays)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return days, nil
}

func (s *OrderService) CustomerHistory(ctx context.Context) ([]models.CustomerHistory, error) {
	rows, err := s.store.CustomerHistory(store.Elevate(ctx))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return rows, nil
}

var exportHeader = []string{"order_id", "customer_name", "customer_email", "status", "total_amount", "created_at", "shipping_address", "item_count"}

// ExportCSV writes the filtered orders as CSV and returns the row count.
func (s *OrderService) ExportCSV(ctx context.Context, f models.OrderFilter, w io.Writer) (int, error) {
	rows, err := s.store.ExportOrders(store.Elevate(ctx), f)
	if err != nil {
		return 0, apperrors.Internal(err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, err
	}
	for _, r := range rows {
		record := []string{
			r.OrderID,
			r.CustomerName,
			r.CustomerEmail,
			string(r.Status),
			r.TotalAmount.StringFixed(2),
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.ShippingAddress,
			strconv.Itoa(r.ItemCount),
		}
		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	entry := auditEntry(ctx, models.ActionOrderExport, models.ResourceOrder, "")
	entry.NewValue = strconv.Itoa(len(rows)) + " rows"
	s.audit.Log(ctx, entry)
	return len(rows), nil
}

// CreatePaymentIntent starts a card payment for one of the caller's pending orders.
func (s *OrderService) CreatePaymentIntent(ctx context.Context, orderID string, caller models.Identity) (*models.PaymentIntent, error) {
	if s.payments == nil {
		return nil, apperrors.Unavailable("Payments are not configured")
	}
	o, err := s.Get(ctx, orderID, caller)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderPending {
		return nil, apperrors.BadRequest("Only pending orders can be paid")
	}
	customer, err := s.store.GetUserByID(ctx, o.UserID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	intent, err := s.payments.CreatePaymentIntent(ctx, &o.Order, customer)
	if err != nil {
		return nil, apperrors.Wrap(http.StatusBadGateway, "Payment provider error", err)
	}
	return intent, nil
}

// Invoice renders the PDF invoice of an order.
func (s *OrderService) Invoice(ctx context.Context, orderID string, caller models.Identity) ([]byte, error) {
	if s.invoices == nil {
		return nil, apperrors.Unavailable("Invoice rendering is not configured")
	}
	o, err := s.Get(ctx, orderID, caller)
	if err != nil {
		return nil, err
	}
	customer, err := s.store.GetUserByID(ctx, o.UserID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	pdf, err := s.invoices.Render(ctx, o, customer)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("render invoice: %w", err))
	}
	return pdf, nil
}

// MarkPaid advances a pending order to processing once the payment provider
// confirms the charge. Redelivered confirmations for orders that already
// moved on are ignored.
func (s *OrderService) MarkPaid(ctx context.Context, orderID string) error {
	ctx = store.Elevate(ctx)
	_, err := s.transition(ctx, orderID, models.OrderProcessing, func(o *models.Order) error {
		if o.Status != models.OrderPending {
			s.log.WithFields(logrus.Fields{"order_id": orderID, "status": o.Status}).Info("payment confirmation ignored")
			return errSkipTransition
		}
		return nil
	})
	return err
}
