package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"byteshop/internal/models"

	"github.com/shopspring/decimal"
)

const orderColumns = `id, user_id, shipping_address, total_amount, status, created_at, updated_at`

func (q pgQueries) InsertOrder(ctx context.Context, o *models.Order) error {
	return q.get(ctx, o, `
		INSERT INTO orders (id, user_id, shipping_address, total_amount, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+orderColumns, o.ID, o.UserID, o.ShippingAddress, o.TotalAmount, o.Status)
}

func (q pgQueries) InsertOrderItems(ctx context.Context, items []models.OrderItem) error {
	for i := range items {
		it := &items[i]
		err := q.get(ctx, it, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, order_id, product_id, '' AS product_name, quantity, unit_price, subtotal, created_at`,
			it.ID, it.OrderID, it.ProductID, it.Quantity, it.UnitPrice)
		if err != nil {
			return err
		}
	}
	return nil
}

// RecalculateOrderTotal stores SUM(subtotal) of the persisted lines as the order total.
func (q pgQueries) RecalculateOrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := q.get(ctx, &total, `
		UPDATE orders SET
			total_amount = (SELECT COALESCE(SUM(subtotal), 0) FROM order_items WHERE order_id = $1),
			updated_at = now()
		WHERE id = $1
		RETURNING total_amount`, orderID)
	return total, err
}

func (q pgQueries) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := q.get(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (q pgQueries) LockOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := q.get(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &o, nil
}

func (q pgQueries) ListOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := q.sel(ctx, &items, `
		SELECT i.id, i.order_id, i.product_id, p.name AS product_name, i.quantity, i.unit_price, i.subtotal, i.created_at
		FROM order_items i
		JOIN products p ON p.id = i.product_id
		WHERE i.order_id = $1
		ORDER BY i.created_at, i.id`, orderID)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func orderWhere(f models.OrderFilter, a *args, alias string) string {
	conds := []string{}
	if f.UserID != "" {
		conds = append(conds, alias+"user_id = "+a.add(f.UserID))
	}
	if f.Status != "" {
		conds = append(conds, alias+"status = "+a.add(f.Status))
	}
	if f.StartDate != nil {
		conds = append(conds, alias+"created_at >= "+a.add(*f.StartDate))
	}
	if f.EndDate != nil {
		conds = append(conds, alias+"created_at <= "+a.add(*f.EndDate))
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// ListOrders lists orders newest first. Without a user filter it reads
// across customers and needs elevation.
func (q pgQueries) ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error) {
	if f.UserID == "" {
		if err := requireElevated(ctx); err != nil {
			return nil, 0, err
		}
	}
	var a args
	where := orderWhere(f, &a, "")

	var total int
	if err := q.get(ctx, &total, `SELECT COUNT(*) FROM orders`+where, a...); err != nil {
		return nil, 0, err
	}

	page, limit := models.NormalizePage(f.Page, f.Limit)
	query := `SELECT ` + orderColumns + ` FROM orders` + where +
		` ORDER BY created_at DESC, id LIMIT ` + a.add(limit) + ` OFFSET ` + a.add(models.Offset(page, limit))

	orders := []models.Order{}
	if err := q.sel(ctx, &orders, query, a...); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (q pgQueries) UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) (*models.Order, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	var o models.Order
	err := q.get(ctx, &o, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING `+orderColumns, id, from, to)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (q pgQueries) ExportOrders(ctx context.Context, f models.OrderFilter) ([]models.OrderExportRow, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	var a args
	where := orderWhere(f, &a, "o.")
	rows := []models.OrderExportRow{}
	err := q.sel(ctx, &rows, `
		SELECT o.id, u.full_name, u.email, o.status, o.total_amount, o.created_at, o.shipping_address,
		       (SELECT COUNT(*) FROM order_items i WHERE i.order_id = o.id) AS item_count
		FROM orders o
		JOIN users u ON u.id = o.user_id`+where+`
		ORDER BY o.created_at DESC`, a...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (q pgQueries) SalesDashboard(ctx context.Context, start, end *time.Time, limit int) ([]models.SalesDay, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	var a args
	conds := []string{"o.status <> 'cancelled'"}
	if start != nil {
		conds = append(conds, "o.created_at >= "+a.add(*start))
	}
	if end != nil {
		conds = append(conds, "o.created_at <= "+a.add(*end))
	}
	days := []models.SalesDay{}
	err := q.sel(ctx, &days, `
		SELECT date_trunc('day', o.created_at) AS sale_date,
		       COUNT(DISTINCT o.id) AS orders_count,
		       COALESCE(SUM(i.subtotal), 0) AS revenue,
		       COALESCE(SUM(i.quantity), 0) AS items_sold,
		       COALESCE(SUM(i.subtotal) / NULLIF(COUNT(DISTINCT o.id), 0), 0) AS average_order_value
		FROM orders o
		LEFT JOIN order_items i ON i.order_id = o.id
		WHERE `+strings.Join(conds, " AND ")+`
		GROUP BY 1
		ORDER BY 1 DESC
		LIMIT `+a.add(limit), a...)
	if err != nil {
		return nil, err
	}
	return days, nil
}

func (q pgQueries) CustomerHistory(ctx context.Context) ([]models.CustomerHistory, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	rows := []models.CustomerHistory{}
	err := q.sel(ctx, &rows, `
		SELECT u.id AS user_id, u.email, u.full_name,
		       COUNT(o.id) AS total_orders,
		       COALESCE(SUM(o.total_amount) FILTER (WHERE o.status <> 'cancelled'), 0) AS total_spent,
		       MAX(o.created_at) AS last_order_at
		FROM users u
		LEFT JOIN orders o ON o.user_id = u.id
		WHERE u.role = 'customer'
		GROUP BY u.id, u.email, u.full_name
		ORDER BY total_spent DESC, u.email`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
