package store

import (
	"context"

	"byteshop/internal/models"
)

func (q pgQueries) InsertStockMovement(ctx context.Context, m *models.StockMovement) error {
	return q.get(ctx, m, `
		INSERT INTO stock_movements (id, product_id, order_id, type, quantity, prev_stock, new_stock, reason, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, product_id, order_id, type, quantity, prev_stock, new_stock, reason, user_id, created_at`,
		m.ID, m.ProductID, m.OrderID, m.Type, m.Quantity, m.PrevStock, m.NewStock, m.Reason, m.UserID)
}

// ListStockMovements returns the latest movements, for one product when productID is set.
func (q pgQueries) ListStockMovements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	var a args
	where := ""
	if productID != "" {
		where = " WHERE product_id = " + a.add(productID)
	}
	movements := []models.StockMovement{}
	err := q.sel(ctx, &movements, `
		SELECT id, product_id, order_id, type, quantity, prev_stock, new_stock, reason, user_id, created_at
		FROM stock_movements`+where+`
		ORDER BY created_at DESC
		LIMIT `+a.add(limit), a...)
	if err != nil {
		return nil, err
	}
	return movements, nil
}

func (q pgQueries) InventoryReport(ctx context.Context) ([]models.InventoryRow, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	rows := []models.InventoryRow{}
	err := q.sel(ctx, &rows, `
		SELECT p.id AS product_id, p.name, p.category, p.price, p.stock_quantity, p.is_active,
		       COALESCE(SUM(i.quantity) FILTER (WHERE o.status <> 'cancelled'), 0) AS total_sold,
		       COALESCE(SUM(i.subtotal) FILTER (WHERE o.status <> 'cancelled'), 0) AS revenue
		FROM products p
		LEFT JOIN order_items i ON i.product_id = p.id
		LEFT JOIN orders o ON o.id = i.order_id
		GROUP BY p.id
		ORDER BY total_sold DESC, p.name`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (q pgQueries) LowStockProducts(ctx context.Context, threshold int) ([]models.Product, error) {
	products := []models.Product{}
	err := q.sel(ctx, &products, `
		SELECT `+productColumns+` FROM products
		WHERE is_active = true AND stock_quantity <= $1
		ORDER BY stock_quantity, name`, threshold)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (q pgQueries) CategorySummary(ctx context.Context) ([]models.CategorySummary, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	rows := []models.CategorySummary{}
	err := q.sel(ctx, &rows, `
		SELECT category,
		       COUNT(*) AS product_count,
		       COALESCE(SUM(stock_quantity), 0) AS total_stock,
		       ROUND(AVG(price), 2) AS average_price,
		       COALESCE(SUM(price * stock_quantity), 0) AS inventory_value
		FROM products
		WHERE is_active = true
		GROUP BY category
		ORDER BY category`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
