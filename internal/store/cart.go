package store

import (
	"context"

	"byteshop/internal/models"
)

const cartColumns = `id, user_id, product_id, quantity, created_at, updated_at`

func (q pgQueries) ListCartLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	err := q.sel(ctx, &lines, `
		SELECT c.id, c.user_id, c.product_id, c.quantity, c.created_at, c.updated_at,
		       p.name AS product_name, p.price, p.image_url, p.stock_quantity, p.is_active
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (q pgQueries) GetCartItem(ctx context.Context, userID, itemID string) (*models.CartItem, error) {
	var item models.CartItem
	err := q.get(ctx, &item, `SELECT `+cartColumns+` FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (q pgQueries) FindCartItem(ctx context.Context, userID, productID string) (*models.CartItem, error) {
	var item models.CartItem
	err := q.get(ctx, &item, `SELECT `+cartColumns+` FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (q pgQueries) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	return q.get(ctx, item, `
		INSERT INTO cart_items (id, user_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		RETURNING `+cartColumns, item.ID, item.UserID, item.ProductID, item.Quantity)
}

func (q pgQueries) UpdateCartItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	var item models.CartItem
	err := q.get(ctx, &item, `
		UPDATE cart_items SET quantity = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+cartColumns, itemID, userID, quantity)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (q pgQueries) DeleteCartItem(ctx context.Context, userID, itemID string) error {
	n, err := q.exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q pgQueries) ClearCart(ctx context.Context, userID string) error {
	_, err := q.exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}
