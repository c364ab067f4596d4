package store

import (
	"context"
	"errors"
	"strings"

	"byteshop/internal/models"

	"github.com/lib/pq"
)

const productColumns = `id, name, description, price, stock_quantity, category, image_url,
	specifications, is_active, created_at, updated_at`

func productWhere(f models.ProductFilter, a *args) string {
	conds := []string{}
	if !f.IncludeInactive {
		conds = append(conds, "is_active = true")
	}
	if f.Category != "" {
		conds = append(conds, "category = "+a.add(f.Category))
	}
	if f.MinPrice != nil {
		conds = append(conds, "price >= "+a.add(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price <= "+a.add(*f.MaxPrice))
	}
	if f.InStock {
		conds = append(conds, "stock_quantity > 0")
	}
	if strings.TrimSpace(f.Search) != "" {
		p := a.add(ContainsPattern(f.Search))
		conds = append(conds, "(name ILIKE "+p+` ESCAPE '\' OR description ILIKE `+p+` ESCAPE '\')`)
	}
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

func (q pgQueries) ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error) {
	var a args
	where := productWhere(f, &a)

	var total int
	if err := q.get(ctx, &total, `SELECT COUNT(*) FROM products`+where, a...); err != nil {
		return nil, 0, err
	}

	page, limit := models.NormalizePage(f.Page, f.Limit)
	query := `SELECT ` + productColumns + ` FROM products` + where +
		` ORDER BY created_at DESC, id LIMIT ` + a.add(limit) + ` OFFSET ` + a.add(models.Offset(page, limit))

	products := []models.Product{}
	if err := q.sel(ctx, &products, query, a...); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (q pgQueries) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := q.get(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProducts fetches the given ids; forUpdate takes row locks in id order.
func (q pgQueries) GetProducts(ctx context.Context, ids []string, forUpdate bool) ([]models.Product, error) {
	products := []models.Product{}
	if len(ids) == 0 {
		return products, nil
	}
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1::uuid[]) ORDER BY id`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	if err := q.sel(ctx, &products, query, pq.Array(ids)); err != nil {
		return nil, err
	}
	return products, nil
}

func (q pgQueries) CreateProduct(ctx context.Context, p *models.Product) error {
	if err := requireElevated(ctx); err != nil {
		return err
	}
	if p.Specifications == nil {
		p.Specifications = models.JSONMap{}
	}
	return q.get(ctx, p, `
		INSERT INTO products (id, name, description, price, stock_quantity, category, image_url, specifications, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Price, p.StockQuantity, p.Category, p.ImageURL, p.Specifications, p.IsActive)
}

func (q pgQueries) UpdateProduct(ctx context.Context, id string, u models.ProductUpdate) (*models.Product, error) {
	if err := requireElevated(ctx); err != nil {
		return nil, err
	}
	if u.Empty() {
		return q.GetProduct(ctx, id)
	}

	var a args
	sets := []string{}
	if u.Name != nil {
		sets = append(sets, "name = "+a.add(*u.Name))
	}
	if u.Description != nil {
		sets = append(sets, "description = "+a.add(*u.Description))
	}
	if u.Price != nil {
		sets = append(sets, "price = "+a.add(*u.Price))
	}
	if u.StockQuantity != nil {
		sets = append(sets, "stock_quantity = "+a.add(*u.StockQuantity))
	}
	if u.Category != nil {
		sets = append(sets, "category = "+a.add(*u.Category))
	}
	if u.ImageURL != nil {
		sets = append(sets, "image_url = "+a.add(*u.ImageURL))
	}
	if u.Specifications != nil {
		sets = append(sets, "specifications = "+a.add(u.Specifications))
	}
	if u.IsActive != nil {
		sets = append(sets, "is_active = "+a.add(*u.IsActive))
	}
	sets = append(sets, "updated_at = now()")

	var p models.Product
	query := `UPDATE products SET ` + strings.Join(sets, ", ") +
		` WHERE id = ` + a.add(id) + ` RETURNING ` + productColumns
	if err := q.get(ctx, &p, query, a...); err != nil {
		return nil, err
	}
	return &p, nil
}

func (q pgQueries) CheckAvailability(ctx context.Context, productID string, quantity int) (bool, error) {
	var ok bool
	err := q.get(ctx, &ok, `
		SELECT EXISTS (
			SELECT 1 FROM products
			WHERE id = $1 AND is_active = true AND stock_quantity >= $2
		)`, productID, quantity)
	return ok, err
}

// AdjustStock adds delta to the stock of a product. The update is guarded so
// stock never drops below zero.
func (q pgQueries) AdjustStock(ctx context.Context, productID string, delta int) (int, int, error) {
	var next int
	err := q.get(ctx, &next, `
		UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1 AND stock_quantity + $2 >= 0
		RETURNING stock_quantity`, productID, delta)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := q.GetProduct(ctx, productID); getErr != nil {
			return 0, 0, getErr
		}
		return 0, 0, ErrInsufficientStock
	}
	if err != nil {
		return 0, 0, err
	}
	return next - delta, next, nil
}
