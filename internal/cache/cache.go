package cache

import (
	"context"
	"encoding/json"

	"byteshop/internal/models"
)

// GetProduct reads a product from the cache. Any failure counts as a miss.
func (r *Redis) GetProduct(ctx context.Context, id string) (*models.Product, bool) {
	data, ok, err := r.Get(ctx, productKey(id))
	if err != nil || !ok {
		return nil, false
	}
	var p models.Product
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, false
	}
	return &p, true
}

func (r *Redis) SetProduct(ctx context.Context, p *models.Product) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, productKey(p.ID), data, ProductCacheTTL).Err(); err != nil {
		r.log.WithError(err).WithField("product_id", p.ID).Debug("product not cached")
	}
}

func (r *Redis) InvalidateProduct(ctx context.Context, id string) {
	if err := r.client.Del(ctx, productKey(id)).Err(); err != nil {
		r.log.WithError(err).WithField("product_id", id).Warn("product cache invalidation failed")
	}
}
