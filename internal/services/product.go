package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"byteshop/internal/apperrors"
	"byteshop/internal/models"
	"byteshop/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	MaxImageSize         = 5 * 1024 * 1024
	defaultMovementLimit = 50
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

type CreateProductInput struct {
	Name           string
	Description    string
	Price          decimal.Decimal
	StockQuantity  int
	Category       models.Category
	ImageURL       string
	Specifications models.JSONMap
}

type StockAdjustment struct {
	Type     models.MovementType // restock adds Quantity, adjustment sets it
	Quantity int
	Reason   string
}

type ProductService struct {
	store     store.Store
	search    SearchIndex
	images    ImageStore
	cache     ProductCache
	audit     AuditLogger
	log       logrus.FieldLogger
	threshold int
}

type ProductDeps struct {
	Search            SearchIndex
	Images            ImageStore
	Cache             ProductCache
	Audit             AuditLogger
	LowStockThreshold int
}

func NewProductService(s store.Store, deps ProductDeps, log logrus.FieldLogger) *ProductService {
	svc := &ProductService{
		store:     s,
		search:    deps.Search,
		images:    deps.Images,
		cache:     deps.Cache,
		audit:     deps.Audit,
		log:       log,
		threshold: deps.LowStockThreshold,
	}
	if svc.cache == nil {
		svc.cache = Nop{}
	}
	if svc.audit == nil {
		svc.audit = Nop{}
	}
	if svc.threshold <= 0 {
		svc.threshold = 10
	}
	return svc
}

func (s *ProductService) LowStockThreshold() int { return s.threshold }

func (s *ProductService) List(ctx context.Context, f models.ProductFilter) ([]models.Product, models.Pagination, error) {
	f.Page, f.Limit = models.NormalizePage(f.Page, f.Limit)
	products, total, err := s.store.ListProducts(ctx, f)
	if err != nil {
		return nil, models.Pagination{}, apperrors.Internal(err)
	}
	return products, models.NewPagination(f.Page, f.Limit, total), nil
}

// Get returns an active product. Admins (includeInactive) also see soft-deleted ones.
func (s *ProductService) Get(ctx context.Context, id string, includeInactive bool) (*models.Product, error) {
	p, ok := s.cache.GetProduct(ctx, id)
	if !ok {
		var err error
		p, err = s.store.GetProduct(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("Product not found")
		}
		if err != nil {
			return nil, apperrors.Internal(err)
		}
		s.cache.SetProduct(ctx, p)
	}
	if !p.IsActive && !includeInactive {
		return nil, apperrors.NotFound("Product not found")
	}
	return p, nil
}

func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (*models.Product, error) {
	p := &models.Product{
		ID:             uuid.NewString(),
		Name:           strings.TrimSpace(in.Name),
		Description:    strings.TrimSpace(in.Description),
		Price:          in.Price.Round(2),
		StockQuantity:  in.StockQuantity,
		Category:       in.Category,
		ImageURL:       in.ImageURL,
		Specifications: in.Specifications,
		IsActive:       true,
	}
	if err := s.store.CreateProduct(store.Elevate(ctx), p); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("create product: %w", err))
	}

	entry := auditEntry(ctx, models.ActionProductCreate, models.ResourceProduct, p.ID)
	entry.NewValue = toJSON(p)
	s.audit.Log(ctx, entry)
	s.reindex(ctx, p)
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, id string, u models.ProductUpdate) (*models.Product, error) {
	before, err := s.store.GetProduct(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("Product not found")
	}
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if u.Price != nil {
		rounded := u.Price.Round(2)
		u.Price = &rounded
	}

	p, err := s.store.UpdateProduct(store.Elevate(ctx), id, u)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("update product: %w", err))
	}
	s.cache.InvalidateProduct(ctx, id)

	entry := auditEntry(ctx, models.ActionProductUpdate, models.ResourceProduct, id)
	entry.OldValue = toJSON(before)
	entry.NewValue = toJSON(p)
	s.audit.Log(ctx, entry)
	s.reindex(ctx, p)
	return p, nil
}

// Delete soft-deletes a product by clearing is_active.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	inactive := false
	_, err := s.store.UpdateProduct(store.Elevate(ctx), id, models.ProductUpdate{IsActive: &inactive})
	if errors.Is(err, store.ErrNotFound) {
		return apperrors.NotFound("Product not found")
	}
	if err != nil {
		return apperrors.Internal(err)
	}
	s.cache.InvalidateProduct(ctx, id)
	s.audit.Log(ctx, auditEntry(ctx, models.ActionProductDelete, models.ResourceProduct, id))

	if s.search != nil {
		if err := s.search.RemoveProduct(ctx, id); err != nil {
			s.log.WithError(err).WithField("product_id", id).Warn("search index removal failed")
		}
	}
	return nil
}

// CheckAvailability is true iff the product exists, is active and has enough stock.
func (s *ProductService) CheckAvailability(ctx context.Context, productID string, quantity int) (bool, error) {
	ok, err := s.store.CheckAvailability(ctx, productID, quantity)
	if err != nil {
		return false, apperrors.Internal(fmt.Errorf("check availability: %w", err))
	}
	return ok, nil
}

// Search queries the full-text index and falls back to the ILIKE listing
// when no index is configured or it fails.
func (s *ProductService) Search(ctx context.Context, query string, limit int) ([]models.Product, error) {
	_, limit = models.NormalizePage(1, limit)
	if s.search != nil {
		ids, err := s.search.Search(ctx, query, limit)
		if err == nil {
			return s.hydrate(ctx, ids)
		}
		s.log.WithError(err).Warn("search index query failed, falling back to SQL")
	}
	products, _, err := s.store.ListProducts(ctx, models.ProductFilter{Search: query, Page: 1, Limit: limit})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return products, nil
}

// hydrate loads active products for ids, keeping the index ranking.
func (s *ProductService) hydrate(ctx context.Context, ids []string) ([]models.Product, error) {
	found, err := s.store.GetProducts(ctx, ids, false)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	byID := make(map[string]models.Product, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *ProductService) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 || limit > 20 {
		limit = 10
	}
	if s.search != nil {
		names, err := s.search.Suggest(ctx, prefix, limit)
		if err == nil {
			return names, nil
		}
		s.log.WithError(err).Warn("search suggestions failed, falling back to SQL")
	}
	products, _, err := s.store.ListProducts(ctx, models.ProductFilter{Search: prefix, Page: 1, Limit: limit})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names, nil
}

func (s *ProductService) reindex(ctx context.Context, p *models.Product) {
	if s.search == nil {
		return
	}
	if err := s.search.IndexProduct(ctx, p); err != nil {
		s.log.WithError(err).WithField("product_id", p.ID).Warn("search indexing failed")
	}
}

// Reindex pushes every active product to the search index.
func (s *ProductService) Reindex(ctx context.Context) (int, error) {
	if s.search == nil {
		return 0, nil
	}
	indexed := 0
	for page := 1; ; page++ {
		products, total, err := s.store.ListProducts(ctx, models.ProductFilter{Page: page, Limit: models.MaxLimit})
		if err != nil {
			return indexed, err
		}
		for i := range products {
			if err := s.search.IndexProduct(ctx, &products[i]); err != nil {
				return indexed, err
			}
			indexed++
		}
		if page*models.MaxLimit >= total {
			return indexed, nil
		}
	}
}

// ---- images

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func IsValidImageType(contentType string) bool {
	return allowedImageTypes[strings.ToLower(contentType)]
}

// ImageObjectPath returns "<category>/<unix millis>_<sanitized name>".
func ImageObjectPath(category models.Category, filename string, now time.Time) string {
	name := unsafeFileChars.ReplaceAllString(path.Base(filename), "_")
	return fmt.Sprintf("%s/%d_%s", category, now.UnixMilli(), strings.ToLower(name))
}

// UploadImage stores a new product image and points the product at it. The
// previous image is removed when it lives in the same store.
func (s *ProductService) UploadImage(ctx context.Context, productID, filename, contentType string, size int64, r io.Reader) (*models.Product, error) {
	if s.images == nil {
		return nil, apperrors.Unavailable("Image storage is not configured")
	}
	if !IsValidImageType(contentType) {
		return nil, apperrors.BadRequest("Invalid image type. Allowed: jpeg, png, webp, gif")
	}
	if size <= 0 || size > MaxImageSize {
		return nil, apperrors.BadRequest("Image must be at most 5MB")
	}

	p, err := s.Get(ctx, productID, true)
	if err != nil {
		return nil, err
	}

	url, err := s.images.Upload(ctx, ImageObjectPath(p.Category, filename, time.Now()), r, size, contentType)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("upload image: %w", err))
	}

	updated, err := s.Update(ctx, productID, models.ProductUpdate{ImageURL: &url})
	if err != nil {
		return nil, err
	}

	if old := s.images.PathFromURL(p.ImageURL); old != "" {
		if err := s.images.Delete(ctx, old); err != nil {
			s.log.WithError(err).WithField("path", old).Warn("previous image not removed")
		}
	}
	return updated, nil
}

func (s *ProductService) ListImages(ctx context.Context, category models.Category) ([]models.StoredImage, error) {
	if s.images == nil {
		return nil, apperrors.Unavailable("Image storage is not configured")
	}
	images, err := s.images.List(ctx, string(category)+"/")
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return images, nil
}

// ---- inventory

// AdjustStock applies an admin stock change and records the movement.
func (s *ProductService) AdjustStock(ctx context.Context, productID string, adj StockAdjustment, actorID string) (*models.StockMovement, error) {
	var movement *models.StockMovement
	err := s.store.InTx(ctx, func(q store.Queries) error {
		products, err := q.GetProducts(ctx, []string{productID}, true)
		if err != nil {
			return err
		}
		if len(products) == 0 {
			return apperrors.NotFound("Product not found")
		}

		delta := adj.Quantity
		switch adj.Type {
		case models.MovementRestock:
			if adj.Quantity <= 0 {
				return apperrors.BadRequest("Restock quantity must be positive")
			}
		case models.MovementAdjustment:
			delta = adj.Quantity - products[0].StockQuantity
		default:
			return apperrors.BadRequest("Unsupported stock movement type %q", adj.Type)
		}

		prev, next, err := q.AdjustStock(ctx, productID, delta)
		if errors.Is(err, store.ErrInsufficientStock) {
			return apperrors.BadRequest("Stock cannot be negative")
		}
		if err != nil {
			return err
		}

		movement = &models.StockMovement{
			ID:        uuid.NewString(),
			ProductID: productID,
			Type:      adj.Type,
			Quantity:  delta,
			PrevStock: prev,
			NewStock:  next,
			Reason:    adj.Reason,
			UserID:    actorID,
		}
		return q.InsertStockMovement(ctx, movement)
	})
	if err != nil {
		return nil, classify(err)
	}
	s.cache.InvalidateProduct(ctx, productID)

	entry := auditEntry(ctx, models.ActionStockAdjust, models.ResourceProduct, productID)
	entry.OldValue = fmt.Sprint(movement.PrevStock)
	entry.NewValue = fmt.Sprint(movement.NewStock)
	s.audit.Log(ctx, entry)
	return movement, nil
}

func (s *ProductService) StockMovements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error) {
	if limit <= 0 || limit > models.MaxLimit {
		limit = defaultMovementLimit
	}
	movements, err := s.store.ListStockMovements(ctx, productID, limit)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return movements, nil
}

func (s *ProductService) InventoryReport(ctx context.Context) ([]models.InventoryRow, error) {
	rows, err := s.store.InventoryReport(store.Elevate(ctx))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return rows, nil
}

func (s *ProductService) LowStock(ctx context.Context) ([]models.Product, error) {
	products, err := s.store.LowStockProducts(ctx, s.threshold)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return products, nil
}

func (s *ProductService) CategorySummary(ctx context.Context) ([]models.CategorySummary, error) {
	rows, err := s.store.CategorySummary(store.Elevate(ctx))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return rows, nil
}

// classify passes application errors through and maps the rest to 500.
func classify(err error) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Internal(err)
}
