package product

import (
	"net/http"

	"byteshop/internal/apperrors"
	"byteshop/internal/handlers"
	"byteshop/internal/middleware"
	"byteshop/internal/models"
	"byteshop/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createProductRequest struct {
	Name           string           `json:"name" binding:"required,min=3,max=200,notblank"`
	Description    string           `json:"description" binding:"required,min=10,max=2000,notblank"`
	Price          *decimal.Decimal `json:"price" binding:"required"`
	StockQuantity  *int             `json:"stock_quantity" binding:"required,min=0"`
	Category       models.Category  `json:"category" binding:"required,oneof=laptops smartphones tablets accessories components peripherals"`
	ImageURL       string           `json:"image_url" binding:"omitempty,url"`
	Specifications models.JSONMap   `json:"specifications"`
}

type updateProductRequest struct {
	Name           *string          `json:"name" binding:"omitempty,min=3,max=200,notblank"`
	Description    *string          `json:"description" binding:"omitempty,min=10,max=2000,notblank"`
	Price          *decimal.Decimal `json:"price"`
	StockQuantity  *int             `json:"stock_quantity" binding:"omitempty,min=0"`
	Category       *models.Category `json:"category" binding:"omitempty,oneof=laptops smartphones tablets accessories components peripherals"`
	ImageURL       *string          `json:"image_url" binding:"omitempty,url"`
	Specifications models.JSONMap   `json:"specifications"`
	IsActive       *bool            `json:"is_active"`
}

func (r updateProductRequest) update() models.ProductUpdate {
	return models.ProductUpdate{
		Name:           r.Name,
		Description:    r.Description,
		Price:          r.Price,
		StockQuantity:  r.StockQuantity,
		Category:       r.Category,
		ImageURL:       r.ImageURL,
		Specifications: r.Specifications,
		IsActive:       r.IsActive,
	}
}

type productQuery struct {
	Page            int      `form:"page" binding:"omitempty,min=1"`
	Limit           int      `form:"limit" binding:"omitempty,min=1,max=100"`
	Category        string   `form:"category" binding:"omitempty,oneof=laptops smartphones tablets accessories components peripherals"`
	MinPrice        *float64 `form:"min_price" binding:"omitempty,gte=0"`
	MaxPrice        *float64 `form:"max_price" binding:"omitempty,gte=0"`
	Search          string   `form:"search" binding:"omitempty,min=1,max=100"`
	InStock         bool     `form:"in_stock"`
	IncludeInactive bool     `form:"include_inactive"`
}

type searchQuery struct {
	Q     string `form:"q" binding:"required,min=1,max=100,notblank"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

type productURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// positivePrice rejects zero and negative prices the validator cannot see
// through the decimal type.
func positivePrice(c *gin.Context, price *decimal.Decimal) bool {
	if price != nil && !price.IsPositive() {
		_ = c.Error(apperrors.New(http.StatusBadRequest, "Validation error: price: must be greater than 0"))
		return false
	}
	return true
}

type ProductHandler struct {
	products *services.ProductService
}

func NewProductHandler(products *services.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// GET /api/products
func (h *ProductHandler) List(c *gin.Context) {
	var q productQuery
	if !middleware.BindQuery(c, &q) {
		return
	}
	f := models.ProductFilter{
		Category: models.Category(q.Category),
		Search:   q.Search,
		InStock:  q.InStock,
		Page:     q.Page,
		Limit:    q.Limit,
	}
	if q.MinPrice != nil {
		v := decimal.NewFromFloat(*q.MinPrice)
		f.MinPrice = &v
	}
	if q.MaxPrice != nil {
		v := decimal.NewFromFloat(*q.MaxPrice)
		f.MaxPrice = &v
	}
	if id, ok := middleware.CurrentIdentity(c); ok && id.IsAdmin() {
		f.IncludeInactive = q.IncludeInactive
	}

	products, page, err := h.products.List(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	handlers.Paginated(c, products, page)
}

// GET /api/products/search
func (h *ProductHandler) Search(c *gin.Context) {
	var q searchQuery
	if !middleware.BindQuery(c, &q) {
		return
	}
	products, err := h.products.Search(c.Request.Context(), q.Q, q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	handlers.OK(c, products)
}

// GET /api/products/suggestions
func (h *ProductHandler) Suggestions(c *gin.Context) {
	var q searchQuery
	if !middleware.BindQuery(c, &q) {
		return
	}
	names, err := h.products.Suggest(c.Request.Context(), q.Q, q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if names == nil {
		names = []string{}
	}
	handlers.OK(c, names)
}

// GET /api/products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	var uri productURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	id, _ := middleware.CurrentIdentity(c)
	p, err := h.products.Get(c.Request.Context(), uri.ID, id.IsAdmin())
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OK(c, p)
}

// POST /api/products
func (h *ProductHandler) Create(c *gin.Context) {
	var req createProductRequest
	if !middleware.BindJSON(c, &req) || !positivePrice(c, req.Price) {
		return
	}
	p, err := h.products.Create(c.Request.Context(), services.CreateProductInput{
		Name:           req.Name,
		Description:    req.Description,
		Price:          *req.Price,
		StockQuantity:  *req.StockQuantity,
		Category:       req.Category,
		ImageURL:       req.ImageURL,
		Specifications: req.Specifications,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.Created(c, "Product created successfully", p)
}

// PUT /api/products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	var uri productURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	var req updateProductRequest
	if !middleware.BindJSON(c, &req) || !positivePrice(c, req.Price) {
		return
	}
	u := req.update()
	if u.Empty() {
		_ = c.Error(apperrors.BadRequest("No fields to update"))
		return
	}
	p, err := h.products.Update(c.Request.Context(), uri.ID, u)
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OKMessage(c, "Product updated successfully", p)
}

// DELETE /api/products/:id
func (h *ProductHandler) Delete(c *gin.Context) {
	var uri productURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	if err := h.products.Delete(c.Request.Context(), uri.ID); err != nil {
		_ = c.Error(err)
		return
	}
	handlers.NoContent(c)
}
