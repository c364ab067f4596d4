package product

import (
	"byteshop/internal/handlers"
	"byteshop/internal/middleware"
	"byteshop/internal/models"
	"byteshop/internal/services"

	"github.com/gin-gonic/gin"
)

type stockRequest struct {
	Type     models.MovementType `json:"type" binding:"required,oneof=restock adjustment"`
	Quantity *int                `json:"quantity" binding:"required,min=0"`
	Reason   string              `json:"reason" binding:"max=500"`
}

type movementsQuery struct {
	ProductID string `form:"product_id" binding:"omitempty,uuid"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// PATCH /api/products/:id/stock
func (h *ProductHandler) AdjustStock(c *gin.Context) {
	var uri productURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	var req stockRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	movement, err := h.products.AdjustStock(c.Request.Context(), uri.ID, services.StockAdjustment{
		Type:     req.Type,
		Quantity: *req.Quantity,
		Reason:   req.Reason,
	}, c.GetString("user_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OKMessage(c, "Stock updated", movement)
}

// GET /api/products/inventory/movements
func (h *ProductHandler) Movements(c *gin.Context) {
	var q movementsQuery
	if !middleware.BindQuery(c, &q) {
		return
	}
	movements, err := h.products.StockMovements(c.Request.Context(), q.ProductID, q.Limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if movements == nil {
		movements = []models.StockMovement{}
	}
	handlers.OK(c, movements)
}

// GET /api/products/inventory/stats
func (h *ProductHandler) InventoryStats(c *gin.Context) {
	rows, err := h.products.InventoryReport(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if rows == nil {
		rows = []models.InventoryRow{}
	}
	handlers.OK(c, rows)
}

// GET /api/products/inventory/low-stock
func (h *ProductHandler) LowStock(c *gin.Context) {
	products, err := h.products.LowStock(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	handlers.OK(c, gin.H{
		"threshold": h.products.LowStockThreshold(),
		"products":  products,
	})
}

// GET /api/products/categories/summary
func (h *ProductHandler) CategorySummary(c *gin.Context) {
	rows, err := h.products.CategorySummary(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if rows == nil {
		rows = []models.CategorySummary{}
	}
	handlers.OK(c, rows)
}
