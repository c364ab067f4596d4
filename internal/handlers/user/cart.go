package user

import (
	"byteshop/internal/handlers"
	"byteshop/internal/middleware"
	"byteshop/internal/models"
	"byteshop/internal/services"

	"github.com/gin-gonic/gin"
)

type addToCartRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=100"`
}

type updateCartRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1,max=100"`
}

type cartItemURI struct {
	ItemID string `uri:"itemId" binding:"required,uuid"`
}

type CartHandler struct {
	cart *services.CartService
}

func NewCartHandler(cart *services.CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

// GET /api/cart
func (h *CartHandler) Get(c *gin.Context) {
	lines, err := h.cart.Get(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if lines == nil {
		lines = []models.CartLine{}
	}
	handlers.OK(c, lines)
}

// GET /api/cart/summary
func (h *CartHandler) Summary(c *gin.Context) {
	summary, err := h.cart.Summary(c.Request.Context(), c.GetString("user_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OK(c, summary)
}

// POST /api/cart
func (h *CartHandler) Add(c *gin.Context) {
	var req addToCartRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	item, _, err := h.cart.Add(c.Request.Context(), c.GetString("user_id"), req.ProductID, req.Quantity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.Created(c, "Product added to cart", item)
}

// PUT /api/cart/:itemId
func (h *CartHandler) Update(c *gin.Context) {
	var uri cartItemURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	var req updateCartRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	item, err := h.cart.Update(c.Request.Context(), c.GetString("user_id"), uri.ItemID, req.Quantity)
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OKMessage(c, "Cart item updated", item)
}

// DELETE /api/cart/:itemId
func (h *CartHandler) Remove(c *gin.Context) {
	var uri cartItemURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	if err := h.cart.Remove(c.Request.Context(), c.GetString("user_id"), uri.ItemID); err != nil {
		_ = c.Error(err)
		return
	}
	handlers.NoContent(c)
}

// DELETE /api/cart
func (h *CartHandler) Clear(c *gin.Context) {
	if err := h.cart.Clear(c.Request.Context(), c.GetString("user_id")); err != nil {
		_ = c.Error(err)
		return
	}
	handlers.NoContent(c)
}
