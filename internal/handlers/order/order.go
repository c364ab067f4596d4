package order

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"byteshop/internal/handlers"
	"byteshop/internal/middleware"
	"byteshop/internal/models"
	"byteshop/internal/services"
	"byteshop/internal/validation"

	"github.com/gin-gonic/gin"
)

type orderLineRequest struct {
	ProductID string `json:"product_id" binding:"required,uuid"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=100"`
}

type createOrderRequest struct {
	ShippingAddress string             `json:"shipping_address" binding:"required,min=10,max=500,notblank"`
	Items           []orderLineRequest `json:"items" binding:"required,min=1,dive"`
	ClearCart       bool               `json:"clear_cart"`
}

type statusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required,oneof=pending processing shipped delivered cancelled"`
}

type orderURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type orderQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Status    string `form:"status" binding:"omitempty,oneof=pending processing shipped delivered cancelled"`
	UserID    string `form:"user_id" binding:"omitempty,uuid"`
	StartDate string `form:"start_date" binding:"omitempty,iso8601"`
	EndDate   string `form:"end_date" binding:"omitempty,iso8601"`
}

func (q orderQuery) filter() models.OrderFilter {
	f := models.OrderFilter{
		UserID: q.UserID,
		Status: models.OrderStatus(q.Status),
		Page:   q.Page,
		Limit:  q.Limit,
	}
	f.StartDate, f.EndDate = dateRange(q.StartDate, q.EndDate)
	return f
}

// dateRange parses validated bounds. A date-only end covers that whole day.
func dateRange(start, end string) (*time.Time, *time.Time) {
	var from, to *time.Time
	if t, err := validation.ParseDate(start); err == nil {
		from = &t
	}
	if t, err := validation.ParseDate(end); err == nil {
		if len(end) == len("2006-01-02") {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		to = &t
	}
	return from, to
}

type OrderHandler struct {
	orders *services.OrderService
}

func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// POST /api/orders
func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	lines := make([]models.OrderLine, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, models.OrderLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	order, err := h.orders.Create(c.Request.Context(), c.GetString("user_id"), services.CreateOrderInput{
		ShippingAddress: req.ShippingAddress,
		Items:           lines,
		ClearCart:       req.ClearCart,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.Created(c, "Order created successfully", order)
}

// GET /api/orders
func (h *OrderHandler) ListMine(c *gin.Context) {
	var q orderQuery
	if !middleware.BindQuery(c, &q) {
		return
	}
	orders, page, err := h.orders.ListMine(c.Request.Context(), c.GetString("user_id"), q.filter())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	handlers.Paginated(c, orders, page)
}

// GET /api/orders/all
func (h *OrderHandler) ListAll(c *gin.Context) {
	var q orderQuery
	if !middleware.BindQuery(c, &q) {
		return
	}
	orders, page, err := h.orders.ListAll(c.Request.Context(), q.filter())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	handlers.Paginated(c, orders, page)
}

// GET /api/orders/:id
func (h *OrderHandler) Get(c *gin.Context) {
	var uri orderURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	caller, _ := middleware.CurrentIdentity(c)
	order, err := h.orders.Get(c.Request.Context(), uri.ID, caller)
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OK(c, order)
}

// PATCH /api/orders/:id/status
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	var uri orderURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	var req statusRequest
	if !middleware.BindJSON(c, &req) {
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), uri.ID, req.Status)
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OKMessage(c, "Order status updated successfully", order)
}

type salesQuery struct {
	StartDate string `form:"start_date" binding:"omitempty,iso8601"`
	EndDate   string `form:"end_date" binding:"omitempty,iso8601"`
}

// GET /api/orders/dashboard/sales
func (h *OrderHandler) SalesDashboard(c *gin.Context) {
	var q salesQuery
	if !middleware.BindQuery(c, &q) {
		return
	}
	start, end := dateRange(q.StartDate, q.EndDate)
	days, err := h.orders.SalesDashboard(c.Request.Context(), start, end)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if days == nil {
		days = []models.SalesDay{}
	}
	handlers.OK(c, days)
}

// GET /api/orders/dashboard/customers
func (h *OrderHandler) CustomerHistory(c *gin.Context) {
	rows, err := h.orders.CustomerHistory(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	if rows == nil {
		rows = []models.CustomerHistory{}
	}
	handlers.OK(c, rows)
}

// GET /api/orders/export
func (h *OrderHandler) Export(c *gin.Context) {
	var q orderQuery
	if !middleware.BindQuery(c, &q) {
		return
	}
	var buf bytes.Buffer
	if _, err := h.orders.ExportCSV(c.Request.Context(), q.filter(), &buf); err != nil {
		_ = c.Error(err)
		return
	}
	filename := fmt.Sprintf("orders_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
