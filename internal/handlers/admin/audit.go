package admin

import (
	"context"

	"byteshop/internal/apperrors"
	"byteshop/internal/audit"
	"byteshop/internal/handlers"
	"byteshop/internal/middleware"
	"byteshop/internal/models"
	"byteshop/internal/services"

	"github.com/gin-gonic/gin"
)

type AuditLister interface {
	List(ctx context.Context, f audit.Filter) ([]models.AuditLog, error)
}

type auditQuery struct {
	Action string `form:"action" binding:"omitempty,max=64"`
	UserID string `form:"user_id" binding:"omitempty,uuid"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

type AdminHandler struct {
	audit    AuditLister
	products *services.ProductService
}

// NewAdminHandler takes a nil lister when the audit store is not configured.
func NewAdminHandler(lister AuditLister, products *services.ProductService) *AdminHandler {
	return &AdminHandler{audit: lister, products: products}
}

// GET /api/admin/audit-logs
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	if h.audit == nil {
		_ = c.Error(apperrors.Unavailable("Audit log is not configured"))
		return
	}
	var q auditQuery
	if !middleware.BindQuery(c, &q) {
		return
	}
	logs, err := h.audit.List(c.Request.Context(), audit.Filter{Action: q.Action, UserID: q.UserID, Limit: q.Limit})
	if err != nil {
		_ = c.Error(apperrors.Internal(err))
		return
	}
	handlers.OK(c, logs)
}

// POST /api/admin/search/reindex
func (h *AdminHandler) Reindex(c *gin.Context) {
	n, err := h.products.Reindex(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OKMessage(c, "Search index rebuilt", gin.H{"indexed": n})
}
