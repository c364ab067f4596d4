package order

import (
	"errors"
	"io"
	"net/http"

	"byteshop/internal/apperrors"
	"byteshop/internal/handlers"
	"byteshop/internal/middleware"
	"byteshop/internal/payment"
	"byteshop/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxWebhookBody = 65536

// WebhookVerifier authenticates a provider callback and extracts the paid order.
type WebhookVerifier interface {
	PaidOrder(payload []byte, signature string) (string, error)
}

type PaymentHandler struct {
	orders   *services.OrderService
	verifier WebhookVerifier
	log      logrus.FieldLogger
}

// NewPaymentHandler takes a nil verifier when payments are not configured.
func NewPaymentHandler(orders *services.OrderService, verifier WebhookVerifier, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{orders: orders, verifier: verifier, log: log}
}

// POST /api/orders/:id/payment
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	var uri orderURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	caller, _ := middleware.CurrentIdentity(c)
	intent, err := h.orders.CreatePaymentIntent(c.Request.Context(), uri.ID, caller)
	if err != nil {
		_ = c.Error(err)
		return
	}
	handlers.OK(c, intent)
}

// GET /api/orders/:id/invoice
func (h *PaymentHandler) Invoice(c *gin.Context) {
	var uri orderURI
	if !middleware.BindURI(c, &uri) {
		return
	}
	caller, _ := middleware.CurrentIdentity(c)
	pdf, err := h.orders.Invoice(c.Request.Context(), uri.ID, caller)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoice_`+uri.ID+`.pdf"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// POST /api/payments/webhook
func (h *PaymentHandler) Webhook(c *gin.Context) {
	if h.verifier == nil {
		_ = c.Error(apperrors.Unavailable("Payments are not configured"))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		_ = c.Error(apperrors.BadRequest("Unreadable webhook body"))
		return
	}

	orderID, err := h.verifier.PaidOrder(payload, c.GetHeader("Stripe-Signature"))
	if errors.Is(err, payment.ErrIgnoredEvent) {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if err != nil {
		h.log.WithError(err).Warn("webhook rejected")
		_ = c.Error(apperrors.BadRequest("Invalid webhook signature"))
		return
	}

	if err := h.orders.MarkPaid(c.Request.Context(), orderID); err != nil {
		_ = c.Error(err)
		return
	}
	h.log.WithField("order_id", orderID).Info("order paid")
	c.JSON(http.StatusOK, gin.H{"received": true})
}
