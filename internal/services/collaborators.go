package services

import (
	"context"
	"io"
	"time"

	"byteshop/internal/models"
)

// AuditLogger records security-relevant actions. Implementations must not block.
type AuditLogger interface {
	Log(ctx context.Context, entry models.AuditLog)
}

// EventPublisher pushes realtime events to a user's channel.
type EventPublisher interface {
	Publish(ctx context.Context, userID string, evt models.Event) error
}

// Notifier sends customer and operator emails.
type Notifier interface {
	OrderConfirmation(ctx context.Context, to *models.User, order *models.OrderWithItems) error
	OrderStatusChanged(ctx context.Context, to *models.User, order *models.Order) error
	LowStockAlert(ctx context.Context, products []models.Product) error
}

// SearchIndex is the full-text product index.
type SearchIndex interface {
	IndexProduct(ctx context.Context, p *models.Product) error
	RemoveProduct(ctx context.Context, id string) error
	// Search returns matching product ids, best match first.
	Search(ctx context.Context, query string, limit int) ([]string, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
}

// ImageStore keeps product images in object storage.
type ImageStore interface {
	Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, objectPath string) error
	List(ctx context.Context, prefix string) ([]models.StoredImage, error)
	// PathFromURL returns the object path for a URL this store produced, or "".
	PathFromURL(url string) string
}

type PaymentGateway interface {
	CreatePaymentIntent(ctx context.Context, order *models.Order, customer *models.User) (*models.PaymentIntent, error)
}

type InvoiceRenderer interface {
	Render(ctx context.Context, order *models.OrderWithItems, customer *models.User) ([]byte, error)
}

// RoleCache caches user roles for the authentication middleware.
type RoleCache interface {
	GetRole(ctx context.Context, userID string) (models.Role, bool)
	SetRole(ctx context.Context, userID string, role models.Role)
	InvalidateRole(ctx context.Context, userID string)
}

// TokenRevoker tracks logged-out token ids.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) bool
}

// ProductCache caches single-product reads.
type ProductCache interface {
	GetProduct(ctx context.Context, id string) (*models.Product, bool)
	SetProduct(ctx context.Context, p *models.Product)
	InvalidateProduct(ctx context.Context, id string)
}

// Nop implements every optional collaborator by doing nothing. It stands in
// for backends that are not configured.
type Nop struct{}

func (Nop) Log(context.Context, models.AuditLog)                {}
func (Nop) Publish(context.Context, string, models.Event) error { return nil }
func (Nop) OrderConfirmation(context.Context, *models.User, *models.OrderWithItems) error {
	return nil
}
func (Nop) OrderStatusChanged(context.Context, *models.User, *models.Order) error { return nil }
func (Nop) LowStockAlert(context.Context, []models.Product) error                 { return nil }
func (Nop) GetRole(context.Context, string) (models.Role, bool)                   { return "", false }
func (Nop) SetRole(context.Context, string, models.Role)                          {}
func (Nop) InvalidateRole(context.Context, string)                                {}
func (Nop) Revoke(context.Context, string, time.Duration) error                   { return nil }
func (Nop) IsRevoked(context.Context, string) bool                                { return false }
func (Nop) GetProduct(context.Context, string) (*models.Product, bool)            { return nil, false }
func (Nop) SetProduct(context.Context, *models.Product)                           {}
func (Nop) InvalidateProduct(context.Context, string)                             {}
