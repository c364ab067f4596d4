// Package store is the data-access layer: every read and write the services
// perform goes through Queries, and multi-step workflows run inside InTx.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"byteshop/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("store: not found")
	ErrInsufficientStock = errors.New("store: insufficient stock")
	ErrDuplicate         = errors.New("store: duplicate key")
	ErrNotElevated       = errors.New("store: operation requires elevated access")
	// ErrConflict reports a guarded write whose precondition no longer holds.
	ErrConflict = errors.New("store: row changed concurrently")
)

type Queries interface {
	// users
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserProfile(ctx context.Context, id, fullName string) (*models.User, error)
	UpdateUserRole(ctx context.Context, id string, role models.Role) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)

	// products
	ListProducts(ctx context.Context, f models.ProductFilter) ([]models.Product, int, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	GetProducts(ctx context.Context, ids []string, forUpdate bool) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, id string, u models.ProductUpdate) (*models.Product, error)
	CheckAvailability(ctx context.Context, productID string, quantity int) (bool, error)
	AdjustStock(ctx context.Context, productID string, delta int) (prev, next int, err error)

	// inventory
	InsertStockMovement(ctx context.Context, m *models.StockMovement) error
	ListStockMovements(ctx context.Context, productID string, limit int) ([]models.StockMovement, error)
	InventoryReport(ctx context.Context) ([]models.InventoryRow, error)
	LowStockProducts(ctx context.Context, threshold int) ([]models.Product, error)
	CategorySummary(ctx context.Context) ([]models.CategorySummary, error)

	// cart
	ListCartLines(ctx context.Context, userID string) ([]models.CartLine, error)
	GetCartItem(ctx context.Context, userID, itemID string) (*models.CartItem, error)
	FindCartItem(ctx context.Context, userID, productID string) (*models.CartItem, error)
	InsertCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error)
	DeleteCartItem(ctx context.Context, userID, itemID string) error
	ClearCart(ctx context.Context, userID string) error

	// orders
	InsertOrder(ctx context.Context, o *models.Order) error
	InsertOrderItems(ctx context.Context, items []models.OrderItem) error
	RecalculateOrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// LockOrder reads the order and holds its row lock until the transaction ends.
	LockOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
	ListOrders(ctx context.Context, f models.OrderFilter) ([]models.Order, int, error)
	// UpdateOrderStatus moves the order from one status to another and fails
	// with ErrConflict when the order is no longer in from.
	UpdateOrderStatus(ctx context.Context, id string, from, to models.OrderStatus) (*models.Order, error)
	SalesDashboard(ctx context.Context, start, end *time.Time, limit int) ([]models.SalesDay, error)
	CustomerHistory(ctx context.Context) ([]models.CustomerHistory, error)
	ExportOrders(ctx context.Context, f models.OrderFilter) ([]models.OrderExportRow, error)
}

type Store interface {
	Queries
	// InTx runs fn in a single transaction; a non-nil error rolls it back.
	InTx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
}

type elevatedKey struct{}

// Elevate marks ctx for privileged operations: role changes, user listing,
// catalog writes, cross-user order reads and reports.
func Elevate(ctx context.Context) context.Context {
	return context.WithValue(ctx, elevatedKey{}, true)
}

func IsElevated(ctx context.Context) bool {
	v, _ := ctx.Value(elevatedKey{}).(bool)
	return v
}

func requireElevated(ctx context.Context) error {
	if !IsElevated(ctx) {
		return ErrNotElevated
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike trims term and escapes LIKE metacharacters for use with ESCAPE '\'.
func EscapeLike(term string) string {
	return likeEscaper.Replace(strings.TrimSpace(term))
}

// ContainsPattern builds a substring ILIKE pattern from a user term.
func ContainsPattern(term string) string {
	return "%" + EscapeLike(term) + "%"
}
