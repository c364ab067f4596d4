package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// progression rank along the fulfilment path
var statusRank = map[OrderStatus]int{
	OrderPending:    0,
	OrderProcessing: 1,
	OrderShipped:    2,
	OrderDelivered:  3,
}

func (s OrderStatus) IsValid() bool {
	_, ok := statusRank[s]
	return ok || s == OrderCancelled
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransitionTo reports whether an order in status s may move to next.
// Fulfilment moves forward only (skipping is allowed) and any non-terminal
// order can be cancelled.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !s.IsValid() || !next.IsValid() || s.IsTerminal() || s == next {
		return false
	}
	if next == OrderCancelled {
		return true
	}
	return statusRank[next] > statusRank[s]
}

type Order struct {
	ID              string          `json:"id" db:"id"`
	UserID          string          `json:"user_id" db:"user_id"`
	ShippingAddress string          `json:"shipping_address" db:"shipping_address"`
	TotalAmount     decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status          OrderStatus     `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

type OrderItem struct {
	ID          string          `json:"id" db:"id"`
	OrderID     string          `json:"order_id" db:"order_id"`
	ProductID   string          `json:"product_id" db:"product_id"`
	ProductName string          `json:"product_name,omitempty" db:"product_name"`
	Quantity    int             `json:"quantity" db:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" db:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal" db:"subtotal"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type OrderWithItems struct {
	Order
	Items []OrderItem `json:"items"`
}

// OrderLine is one requested (product, quantity) pair.
type OrderLine struct {
	ProductID string
	Quantity  int
}

type OrderFilter struct {
	UserID    string
	Status    OrderStatus
	StartDate *time.Time
	EndDate   *time.Time
	Page      int
	Limit     int
}

type SalesDay struct {
	SaleDate          time.Time       `json:"sale_date" db:"sale_date"`
	OrdersCount       int             `json:"orders_count" db:"orders_count"`
	Revenue           decimal.Decimal `json:"revenue" db:"revenue"`
	ItemsSold         int             `json:"items_sold" db:"items_sold"`
	AverageOrderValue decimal.Decimal `json:"average_order_value" db:"average_order_value"`
}

type CustomerHistory struct {
	UserID      string          `json:"user_id" db:"user_id"`
	Email       string          `json:"email" db:"email"`
	FullName    string          `json:"full_name" db:"full_name"`
	TotalOrders int             `json:"total_orders" db:"total_orders"`
	TotalSpent  decimal.Decimal `json:"total_spent" db:"total_spent"`
	LastOrderAt *time.Time      `json:"last_order_at,omitempty" db:"last_order_at"`
}

// OrderExportRow is one line of the admin CSV export.
type OrderExportRow struct {
	OrderID         string          `db:"id"`
	CustomerName    string          `db:"full_name"`
	CustomerEmail   string          `db:"email"`
	Status          OrderStatus     `db:"status"`
	TotalAmount     decimal.Decimal `db:"total_amount"`
	CreatedAt       time.Time       `db:"created_at"`
	ShippingAddress string          `db:"shipping_address"`
	ItemCount       int             `db:"item_count"`
}

type PaymentIntent struct {
	ID           string          `json:"id"`
	ClientSecret string          `json:"client_secret"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
}
