package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	ProductID string    `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CartLine is a cart row joined with the current product data.
type CartLine struct {
	CartItem
	ProductName   string          `json:"product_name" db:"product_name"`
	Price         decimal.Decimal `json:"price" db:"price"`
	ImageURL      string          `json:"image_url,omitempty" db:"image_url"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	Subtotal      decimal.Decimal `json:"subtotal" db:"-"`
}

type CartSummary struct {
	ItemCount  int             `json:"item_count"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	IsValid    bool            `json:"is_valid"`
}
