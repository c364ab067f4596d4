package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MovementType string

const (
	MovementSale       MovementType = "sale"
	MovementRestock    MovementType = "restock"
	MovementAdjustment MovementType = "adjustment"
	MovementReturn     MovementType = "return"
)

type StockMovement struct {
	ID        string       `json:"id" db:"id"`
	ProductID string       `json:"product_id" db:"product_id"`
	OrderID   *string      `json:"order_id,omitempty" db:"order_id"`
	Type      MovementType `json:"type" db:"type"`
	Quantity  int          `json:"quantity" db:"quantity"`
	PrevStock int          `json:"prev_stock" db:"prev_stock"`
	NewStock  int          `json:"new_stock" db:"new_stock"`
	Reason    string       `json:"reason" db:"reason"`
	UserID    string       `json:"user_id" db:"user_id"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

// InventoryRow is a per-product sales and stock line.
type InventoryRow struct {
	ProductID     string          `json:"product_id" db:"product_id"`
	Name          string          `json:"name" db:"name"`
	Category      Category        `json:"category" db:"category"`
	Price         decimal.Decimal `json:"price" db:"price"`
	StockQuantity int             `json:"stock_quantity" db:"stock_quantity"`
	IsActive      bool            `json:"is_active" db:"is_active"`
	TotalSold     int             `json:"total_sold" db:"total_sold"`
	Revenue       decimal.Decimal `json:"revenue" db:"revenue"`
}

type CategorySummary struct {
	Category       Category        `json:"category" db:"category"`
	ProductCount   int             `json:"product_count" db:"product_count"`
	TotalStock     int             `json:"total_stock" db:"total_stock"`
	AveragePrice   decimal.Decimal `json:"average_price" db:"average_price"`
	InventoryValue decimal.Decimal `json:"inventory_value" db:"inventory_value"`
}
