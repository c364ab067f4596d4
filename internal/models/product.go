package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type Category string

const (
	CategoryLaptops     Category = "laptops"
	CategorySmartphones Category = "smartphones"
	CategoryTablets     Category = "tablets"
	CategoryAccessories Category = "accessories"
	CategoryComponents  Category = "components"
	CategoryPeripherals Category = "peripherals"
)

var Categories = []Category{
	CategoryLaptops,
	CategorySmartphones,
	CategoryTablets,
	CategoryAccessories,
	CategoryComponents,
	CategoryPeripherals,
}

func (c Category) IsValid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// JSONMap maps a jsonb column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = JSONMap{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("jsonmap: unsupported source type")
	}
	out := JSONMap{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

type Product struct {
	ID             string          `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Description    string          `json:"description" db:"description"`
	Price          decimal.Decimal `json:"price" db:"price"`
	StockQuantity  int             `json:"stock_quantity" db:"stock_quantity"`
	Category       Category        `json:"category" db:"category"`
	ImageURL       string          `json:"image_url,omitempty" db:"image_url"`
	Specifications JSONMap         `json:"specifications,omitempty" db:"specifications"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// ProductUpdate carries a partial update; nil fields are left untouched.
type ProductUpdate struct {
	Name           *string
	Description    *string
	Price          *decimal.Decimal
	StockQuantity  *int
	Category       *Category
	ImageURL       *string
	Specifications JSONMap
	IsActive       *bool
}

func (u ProductUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Price == nil && u.StockQuantity == nil &&
		u.Category == nil && u.ImageURL == nil && u.Specifications == nil && u.IsActive == nil
}

type ProductFilter struct {
	Category        Category
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	Search          string
	InStock         bool
	IncludeInactive bool
	Page            int
	Limit           int
}

type StoredImage struct {
	Path         string    `json:"path"`
	URL          string    `json:"url"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}
