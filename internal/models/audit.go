package models

import "time"

type AuditLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	UserEmail  string    `json:"user_email"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	OldValue   string    `json:"old_value,omitempty"`
	NewValue   string    `json:"new_value,omitempty"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	Success    bool      `json:"success"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	ActionUserRegister  = "user.register"
	ActionUserLogin     = "user.login"
	ActionUserPromote   = "user.promote"
	ActionProductCreate = "product.create"
	ActionProductUpdate = "product.update"
	ActionProductDelete = "product.delete"
	ActionStockAdjust   = "product.stock_adjust"
	ActionOrderCreate   = "order.create"
	ActionOrderStatus   = "order.status_change"
	ActionOrderExport   = "order.export"
	ResourceUser        = "user"
	ResourceProduct     = "product"
	ResourceOrder       = "order"
)

// Event is pushed to a user's realtime channel.
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

const (
	EventCartUpdated        = "cart_updated"
	EventOrderCreated       = "order_created"
	EventOrderStatusChanged = "order_status_changed"
)
