package models

import "time"

// Event types
const (
	EventTypeOrderPlaced        = "ORDER_PLACED"
	EventTypeOrderCancelled     = "ORDER_CANCELLED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeUserRegistered     = "USER_REGISTERED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when an order commits
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     string      `json:"order_id"`
	UserID      string      `json:"user_id"`
	UserEmail   string      `json:"user_email"`
	TotalAmount int64       `json:"total_amount"`
	Items       []OrderItem `json:"items"`
}

// OrderCancelledEvent published when an order is cancelled and stock restored
type OrderCancelledEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
}

// OrderStatusChangedEvent published on admin status updates
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	UserEmail string `json:"user_email"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// UserRegisteredEvent published when a profile record is first created
type UserRegisteredEvent struct {
	BaseEvent
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}
