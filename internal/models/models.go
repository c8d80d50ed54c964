package models

import "time"

// Collection names in the document store.
const (
	CollectionProducts  = "products"
	CollectionOrders    = "orders"
	CollectionReviews   = "reviews"
	CollectionUsers     = "users"
	CollectionAddresses = "addresses"
)

// Product is a catalog entry. Price is in integer currency units; Stock
// only changes inside order placement and cancellation transactions.
type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Category      string    `json:"category"`
	Price         int64     `json:"price"`
	Stock         int       `json:"stock"`
	InStock       bool      `json:"inStock"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	RatingCount   int       `json:"ratingCount"`
	AverageRating float64   `json:"averageRating"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Order is a committed customer order. CreatedAt is assigned by the store
// at commit time.
type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	UserEmail       string      `json:"userEmail"`
	UserName        string      `json:"userName,omitempty"`
	Items           []OrderItem `json:"items"`
	TotalAmount     int64       `json:"totalAmount"`
	Status          string      `json:"status"`
	TrackingNumber  string      `json:"trackingNumber,omitempty"`
	ShippingAddress string      `json:"shippingAddress,omitempty"`
	IdempotencyKey  string      `json:"idempotencyKey,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// OrderItem is a line item with the unit price captured at order time.
type OrderItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"price"`
}

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusPacked    = "packed"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

// nextStatuses is the forward-only order lifecycle. Cancellation is not
// listed: it goes through the cancellation transaction so stock
// restoration can never be skipped.
var nextStatuses = map[string][]string{
	OrderStatusPending: {OrderStatusPacked, OrderStatusShipped, OrderStatusDelivered},
	OrderStatusPacked:  {OrderStatusShipped, OrderStatusDelivered},
	OrderStatusShipped: {OrderStatusDelivered},
}

// ValidOrderStatus reports whether s names a known status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusPacked, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to
// another via a plain status update.
func CanTransition(from, to string) bool {
	for _, next := range nextStatuses[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Review is a product review by a verified purchaser.
type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// User is the profile record kept alongside the identity provider.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Address is a shipping address in a user's address book.
type Address struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Line1  string `json:"line1"`
	Line2  string `json:"line2,omitempty"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// CartItem is an ephemeral cart line. Everything except Quantity is
// display data and gets re-validated against the Product record before an
// order commits.
type CartItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Quantity  int    `json:"quantity"`
}
