package store

import (
	"errors"
	"fmt"
)

// ErrOrderNotFound is returned when a referenced order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// ProductNotFoundError is returned when a line item references a product
// that does not exist.
type ProductNotFoundError struct {
	ProductID string
	Name      string
}

func (e *ProductNotFoundError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("product does not exist: %s", e.Name)
	}
	return fmt.Sprintf("product does not exist: %s", e.ProductID)
}

// PriceMismatchError is returned when the client-claimed unit price does
// not match the authoritative price. It voids the whole order.
type PriceMismatchError struct {
	ProductID   string
	Name        string
	StorePrice  int64
	ClientPrice int64
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("price mismatch for %s: expected %d, got %d", e.Name, e.StorePrice, e.ClientPrice)
}

// InsufficientStockError is returned when requested quantity exceeds the
// current stock of a product.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: only %d available, requested %d", e.Name, e.Available, e.Requested)
}

// InvalidStateTransitionError is returned when an order status change is
// not legal from the order's current status.
type InvalidStateTransitionError struct {
	OrderID string
	From    string
	To      string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
}

// IsValidationError reports whether err is a terminal business-rule
// failure, as opposed to a retryable conflict or an infrastructure error.
func IsValidationError(err error) bool {
	var (
		notFound      *ProductNotFoundError
		priceErr      *PriceMismatchError
		stockErr      *InsufficientStockError
		transitionErr *InvalidStateTransitionError
	)
	return errors.As(err, &notFound) ||
		errors.As(err, &priceErr) ||
		errors.As(err, &stockErr) ||
		errors.As(err, &transitionErr)
}
