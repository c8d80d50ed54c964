package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"petstore-service/internal/docstore"
	"petstore-service/internal/models"
	"petstore-service/internal/store"
	"petstore-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderService handles order business logic
type OrderService struct {
	store     *store.Store
	publisher Publisher
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(store *store.Store, publisher Publisher) *OrderService {
	return &OrderService{
		store:     store,
		publisher: publisher,
		logger:    util.GetLogger(),
	}
}

// PlaceOrderRequest represents a request to place an order
type PlaceOrderRequest struct {
	UserID          string             `json:"-"`
	UserEmail       string             `json:"-"`
	UserName        string             `json:"-"`
	Items           []OrderItemRequest `json:"items" binding:"required,min=1"`
	ShippingAddress string             `json:"shipping_address"`
	IdempotencyKey  string             `json:"idempotency_key,omitempty"`
}

// OrderItemRequest carries a cart line into checkout. Price is the
// client-claimed unit price and is re-checked against the catalog inside
// the placement transaction.
type OrderItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	Price     int64  `json:"price"`
}

// PlaceOrderResponse represents the response after placing an order
type PlaceOrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// PlaceOrder validates and commits an order atomically: price and stock
// are re-checked against the catalog and stock is decremented in the same
// transaction that creates the order.
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*PlaceOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	existing, err := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency: %w", err)
	}
	if existing != nil {
		s.logger.Info("Duplicate order request detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("order_id", existing.ID))
		return &PlaceOrderResponse{OrderID: existing.ID, Status: existing.Status}, nil
	}

	order := &models.Order{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		UserEmail:       req.UserEmail,
		UserName:        req.UserName,
		Items:           make([]models.OrderItem, len(req.Items)),
		ShippingAddress: req.ShippingAddress,
		IdempotencyKey:  req.IdempotencyKey,
	}
	var total int64
	for i, item := range req.Items {
		order.Items[i] = models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.Price,
		}
		total += item.Price * int64(item.Quantity)
	}
	order.TotalAmount = total

	start := time.Now()
	err = s.store.PlaceOrderTx(ctx, order)
	util.OrderPlacementLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		if store.IsValidationError(err) {
			util.OrdersRejectedTotal.WithLabelValues(rejectionReason(err)).Inc()
			return nil, err
		}
		if errors.Is(err, docstore.ErrConflict) {
			util.OrderTxConflictsTotal.Inc()
			s.logger.Warn("Order placement lost conflict retries", zap.Error(err))
			return nil, err
		}
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int64("total_amount", order.TotalAmount))

	event := &models.OrderPlacedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:     order.ID,
		UserID:      order.UserID,
		UserEmail:   order.UserEmail,
		TotalAmount: order.TotalAmount,
		Items:       order.Items,
	}
	if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return &PlaceOrderResponse{OrderID: order.ID, Status: order.Status}, nil
}

// CancelOrder restores stock for every line item and flips the order to
// cancelled. Only pending orders qualify.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.CancelOrder")
	defer span.End()

	if err := s.store.CancelOrderTx(ctx, orderID); err != nil {
		if errors.Is(err, docstore.ErrConflict) {
			util.OrderTxConflictsTotal.Inc()
		}
		return err
	}

	util.OrdersCancelledTotal.Inc()
	s.logger.Info("Order cancelled", zap.String("order_id", orderID))

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to load cancelled order for event", zap.Error(err))
		return nil
	}

	event := &models.OrderCancelledEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderCancelled),
		OrderID:   order.ID,
		UserID:    order.UserID,
		UserEmail: order.UserEmail,
	}
	if err := s.publisher.PublishOrderCancelled(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}
	return nil
}

// UpdateStatus moves an order along the forward-only lifecycle.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID, status string) error {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer span.End()

	if !models.ValidOrderStatus(status) {
		return &store.InvalidStateTransitionError{OrderID: orderID, To: status}
	}
	if status == models.OrderStatusCancelled {
		// Stock restoration must not be skipped.
		return s.CancelOrder(ctx, orderID)
	}

	previous, err := s.store.UpdateOrderStatusTx(ctx, orderID, status)
	if err != nil {
		return err
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("from", previous),
		zap.String("to", status))

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to load order for status event", zap.Error(err))
		return nil
	}

	event := &models.OrderStatusChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   orderID,
		UserEmail: order.UserEmail,
		OldStatus: previous,
		NewStatus: status,
	}
	if err := s.publisher.PublishOrderStatusChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
	}
	return nil
}

// SetTracking records a shipment tracking code.
func (s *OrderService) SetTracking(ctx context.Context, orderID, trackingNumber string) error {
	return s.store.SetTrackingNumberTx(ctx, orderID, trackingNumber)
}

// GetOrder retrieves an order by ID.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.store.GetOrderByID(ctx, orderID)
}

// ListUserOrders retrieves a user's orders, newest first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}

// ListAllOrders retrieves every order for the admin table.
func (s *OrderService) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	return s.store.GetAllOrders(ctx)
}

// WatchOrders subscribes to committed order changes. The returned handle
// must be cancelled; cancellation is idempotent.
func (s *OrderService) WatchOrders(ctx context.Context, fn func(models.Order)) (docstore.Subscription, error) {
	return s.store.Docs().Watch(ctx, models.CollectionOrders, func(ev docstore.Event) {
		if ev.Type == docstore.EventDeleted || len(ev.Doc) == 0 {
			return
		}
		var order models.Order
		if err := json.Unmarshal(ev.Doc, &order); err != nil {
			s.logger.Error("Malformed order in change feed", zap.String("order_id", ev.ID), zap.Error(err))
			return
		}
		fn(order)
	})
}

func rejectionReason(err error) string {
	var (
		notFound   *store.ProductNotFoundError
		priceErr   *store.PriceMismatchError
		stockErr   *store.InsufficientStockError
		transition *store.InvalidStateTransitionError
	)
	switch {
	case errors.As(err, &priceErr):
		return "price_mismatch"
	case errors.As(err, &stockErr):
		return "insufficient_stock"
	case errors.As(err, &notFound):
		return "product_not_found"
	case errors.As(err, &transition):
		return "invalid_state"
	}
	return "invalid"
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}
