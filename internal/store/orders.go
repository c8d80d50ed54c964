package store

import (
	"context"
	"errors"

	"petstore-service/internal/docstore"
	"petstore-service/internal/models"
)

// PlaceOrderTx commits a new order in a single transaction: every line
// item's product is read, the client-claimed price and the requested
// quantity are checked against the authoritative record, and only when
// all items pass is stock decremented and the order created with status
// pending and a store-assigned timestamp. Any single failure voids the
// whole order with no writes.
func (s *Store) PlaceOrderTx(ctx context.Context, order *models.Order) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		// Quantities are aggregated per product: an order with two lines
		// for the same product checks and decrements stock once, by the
		// sum, so cancellation restores exactly what placement took.
		products := make(map[string]*models.Product, len(order.Items))
		wanted := make(map[string]int, len(order.Items))
		productIDs := make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			if _, ok := products[item.ProductID]; !ok {
				var product models.Product
				if err := tx.Get(models.CollectionProducts, item.ProductID, &product); err != nil {
					if errors.Is(err, docstore.ErrNotFound) {
						return &ProductNotFoundError{ProductID: item.ProductID, Name: item.Name}
					}
					return err
				}
				products[item.ProductID] = &product
				productIDs = append(productIDs, item.ProductID)
			}
			wanted[item.ProductID] += item.Quantity
		}

		// Price check before stock so a tampered price never reaches
		// checkout, regardless of availability.
		for _, item := range order.Items {
			product := products[item.ProductID]
			if product.Price != item.UnitPrice {
				return &PriceMismatchError{
					ProductID:   item.ProductID,
					Name:        product.Name,
					StorePrice:  product.Price,
					ClientPrice: item.UnitPrice,
				}
			}
		}

		for _, id := range productIDs {
			product := products[id]
			if product.Stock < wanted[id] {
				return &InsufficientStockError{
					ProductID: id,
					Name:      product.Name,
					Requested: wanted[id],
					Available: product.Stock,
				}
			}
		}

		for _, id := range productIDs {
			product := products[id]
			product.Stock -= wanted[id]
			if err := tx.Update(models.CollectionProducts, id, product); err != nil {
				return err
			}
		}

		order.Status = models.OrderStatusPending
		order.CreatedAt = tx.ServerTime()
		return tx.Create(models.CollectionOrders, order.ID, order)
	})
}

// CancelOrderTx restores stock for every line item and flips the order to
// cancelled, atomically. Only pending orders can be cancelled.
func (s *Store) CancelOrderTx(ctx context.Context, orderID string) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		var order models.Order
		if err := tx.Get(models.CollectionOrders, orderID, &order); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if order.Status != models.OrderStatusPending {
			return &InvalidStateTransitionError{
				OrderID: orderID,
				From:    order.Status,
				To:      models.OrderStatusCancelled,
			}
		}

		for _, item := range order.Items {
			var product models.Product
			if err := tx.Get(models.CollectionProducts, item.ProductID, &product); err != nil {
				// A product removed from the catalog after purchase has
				// no stock left to restore.
				if errors.Is(err, docstore.ErrNotFound) {
					continue
				}
				return err
			}
			product.Stock += item.Quantity
			if err := tx.Update(models.CollectionProducts, item.ProductID, &product); err != nil {
				return err
			}
		}

		order.Status = models.OrderStatusCancelled
		return tx.Update(models.CollectionOrders, orderID, &order)
	})
}

// UpdateOrderStatusTx moves an order along the forward-only lifecycle and
// returns the previous status. Cancellation is rejected here: it must go
// through CancelOrderTx so stock restoration cannot be skipped.
func (s *Store) UpdateOrderStatusTx(ctx context.Context, orderID, status string) (string, error) {
	var previous string
	err := s.runTx(ctx, func(tx docstore.Tx) error {
		var order models.Order
		if err := tx.Get(models.CollectionOrders, orderID, &order); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}

		if !models.CanTransition(order.Status, status) {
			return &InvalidStateTransitionError{OrderID: orderID, From: order.Status, To: status}
		}

		previous = order.Status
		order.Status = status
		return tx.Update(models.CollectionOrders, orderID, &order)
	})
	return previous, err
}

// SetTrackingNumberTx records the shipment tracking code on an order.
func (s *Store) SetTrackingNumberTx(ctx context.Context, orderID, trackingNumber string) error {
	return s.runTx(ctx, func(tx docstore.Tx) error {
		var order models.Order
		if err := tx.Get(models.CollectionOrders, orderID, &order); err != nil {
			if errors.Is(err, docstore.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		order.TrackingNumber = trackingNumber
		return tx.Update(models.CollectionOrders, orderID, &order)
	})
}

// GetOrderByID retrieves an order.
func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := s.docs.Get(ctx, models.CollectionOrders, id, &order); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves a user's orders, newest first.
func (s *Store) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	q := docstore.Query{
		Filters: []docstore.Filter{{Field: "userId", Value: userID}},
		OrderBy: "createdAt",
		Desc:    true,
	}
	if err := s.docs.Query(ctx, models.CollectionOrders, q, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetAllOrders retrieves every order, newest first.
func (s *Store) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	q := docstore.Query{OrderBy: "createdAt", Desc: true}
	if err := s.docs.Query(ctx, models.CollectionOrders, q, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrderByIdempotencyKey returns a previously committed order for the
// key, or nil when none exists.
func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	var orders []models.Order
	q := docstore.Query{
		Filters: []docstore.Filter{{Field: "idempotencyKey", Value: key}},
		Limit:   1,
	}
	if err := s.docs.Query(ctx, models.CollectionOrders, q, &orders); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}
