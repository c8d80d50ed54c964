package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"petstore-service/internal/docstore"
	"petstore-service/internal/models"
	"petstore-service/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePublisher records published events in memory.
type fakePublisher struct {
	mu            sync.Mutex
	placed        []*models.OrderPlacedEvent
	cancelled     []*models.OrderCancelledEvent
	statusChanged []*models.OrderStatusChangedEvent
	registered    []*models.UserRegisteredEvent
	err           error
}

func (p *fakePublisher) PublishOrderPlaced(_ context.Context, event *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, event)
	return p.err
}

func (p *fakePublisher) PublishOrderCancelled(_ context.Context, event *models.OrderCancelledEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, event)
	return p.err
}

func (p *fakePublisher) PublishOrderStatusChanged(_ context.Context, event *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanged = append(p.statusChanged, event)
	return p.err
}

func (p *fakePublisher) PublishUserRegistered(_ context.Context, event *models.UserRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, event)
	return p.err
}

func newOrderFixture(t *testing.T) (*OrderService, *store.Store, *fakePublisher) {
	t.Helper()
	db := store.NewStore(docstore.NewMemory(), 5)
	publisher := &fakePublisher{}
	return NewOrderService(db, publisher), db, publisher
}

func seedTestProduct(t *testing.T, db *store.Store, id string, price int64, stock int) {
	t.Helper()
	err := db.CreateProduct(context.Background(), &models.Product{
		ID:      id,
		Name:    "Product " + id,
		Price:   price,
		Stock:   stock,
		InStock: true,
	})
	require.NoError(t, err)
}

func placeRequest(productID string, quantity int, price int64) *PlaceOrderRequest {
	return &PlaceOrderRequest{
		UserID:    "user-1",
		UserEmail: "user@example.com",
		UserName:  "Pat",
		Items: []OrderItemRequest{
			{ProductID: productID, Quantity: quantity, Price: price},
		},
	}
}

func TestPlaceOrderPublishesEvent(t *testing.T) {
	svc, db, publisher := newOrderFixture(t)
	ctx := context.Background()
	seedTestProduct(t, db, "p1", 500, 10)

	resp, err := svc.PlaceOrder(ctx, placeRequest("p1", 3, 500))
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, resp.Status)

	require.Len(t, publisher.placed, 1)
	assert.Equal(t, resp.OrderID, publisher.placed[0].OrderID)
	assert.Equal(t, int64(1500), publisher.placed[0].TotalAmount)

	product, err := db.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, product.Stock)
}

func TestPlaceOrderIdempotentReplay(t *testing.T) {
	svc, db, publisher := newOrderFixture(t)
	ctx := context.Background()
	seedTestProduct(t, db, "p1", 500, 10)

	req := placeRequest("p1", 3, 500)
	req.IdempotencyKey = "key-1"

	first, err := svc.PlaceOrder(ctx, req)
	require.NoError(t, err)

	second, err := svc.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)

	// Stock moved once and the event fired once.
	product, err := db.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 7, product.Stock)
	assert.Len(t, publisher.placed, 1)
}

func TestPlaceOrderValidationFailurePublishesNothing(t *testing.T) {
	svc, db, publisher := newOrderFixture(t)
	seedTestProduct(t, db, "p1", 500, 10)

	_, err := svc.PlaceOrder(context.Background(), placeRequest("p1", 3, 450))

	var priceErr *store.PriceMismatchError
	require.ErrorAs(t, err, &priceErr)
	assert.Empty(t, publisher.placed)
}

func TestPlaceOrderSwallowsPublishFailure(t *testing.T) {
	svc, db, publisher := newOrderFixture(t)
	ctx := context.Background()
	seedTestProduct(t, db, "p1", 500, 10)
	publisher.err = errors.New("broker down")

	resp, err := svc.PlaceOrder(ctx, placeRequest("p1", 1, 500))
	require.NoError(t, err)

	// The order committed regardless of the broker.
	order, err := db.GetOrderByID(ctx, resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
}

func TestCancelOrderPublishesEvent(t *testing.T) {
	svc, db, publisher := newOrderFixture(t)
	ctx := context.Background()
	seedTestProduct(t, db, "p1", 500, 10)

	resp, err := svc.PlaceOrder(ctx, placeRequest("p1", 3, 500))
	require.NoError(t, err)

	require.NoError(t, svc.CancelOrder(ctx, resp.OrderID))

	require.Len(t, publisher.cancelled, 1)
	assert.Equal(t, resp.OrderID, publisher.cancelled[0].OrderID)

	product, err := db.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, product.Stock)
}

func TestUpdateStatusRoutesCancellation(t *testing.T) {
	svc, db, publisher := newOrderFixture(t)
	ctx := context.Background()
	seedTestProduct(t, db, "p1", 500, 10)

	resp, err := svc.PlaceOrder(ctx, placeRequest("p1", 3, 500))
	require.NoError(t, err)

	// An admin setting "cancelled" must go through the cancellation
	// path so stock is restored.
	require.NoError(t, svc.UpdateStatus(ctx, resp.OrderID, models.OrderStatusCancelled))

	product, err := db.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 10, product.Stock)
	assert.Len(t, publisher.cancelled, 1)
	assert.Empty(t, publisher.statusChanged)
}

func TestUpdateStatusPublishesTransition(t *testing.T) {
	svc, db, publisher := newOrderFixture(t)
	ctx := context.Background()
	seedTestProduct(t, db, "p1", 500, 10)

	resp, err := svc.PlaceOrder(ctx, placeRequest("p1", 1, 500))
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(ctx, resp.OrderID, models.OrderStatusPacked))

	require.Len(t, publisher.statusChanged, 1)
	assert.Equal(t, models.OrderStatusPending, publisher.statusChanged[0].OldStatus)
	assert.Equal(t, models.OrderStatusPacked, publisher.statusChanged[0].NewStatus)
}

func TestUpdateStatusRejectsUnknown(t *testing.T) {
	svc, _, _ := newOrderFixture(t)

	err := svc.UpdateStatus(context.Background(), "o1", "teleported")
	var transition *store.InvalidStateTransitionError
	assert.ErrorAs(t, err, &transition)
}

func TestWatchOrdersDeliversAndCancels(t *testing.T) {
	svc, db, _ := newOrderFixture(t)
	ctx := context.Background()
	seedTestProduct(t, db, "p1", 500, 10)

	var mu sync.Mutex
	var seen []models.Order
	sub, err := svc.WatchOrders(ctx, func(order models.Order) {
		mu.Lock()
		seen = append(seen, order)
		mu.Unlock()
	})
	require.NoError(t, err)

	resp, err := svc.PlaceOrder(ctx, placeRequest("p1", 1, 500))
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, seen, 1)
	assert.Equal(t, resp.OrderID, seen[0].ID)
	mu.Unlock()

	sub.Cancel()
	sub.Cancel()

	_, err = svc.PlaceOrder(ctx, placeRequest("p1", 1, 500))
	require.NoError(t, err)

	mu.Lock()
	assert.Len(t, seen, 1)
	mu.Unlock()
}
