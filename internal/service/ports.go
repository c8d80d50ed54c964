package service

import (
	"context"

	"petstore-service/internal/models"
)

// Publisher is the slice of the event publisher the services depend on.
// Publish failures are logged by the caller and never propagated.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error
}
