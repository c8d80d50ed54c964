package worker

import (
	"context"
	"fmt"
	"strings"

	"petstore-service/internal/broker"
	"petstore-service/internal/models"
	"petstore-service/internal/notifier"
	"petstore-service/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes storefront events and sends the matching
// emails. Mail failures are logged and swallowed so they never block or
// replay the business operation that triggered them.
type NotificationWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	mailer   notifier.Mailer
	logger   *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, mailer notifier.Mailer) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		handler:  broker.NewEventHandler(),
		mailer:   mailer,
		logger:   util.GetLogger(),
	}

	w.handler.OnOrderPlaced(w.handleOrderPlaced)
	w.handler.OnOrderCancelled(w.handleOrderCancelled)
	w.handler.OnOrderStatusChanged(w.handleOrderStatusChanged)
	w.handler.OnUserRegistered(w.handleUserRegistered)

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	subject := fmt.Sprintf("Order Confirmation #%s", event.OrderID)
	body := fmt.Sprintf("Thank you for your order! Total: %d. We will notify you when it ships.", event.TotalAmount)
	w.send(ctx, "order_confirmation", event.UserEmail, subject, body)
	return nil
}

func (w *NotificationWorker) handleOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	subject := fmt.Sprintf("Order Cancelled #%s", event.OrderID)
	body := "Your order has been cancelled and any charged amount will be refunded."
	w.send(ctx, "order_cancelled", event.UserEmail, subject, body)
	return nil
}

func (w *NotificationWorker) handleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	subject := fmt.Sprintf("Order Update #%s", event.OrderID)
	body := fmt.Sprintf("Your order status has changed to: %s.", strings.ToUpper(event.NewStatus))
	w.send(ctx, "status_update", event.UserEmail, subject, body)
	return nil
}

func (w *NotificationWorker) handleUserRegistered(ctx context.Context, event *models.UserRegisteredEvent) error {
	name := event.DisplayName
	if name == "" {
		name = "Friend"
	}
	body := fmt.Sprintf("Hi %s,\n\nWelcome to the store! We are happy to have you.", name)
	w.send(ctx, "welcome", event.Email, "Welcome!", body)
	return nil
}

func (w *NotificationWorker) send(ctx context.Context, kind, to, subject, body string) {
	if to == "" {
		w.logger.Warn("No recipient address for notification", zap.String("kind", kind))
		return
	}
	if err := w.mailer.Send(ctx, to, subject, body); err != nil {
		util.MailFailedTotal.WithLabelValues(kind).Inc()
		w.logger.Error("Failed to send notification email",
			zap.String("kind", kind),
			zap.String("to", to),
			zap.Error(err))
		return
	}
	util.MailSentTotal.WithLabelValues(kind).Inc()
}
