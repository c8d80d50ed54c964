package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"petstore-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	sent []string
	err  error
}

func (m *fakeMailer) Send(_ context.Context, to, subject, _ string) error {
	m.sent = append(m.sent, to+": "+subject)
	return m.err
}

func messageFor(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: data}
}

func baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{EventID: "ev-1", EventType: eventType, Timestamp: time.Now().UTC()}
}

func TestOrderPlacedSendsConfirmation(t *testing.T) {
	mailer := &fakeMailer{}
	w := NewNotificationWorker(nil, mailer)

	msg := messageFor(t, &models.OrderPlacedEvent{
		BaseEvent:   baseEvent(models.EventTypeOrderPlaced),
		OrderID:     "o1",
		UserEmail:   "pat@example.com",
		TotalAmount: 1500,
	})
	require.NoError(t, w.handler.HandleMessage(context.Background(), msg))

	require.Len(t, mailer.sent, 1)
	assert.Contains(t, mailer.sent[0], "pat@example.com")
	assert.Contains(t, mailer.sent[0], "o1")
}

func TestStatusChangeSendsUpdate(t *testing.T) {
	mailer := &fakeMailer{}
	w := NewNotificationWorker(nil, mailer)

	msg := messageFor(t, &models.OrderStatusChangedEvent{
		BaseEvent: baseEvent(models.EventTypeOrderStatusChanged),
		OrderID:   "o1",
		UserEmail: "pat@example.com",
		OldStatus: models.OrderStatusPending,
		NewStatus: models.OrderStatusShipped,
	})
	require.NoError(t, w.handler.HandleMessage(context.Background(), msg))

	require.Len(t, mailer.sent, 1)
}

func TestMailFailureIsSwallowed(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("relay down")}
	w := NewNotificationWorker(nil, mailer)

	msg := messageFor(t, &models.OrderCancelledEvent{
		BaseEvent: baseEvent(models.EventTypeOrderCancelled),
		OrderID:   "o1",
		UserEmail: "pat@example.com",
	})

	// The handler must report success so the message commits and is not
	// redelivered forever.
	assert.NoError(t, w.handler.HandleMessage(context.Background(), msg))
}

func TestMissingRecipientSkipsSend(t *testing.T) {
	mailer := &fakeMailer{}
	w := NewNotificationWorker(nil, mailer)

	msg := messageFor(t, &models.UserRegisteredEvent{
		BaseEvent: baseEvent(models.EventTypeUserRegistered),
		UserID:    "u1",
	})
	require.NoError(t, w.handler.HandleMessage(context.Background(), msg))
	assert.Empty(t, mailer.sent)
}
