package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/kafka"
)

type mailerCall struct {
	Method string
	To     string
}

type mockMailer struct {
	Calls   []mailerCall
	SendErr error
}

func (m *mockMailer) SendOrderConfirmation(to string, e order.OrderCreated) error {
	m.Calls = append(m.Calls, mailerCall{"confirmation", to})
	return m.SendErr
}

func (m *mockMailer) SendOrderAlert(to string, e order.OrderCreated) error {
	m.Calls = append(m.Calls, mailerCall{"alert", to})
	return m.SendErr
}

func (m *mockMailer) SendTrackingUpdate(to string, e order.OrderShipped) error {
	m.Calls = append(m.Calls, mailerCall{"tracking", to})
	return m.SendErr
}

func envelope(t *testing.T, eventType string, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	value, err := json.Marshal(kafka.Envelope{
		ID:        "evt-1",
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
	require.NoError(t, err)
	return value
}

func TestHandleEvent_OrderCreated(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer, "owner@example.com")

	value := envelope(t, order.EventOrderCreated, order.OrderCreated{
		OrderID:     "order-1",
		OrderNumber: "456789AB",
		Email:       "jane@example.com",
		Total:       49.98,
	})

	require.NoError(t, h.HandleEvent(context.Background(), nil, value))
	require.Len(t, mailer.Calls, 2)
	assert.Equal(t, mailerCall{"confirmation", "jane@example.com"}, mailer.Calls[0])
	assert.Equal(t, mailerCall{"alert", "owner@example.com"}, mailer.Calls[1])
}

func TestHandleEvent_OrderCreatedWithoutOwner(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer, "")

	value := envelope(t, order.EventOrderCreated, order.OrderCreated{Email: "jane@example.com"})

	require.NoError(t, h.HandleEvent(context.Background(), nil, value))
	require.Len(t, mailer.Calls, 1)
	assert.Equal(t, "confirmation", mailer.Calls[0].Method)
}

func TestHandleEvent_OrderShipped(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer, "owner@example.com")

	value := envelope(t, order.EventOrderShipped, order.OrderShipped{
		OrderID:        "order-1",
		Email:          "jane@example.com",
		TrackingNumber: "9405511899223197428490",
	})

	require.NoError(t, h.HandleEvent(context.Background(), nil, value))
	require.Len(t, mailer.Calls, 1)
	assert.Equal(t, mailerCall{"tracking", "jane@example.com"}, mailer.Calls[0])
}

func TestHandleEvent_IgnoresUnknownTypes(t *testing.T) {
	mailer := &mockMailer{}
	h := NewHandler(mailer, "owner@example.com")

	value := envelope(t, "ProductUpdated", map[string]string{"product_id": "prod-1"})

	require.NoError(t, h.HandleEvent(context.Background(), nil, value))
	assert.Empty(t, mailer.Calls)
}

func TestHandleEvent_SendFailureDoesNotError(t *testing.T) {
	mailer := &mockMailer{SendErr: errors.New("smtp refused")}
	h := NewHandler(mailer, "owner@example.com")

	value := envelope(t, order.EventOrderCreated, order.OrderCreated{Email: "jane@example.com"})

	assert.NoError(t, h.HandleEvent(context.Background(), nil, value))
}

func TestHandleEvent_MalformedEnvelope(t *testing.T) {
	h := NewHandler(&mockMailer{}, "")

	err := h.HandleEvent(context.Background(), nil, []byte("not json"))
	assert.Error(t, err)
}
