// Package notification consumes order events and sends customer and owner
// emails. Event payloads are self-contained, so the notifier runs without a
// database connection; everything it mails comes off the wire.
package notification

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/email"
	"github.com/example/storefront/internal/infrastructure/kafka"
)

// Mailer is the slice of the email service the notifier uses.
type Mailer interface {
	SendOrderConfirmation(to string, e order.OrderCreated) error
	SendOrderAlert(to string, e order.OrderCreated) error
	SendTrackingUpdate(to string, e order.OrderShipped) error
}

var _ Mailer = (*email.Service)(nil)

// Handler dispatches consumed events to email sends.
type Handler struct {
	mailer     Mailer
	ownerEmail string
}

func NewHandler(mailer Mailer, ownerEmail string) *Handler {
	return &Handler{mailer: mailer, ownerEmail: ownerEmail}
}

// HandleEvent processes one message from the events topic. Unknown event
// types are skipped; send failures are logged and swallowed so the consumer
// keeps its offset moving.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var envelope kafka.Envelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return fmt.Errorf("unmarshalling event envelope: %w", err)
	}

	logger := log.WithFields(log.Fields{"event_id": envelope.ID, "event_type": envelope.EventType})

	switch envelope.EventType {
	case order.EventOrderCreated:
		var e order.OrderCreated
		if err := json.Unmarshal(envelope.Data, &e); err != nil {
			return fmt.Errorf("unmarshalling OrderCreated: %w", err)
		}
		h.handleOrderCreated(logger, e)
	case order.EventOrderShipped:
		var e order.OrderShipped
		if err := json.Unmarshal(envelope.Data, &e); err != nil {
			return fmt.Errorf("unmarshalling OrderShipped: %w", err)
		}
		h.handleOrderShipped(logger, e)
	default:
		logger.Debug("ignoring event type")
	}
	return nil
}

func (h *Handler) handleOrderCreated(logger *log.Entry, e order.OrderCreated) {
	logger = logger.WithFields(log.Fields{"order_id": e.OrderID, "order_number": e.OrderNumber})

	if err := h.mailer.SendOrderConfirmation(e.Email, e); err != nil {
		logger.WithError(err).Error("sending order confirmation failed")
	} else {
		logger.WithField("to", e.Email).Info("order confirmation sent")
	}

	if h.ownerEmail == "" {
		return
	}
	if err := h.mailer.SendOrderAlert(h.ownerEmail, e); err != nil {
		logger.WithError(err).Error("sending owner alert failed")
	} else {
		logger.Info("owner alert sent")
	}
}

func (h *Handler) handleOrderShipped(logger *log.Entry, e order.OrderShipped) {
	logger = logger.WithFields(log.Fields{"order_id": e.OrderID, "order_number": e.OrderNumber})

	if err := h.mailer.SendTrackingUpdate(e.Email, e); err != nil {
		logger.WithError(err).Error("sending tracking update failed")
		return
	}
	logger.WithField("to", e.Email).Info("tracking update sent")
}
