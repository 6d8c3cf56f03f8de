// Package webhook reconciles verified payment provider notifications into
// committed orders. Providers deliver at-least-once, so the whole flow is
// written to be safely re-entrant: a duplicate delivery resolves to the
// already-committed order and is acknowledged like the first one.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/payment"
)

// Publisher emits domain events after a successful commit. Publish failures
// never fail the webhook; orders are the source of truth, events are
// best-effort notification triggers.
type Publisher interface {
	PublishEvent(ctx context.Context, key, eventType string, payload any) error
}

// Receiver turns normalized payment notices into order records.
type Receiver struct {
	orders    store.OrderStore
	publisher Publisher
}

func NewReceiver(orders store.OrderStore, publisher Publisher) *Receiver {
	return &Receiver{orders: orders, publisher: publisher}
}

// Process commits the order a notice describes. It returns the order and
// whether this call created it; a repeated delivery returns the existing
// order with created=false.
func (r *Receiver) Process(ctx context.Context, notice *payment.Notice) (*order.Order, bool, error) {
	logger := log.WithFields(log.Fields{
		"provider":       notice.Provider,
		"correlation_id": notice.CorrelationID,
	})

	// Fast path. The insert conflict below is the real dedup guarantee;
	// this just avoids materializing an order for the common retry case.
	if existing, err := r.lookup(ctx, notice); err != nil {
		return nil, false, err
	} else if existing != nil {
		logger.WithField("order_id", existing.ID).Info("duplicate payment event, order already exists")
		return existing, false, nil
	}

	o := notice.Order(uuid.New().String(), time.Now().UTC())

	created, err := r.orders.Create(ctx, o)
	if err != nil {
		return nil, false, fmt.Errorf("committing order: %w", err)
	}
	if !created {
		// Lost the race against a concurrent delivery of the same event.
		existing, err := r.lookup(ctx, notice)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("order for %s %s conflicted but cannot be found", notice.Provider, notice.CorrelationID)
		}
		logger.WithField("order_id", existing.ID).Info("concurrent payment event, order already exists")
		return existing, false, nil
	}

	logger.WithFields(log.Fields{
		"order_id":     o.ID,
		"order_number": o.Number(),
		"total":        o.Total,
		"paid":         notice.Paid,
	}).Info("order created from payment event")

	if notice.Paid {
		if _, err := r.orders.ApplyInventory(ctx, o.ID); err != nil {
			logger.WithError(err).WithField("order_id", o.ID).Error("inventory decrement failed")
		}
		if err := r.publisher.PublishEvent(ctx, o.ID, order.EventOrderCreated, o.CreatedEvent(string(notice.Provider))); err != nil {
			logger.WithError(err).WithField("order_id", o.ID).Error("publishing OrderCreated failed")
		}
	}

	return o, true, nil
}

func (r *Receiver) lookup(ctx context.Context, notice *payment.Notice) (*order.Order, error) {
	var (
		o   *order.Order
		err error
	)
	switch notice.Provider {
	case payment.ProviderStripe:
		o, err = r.orders.GetByStripeSessionID(ctx, notice.CorrelationID)
	case payment.ProviderSquare:
		o, err = r.orders.GetBySquareOrderID(ctx, notice.CorrelationID)
	default:
		return nil, fmt.Errorf("unknown payment provider %q", notice.Provider)
	}
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("looking up order for %s %s: %w", notice.Provider, notice.CorrelationID, err)
	}
	return o, nil
}
