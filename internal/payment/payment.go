// Package payment defines the normalized shape a provider webhook event is
// reduced to before it touches the order store. Provider adapters live in
// the stripe and square subpackages; everything past them speaks only in
// these types.
package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/order"
)

type Provider string

const (
	ProviderStripe Provider = "stripe"
	ProviderSquare Provider = "square"
)

// VerifyMode selects webhook signature behavior. Strict is the production
// setting; permissive exists so the system runs without provider secrets in
// local development, and is an explicit choice rather than something
// inferred from a missing secret.
type VerifyMode string

const (
	VerifyStrict     VerifyMode = "strict"
	VerifyPermissive VerifyMode = "permissive"
)

var (
	ErrMissingSignature = errors.New("no signature provided")
	ErrBadSignature     = errors.New("webhook signature verification failed")
	ErrNoSecret         = errors.New("webhook signing secret is not configured")
)

func ParseVerifyMode(s string) (VerifyMode, error) {
	switch VerifyMode(s) {
	case VerifyStrict, VerifyPermissive:
		return VerifyMode(s), nil
	default:
		return "", fmt.Errorf("unknown webhook verify mode %q", s)
	}
}

// Notice is a normalized "payment captured" notification: everything the
// order store needs to commit a new order, with provider field names and
// monetary units already translated.
type Notice struct {
	Provider      Provider
	CorrelationID string

	UserID string
	Email  string

	Items        []order.Item
	Address      order.Address
	Subtotal     float64
	ShippingCost float64
	Tax          float64

	// Paid is true only for a recognized captured/authorized payment
	// state; anything else yields a pending order.
	Paid bool

	// Provider-specific secondary references, kept for support lookups.
	PaymentIntentID string
	PaymentLinkID   string
}

// Order materializes the notice into a new order record.
func (n *Notice) Order(id string, now time.Time) *order.Order {
	o := &order.Order{
		ID:              id,
		UserID:          n.UserID,
		Email:           n.Email,
		Items:           n.Items,
		ShippingAddress: n.Address,
		Subtotal:        n.Subtotal,
		ShippingCost:    n.ShippingCost,
		Tax:             n.Tax,
		Total:           n.Subtotal + n.ShippingCost + n.Tax,
		PaymentStatus:   order.PaymentPending,
		Status:          order.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if n.Paid {
		o.PaymentStatus = order.PaymentCompleted
		o.Status = order.StatusPaid
	}

	switch n.Provider {
	case ProviderStripe:
		o.StripeSessionID = n.CorrelationID
		o.StripePaymentIntentID = n.PaymentIntentID
	case ProviderSquare:
		o.SquareOrderID = n.CorrelationID
		o.SquarePaymentLinkID = n.PaymentLinkID
	}
	return o
}

// MetadataItem is the cart line both providers echo back through checkout
// metadata, produced by this system at checkout-session creation time.
type MetadataItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
}

// ParseMetadataItems decodes the items JSON a provider carried through
// checkout metadata into canonical product lines.
func ParseMetadataItems(raw string) ([]order.Item, error) {
	if raw == "" {
		return nil, nil
	}
	var meta []MetadataItem
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return nil, fmt.Errorf("invalid items metadata: %w", err)
	}

	items := make([]order.Item, 0, len(meta))
	for _, m := range meta {
		items = append(items, order.Item{
			ProductID: m.ProductID,
			Name:      m.Name,
			Price:     m.Price,
			Quantity:  m.Quantity,
			Image:     m.Image,
			Kind:      order.KindProduct,
		})
	}
	return items, nil
}

// Subtotal sums product lines at their snapshotted prices.
func Subtotal(items []order.Item) float64 {
	var sum float64
	for _, item := range items {
		if item.Kind == order.KindProduct || item.Kind == "" {
			sum += item.Price * float64(item.Quantity)
		}
	}
	return sum
}
