package order

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrEmptyOrder      = errors.New("order must have at least one item")
	ErrMissingEmail    = errors.New("email is required for order")
	ErrInvalidQuantity = errors.New("item quantity must be at least 1")
	ErrTotalMismatch   = errors.New("total does not equal subtotal + shipping + tax")
	ErrInvalidStatus   = errors.New("invalid order status transition")
	ErrOrderDelivered  = errors.New("order is already delivered")
	ErrOrderCancelled  = errors.New("order is already cancelled")
)

// PaymentStatus tracks the payment provider's view of the order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Status is the fulfillment lifecycle stage, distinct from payment status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// validTransitions defines allowed state transitions. The nominal path only
// moves forward; cancelled is reachable from any non-terminal state.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusShipped, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusDelivered, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusCancelled},
	StatusDelivered: {}, // terminal state
	StatusCancelled: {}, // terminal state
}

// ItemKind distinguishes product charges from shipping and tax charges in a
// typed field instead of a sentinel line-item name.
type ItemKind string

const (
	KindProduct  ItemKind = "product"
	KindShipping ItemKind = "shipping"
	KindTax      ItemKind = "tax"
)

// Item is one order line at a snapshotted name and price.
type Item struct {
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	Price     float64  `json:"price"`
	Quantity  int      `json:"quantity"`
	Image     string   `json:"image,omitempty"`
	Kind      ItemKind `json:"kind"`
}

type Address struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// Label records a purchased shipping label.
type Label struct {
	LabelURL       string    `json:"label_url"`
	TrackingNumber string    `json:"tracking_number"`
	Carrier        string    `json:"carrier"`
	CreatedAt      time.Time `json:"created_at"`
}

type Order struct {
	ID              string        `json:"id"`
	UserID          string        `json:"user_id,omitempty"`
	Email           string        `json:"email"`
	Items           []Item        `json:"items"`
	ShippingAddress Address       `json:"shipping_address"`
	Subtotal        float64       `json:"subtotal"`
	ShippingCost    float64       `json:"shipping_cost"`
	Tax             float64       `json:"tax"`
	Total           float64       `json:"total"`

	StripeSessionID       string `json:"stripe_session_id,omitempty"`
	StripePaymentIntentID string `json:"stripe_payment_intent_id,omitempty"`
	SquareOrderID         string `json:"square_order_id,omitempty"`
	SquarePaymentLinkID   string `json:"square_payment_link_id,omitempty"`

	PaymentStatus    PaymentStatus `json:"payment_status"`
	Status           Status        `json:"status"`
	TrackingNumber   string        `json:"tracking_number,omitempty"`
	ShippingLabel    *Label        `json:"shipping_label,omitempty"`
	InventoryApplied bool          `json:"inventory_applied"`
	Notes            string        `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	// FreeShippingThreshold is the subtotal above which shipping is free.
	FreeShippingThreshold = 100.0
	// StandardShipping is the flat rate below the threshold.
	StandardShipping = 10.0

	// totalTolerance absorbs float rounding when checking the totals invariant.
	totalTolerance = 0.01
)

// StandardShippingCost returns the flat shipping cost for a given subtotal.
func StandardShippingCost(subtotal float64) float64 {
	if subtotal >= FreeShippingThreshold {
		return 0
	}
	return StandardShipping
}

// Validate checks the creation-time invariants.
func (o *Order) Validate() error {
	if strings.TrimSpace(o.Email) == "" {
		return ErrMissingEmail
	}
	products := 0
	for _, item := range o.Items {
		if item.Quantity < 1 {
			return ErrInvalidQuantity
		}
		if item.Kind == KindProduct || item.Kind == "" {
			products++
		}
	}
	if products == 0 {
		return ErrEmptyOrder
	}
	if !o.TotalsConsistent() {
		return ErrTotalMismatch
	}
	return nil
}

// TotalsConsistent reports whether total == subtotal + shipping + tax within
// float tolerance.
func (o *Order) TotalsConsistent() bool {
	return math.Abs(o.Total-(o.Subtotal+o.ShippingCost+o.Tax)) <= totalTolerance
}

// CanTransitionTo checks if the order can move to the target status.
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// TransitionError returns an appropriate error for an invalid transition.
func (o *Order) TransitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case o.Status == StatusDelivered:
		return ErrOrderDelivered
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// Number is the short order number shown to customers and used in email
// subjects: the last 8 characters of the id, uppercased.
func (o *Order) Number() string {
	id := o.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return strings.ToUpper(id)
}

// CorrelationID returns the payment provider's id for this order, used for
// webhook deduplication.
func (o *Order) CorrelationID() string {
	if o.StripeSessionID != "" {
		return o.StripeSessionID
	}
	return o.SquareOrderID
}

// ProductItems returns only the product lines, skipping shipping and tax
// charge lines.
func (o *Order) ProductItems() []Item {
	items := make([]Item, 0, len(o.Items))
	for _, item := range o.Items {
		if item.Kind == KindProduct || item.Kind == "" {
			items = append(items, item)
		}
	}
	return items
}
