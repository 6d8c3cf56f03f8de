package order

import "time"

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderShipped   = "OrderShipped"
	EventOrderCancelled = "OrderCancelled"
)

// OrderCreated is published after a payment webhook commits a new order.
// The payload is self-contained so the notifier never has to look the
// order up again.
type OrderCreated struct {
	OrderID      string    `json:"order_id"`
	OrderNumber  string    `json:"order_number"`
	Email        string    `json:"email"`
	Items        []Item    `json:"items"`
	Address      Address   `json:"address"`
	Subtotal     float64   `json:"subtotal"`
	ShippingCost float64   `json:"shipping_cost"`
	Tax          float64   `json:"tax"`
	Total        float64   `json:"total"`
	Provider     string    `json:"provider"`
	CreatedAt    time.Time `json:"created_at"`
}

// OrderShipped is published exactly once per first tracking assignment,
// whether tracking came from a purchased label or a manual admin update.
type OrderShipped struct {
	OrderID        string    `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	Email          string    `json:"email"`
	TrackingNumber string    `json:"tracking_number"`
	Carrier        string    `json:"carrier,omitempty"`
	LabelURL       string    `json:"label_url,omitempty"`
	ShippedAt      time.Time `json:"shipped_at"`
}

type OrderCancelled struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Email       string    `json:"email"`
	Reason      string    `json:"reason,omitempty"`
	CancelledAt time.Time `json:"cancelled_at"`
}

// CreatedEvent builds the OrderCreated payload for an order.
func (o *Order) CreatedEvent(provider string) OrderCreated {
	return OrderCreated{
		OrderID:      o.ID,
		OrderNumber:  o.Number(),
		Email:        o.Email,
		Items:        o.ProductItems(),
		Address:      o.ShippingAddress,
		Subtotal:     o.Subtotal,
		ShippingCost: o.ShippingCost,
		Tax:          o.Tax,
		Total:        o.Total,
		Provider:     provider,
		CreatedAt:    o.CreatedAt,
	}
}

// ShippedEvent builds the OrderShipped payload for an order that just got
// its tracking number.
func (o *Order) ShippedEvent() OrderShipped {
	e := OrderShipped{
		OrderID:        o.ID,
		OrderNumber:    o.Number(),
		Email:          o.Email,
		TrackingNumber: o.TrackingNumber,
		ShippedAt:      time.Now(),
	}
	if o.ShippingLabel != nil {
		e.Carrier = o.ShippingLabel.Carrier
		e.LabelURL = o.ShippingLabel.LabelURL
	}
	return e
}
