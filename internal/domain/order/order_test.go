package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOrder() *Order {
	return &Order{
		ID:    "3f1c9a7e-0000-0000-0000-0123456789ab",
		Email: "customer@example.com",
		Items: []Item{
			{ProductID: "prod-1", Name: "Lavender Soap", Price: 9.99, Quantity: 2, Kind: KindProduct},
		},
		ShippingAddress: Address{Name: "Jane Doe", Street: "1 Main St", City: "Soapville", State: "CA", Zip: "90210", Country: "US"},
		Subtotal:        19.98,
		ShippingCost:    10,
		Tax:             0,
		Total:           29.98,
		PaymentStatus:   PaymentCompleted,
		Status:          StatusPaid,
	}
}

// ============================================
// Validation Tests
// ============================================

func TestOrder_Validate_Success(t *testing.T) {
	o := validOrder()
	require.NoError(t, o.Validate())
}

func TestOrder_Validate_MissingEmail(t *testing.T) {
	o := validOrder()
	o.Email = "  "
	assert.ErrorIs(t, o.Validate(), ErrMissingEmail)
}

func TestOrder_Validate_NoProductItems(t *testing.T) {
	o := validOrder()
	o.Items = []Item{{Name: "Shipping charge", Price: 10, Quantity: 1, Kind: KindShipping}}
	o.Subtotal = 0
	o.Total = 10
	assert.ErrorIs(t, o.Validate(), ErrEmptyOrder)
}

func TestOrder_Validate_ZeroQuantity(t *testing.T) {
	o := validOrder()
	o.Items[0].Quantity = 0
	assert.ErrorIs(t, o.Validate(), ErrInvalidQuantity)
}

func TestOrder_Validate_TotalMismatch(t *testing.T) {
	o := validOrder()
	o.Total = 99.99
	assert.ErrorIs(t, o.Validate(), ErrTotalMismatch)
}

func TestOrder_TotalsConsistent_WithinTolerance(t *testing.T) {
	o := validOrder()
	o.Subtotal = 19.99
	o.ShippingCost = 10
	o.Total = 29.99
	assert.True(t, o.TotalsConsistent())

	// float noise inside the tolerance window
	o.Total = 29.995
	assert.True(t, o.TotalsConsistent())

	o.Total = 30.05
	assert.False(t, o.TotalsConsistent())
}

// ============================================
// Shipping Cost Tests
// ============================================

func TestStandardShippingCost(t *testing.T) {
	assert.Equal(t, 10.0, StandardShippingCost(19.99))
	assert.Equal(t, 10.0, StandardShippingCost(99.99))
	assert.Equal(t, 0.0, StandardShippingCost(100))
	assert.Equal(t, 0.0, StandardShippingCost(250.50))
}

// ============================================
// Status Transition Tests
// ============================================

func TestOrder_CanTransitionTo_NominalPath(t *testing.T) {
	o := validOrder()

	o.Status = StatusPending
	assert.True(t, o.CanTransitionTo(StatusPaid))

	o.Status = StatusPaid
	assert.True(t, o.CanTransitionTo(StatusShipped))

	o.Status = StatusShipped
	assert.True(t, o.CanTransitionTo(StatusDelivered))
}

func TestOrder_CanTransitionTo_NeverBackward(t *testing.T) {
	o := validOrder()

	o.Status = StatusPaid
	assert.False(t, o.CanTransitionTo(StatusPending))

	o.Status = StatusShipped
	assert.False(t, o.CanTransitionTo(StatusPaid))

	o.Status = StatusDelivered
	assert.False(t, o.CanTransitionTo(StatusShipped))
}

func TestOrder_CanTransitionTo_CancelFromNonTerminal(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusPaid, StatusShipped} {
		o := validOrder()
		o.Status = status
		assert.True(t, o.CanTransitionTo(StatusCancelled), "from %s", status)
	}
}

func TestOrder_CanTransitionTo_TerminalStates(t *testing.T) {
	o := validOrder()

	o.Status = StatusDelivered
	assert.False(t, o.CanTransitionTo(StatusCancelled))
	assert.ErrorIs(t, o.TransitionError(StatusCancelled), ErrOrderDelivered)

	o.Status = StatusCancelled
	assert.False(t, o.CanTransitionTo(StatusPaid))
	assert.ErrorIs(t, o.TransitionError(StatusPaid), ErrOrderCancelled)
}

func TestOrder_TransitionError_Invalid(t *testing.T) {
	o := validOrder()
	o.Status = StatusShipped
	assert.ErrorIs(t, o.TransitionError(StatusPaid), ErrInvalidStatus)
}

// ============================================
// Helper Tests
// ============================================

func TestOrder_Number(t *testing.T) {
	o := validOrder()
	assert.Equal(t, "456789AB", o.Number())

	o.ID = "abc"
	assert.Equal(t, "ABC", o.Number())
}

func TestOrder_CorrelationID(t *testing.T) {
	o := validOrder()
	o.StripeSessionID = "cs_test_123"
	assert.Equal(t, "cs_test_123", o.CorrelationID())

	o.StripeSessionID = ""
	o.SquareOrderID = "sq-order-9"
	assert.Equal(t, "sq-order-9", o.CorrelationID())
}

func TestOrder_ProductItems_SkipsChargeLines(t *testing.T) {
	o := validOrder()
	o.Items = append(o.Items, Item{Name: "Shipping", Price: 10, Quantity: 1, Kind: KindShipping})

	items := o.ProductItems()
	require.Len(t, items, 1)
	assert.Equal(t, "Lavender Soap", items[0].Name)
}

func TestOrder_CreatedEvent(t *testing.T) {
	o := validOrder()
	o.StripeSessionID = "cs_test_123"

	e := o.CreatedEvent("stripe")

	assert.Equal(t, o.ID, e.OrderID)
	assert.Equal(t, "456789AB", e.OrderNumber)
	assert.Equal(t, "stripe", e.Provider)
	assert.Equal(t, 29.98, e.Total)
	assert.Len(t, e.Items, 1)
}

func TestOrder_ShippedEvent(t *testing.T) {
	o := validOrder()
	o.TrackingNumber = "9400111899223000000001"
	o.ShippingLabel = &Label{Carrier: "USPS", LabelURL: "https://example.com/label.png", TrackingNumber: o.TrackingNumber}

	e := o.ShippedEvent()

	assert.Equal(t, "9400111899223000000001", e.TrackingNumber)
	assert.Equal(t, "USPS", e.Carrier)
	assert.Equal(t, "https://example.com/label.png", e.LabelURL)
	assert.False(t, e.ShippedAt.IsZero())
}
