package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/domain/order"
)

func TestParseVerifyMode(t *testing.T) {
	m, err := ParseVerifyMode("strict")
	require.NoError(t, err)
	assert.Equal(t, VerifyStrict, m)

	m, err = ParseVerifyMode("permissive")
	require.NoError(t, err)
	assert.Equal(t, VerifyPermissive, m)

	_, err = ParseVerifyMode("lenient")
	assert.Error(t, err)
}

func TestNotice_Order_Paid(t *testing.T) {
	n := &Notice{
		Provider:      ProviderStripe,
		CorrelationID: "cs_test_123",
		Email:         "jane@example.com",
		Items: []order.Item{
			{ProductID: "prod-1", Name: "Lavender Soap", Price: 12.50, Quantity: 2, Kind: order.KindProduct},
		},
		Subtotal:        25.00,
		ShippingCost:    5.00,
		Tax:             2.10,
		Paid:            true,
		PaymentIntentID: "pi_123",
	}

	now := time.Now().UTC()
	o := n.Order("order-1", now)

	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, order.StatusPaid, o.Status)
	assert.Equal(t, order.PaymentCompleted, o.PaymentStatus)
	assert.Equal(t, 32.10, o.Total)
	assert.Equal(t, "cs_test_123", o.StripeSessionID)
	assert.Equal(t, "pi_123", o.StripePaymentIntentID)
	assert.Empty(t, o.SquareOrderID)
	assert.Equal(t, now, o.CreatedAt)
}

func TestNotice_Order_UnpaidIsPending(t *testing.T) {
	n := &Notice{
		Provider:      ProviderSquare,
		CorrelationID: "sq-order-1",
		Email:         "jane@example.com",
		Paid:          false,
		PaymentLinkID: "plink-1",
	}

	o := n.Order("order-2", time.Now())

	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.Equal(t, "sq-order-1", o.SquareOrderID)
	assert.Equal(t, "plink-1", o.SquarePaymentLinkID)
	assert.Empty(t, o.StripeSessionID)
}

func TestParseMetadataItems(t *testing.T) {
	raw := `[{"productId":"prod-1","name":"Lavender Soap","price":12.5,"quantity":2,"image":"a.jpg"}]`
	items, err := ParseMetadataItems(raw)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "prod-1", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, order.KindProduct, items[0].Kind)

	items, err = ParseMetadataItems("")
	require.NoError(t, err)
	assert.Nil(t, items)

	_, err = ParseMetadataItems("{not json")
	assert.Error(t, err)
}

func TestSubtotal_SkipsNonProductLines(t *testing.T) {
	items := []order.Item{
		{Name: "Lavender Soap", Price: 12.50, Quantity: 2, Kind: order.KindProduct},
		{Name: "Shipping", Price: 5.00, Quantity: 1, Kind: order.KindShipping},
		{Name: "Untagged", Price: 1.00, Quantity: 1},
	}
	assert.Equal(t, 26.00, Subtotal(items))
}
