package square

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/storefront/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func paymentEventBody(status string) []byte {
	return []byte(`{
		"type": "payment.updated",
		"data": {"object": {"payment": {
			"id": "pay-1",
			"order_id": "sq-order-1",
			"status": "` + status + `",
			"buyer_email_address": "jane@example.com",
			"payment_link_id": "plink-1"
		}}}
	}`)
}

// orderServer serves batch-retrieve for a single canned order.
func orderServer(t *testing.T, sqOrder Order) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/orders/batch-retrieve", r.URL.Path)
		require.Equal(t, "Bearer sq-token", r.Header.Get("Authorization"))

		var req struct {
			LocationID string   `json:"location_id"`
			OrderIDs   []string `json:"order_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "loc-1", req.LocationID)

		json.NewEncoder(w).Encode(map[string]any{"orders": []Order{sqOrder}})
	}))
}

func testOrder() Order {
	return Order{
		ID: "sq-order-1",
		Metadata: map[string]string{
			"userId": "user-1",
			"items":  `[{"productId":"prod-1","name":"Lavender Soap","price":19.99,"quantity":2}]`,
		},
		LineItems: []LineItem{
			{Name: "Lavender Soap", Quantity: "2", BasePriceMoney: Money{Amount: 1999, Currency: "USD"}, Note: "prod-1"},
			{Name: "Shipping", Quantity: "1", BasePriceMoney: Money{Amount: 1000, Currency: "USD"}},
		},
		Fulfillments: []Fulfillment{{ShipmentDetails: &ShipmentDetails{Recipient: &Recipient{
			DisplayName:  "Jane Doe",
			EmailAddress: "jane@example.com",
			Address: &Address{
				AddressLine1:                 "1 Main St",
				Locality:                     "Soapville",
				AdministrativeDistrictLevel1: "CA",
				PostalCode:                   "90210",
				Country:                      "US",
			},
		}}}},
	}
}


// ============================================
// Signature Tests
// ============================================

func TestVerify_Valid(t *testing.T) {
	body := []byte(`{"type":"payment.updated"}`)
	w := NewWebhook("sq-secret", payment.VerifyStrict, nil)

	require.NoError(t, w.Verify(body, sign("sq-secret", body)))
}

func TestVerify_BadSignature(t *testing.T) {
	body := []byte(`{"type":"payment.updated"}`)
	w := NewWebhook("sq-secret", payment.VerifyStrict, nil)

	err := w.Verify(body, sign("other-secret", body))
	assert.ErrorIs(t, err, payment.ErrBadSignature)
}

func TestVerify_StrictRequiresSecret(t *testing.T) {
	w := NewWebhook("", payment.VerifyStrict, nil)

	err := w.Verify([]byte(`{}`), "")
	assert.ErrorIs(t, err, payment.ErrNoSecret)
}

func TestVerify_StrictRequiresSignature(t *testing.T) {
	w := NewWebhook("sq-secret", payment.VerifyStrict, nil)

	err := w.Verify([]byte(`{}`), "")
	assert.ErrorIs(t, err, payment.ErrMissingSignature)
}

func TestVerify_PermissiveSkipsWhenUnsigned(t *testing.T) {
	w := NewWebhook("", payment.VerifyPermissive, nil)
	assert.NoError(t, w.Verify([]byte(`{}`), ""))

	w = NewWebhook("sq-secret", payment.VerifyPermissive, nil)
	assert.NoError(t, w.Verify([]byte(`{}`), ""))
}

func TestVerify_PermissiveStillRejectsBadSignature(t *testing.T) {
	body := []byte(`{}`)
	w := NewWebhook("sq-secret", payment.VerifyPermissive, nil)

	err := w.Verify(body, sign("other-secret", body))
	assert.ErrorIs(t, err, payment.ErrBadSignature)
}

// ============================================
// Parse Tests
// ============================================

func TestParse_CompletedPayment(t *testing.T) {
	srv := orderServer(t, testOrder())
	defer srv.Close()

	client := NewClient("sq-token", "loc-1").WithBaseURL(srv.URL)
	w := NewWebhook("sq-secret", payment.VerifyStrict, client)

	notice, ok, err := w.Parse(context.Background(), paymentEventBody("COMPLETED"))
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, payment.ProviderSquare, notice.Provider)
	assert.Equal(t, "sq-order-1", notice.CorrelationID)
	assert.Equal(t, "user-1", notice.UserID)
	assert.Equal(t, "jane@example.com", notice.Email)
	assert.Equal(t, "plink-1", notice.PaymentLinkID)
	assert.True(t, notice.Paid)

	// Metadata snapshot wins over raw line items.
	require.Len(t, notice.Items, 1)
	assert.Equal(t, "prod-1", notice.Items[0].ProductID)
	assert.Equal(t, 2, notice.Items[0].Quantity)
	assert.InDelta(t, 39.98, notice.Subtotal, 0.001)
	assert.InDelta(t, 10.00, notice.ShippingCost, 0.001)

	assert.Equal(t, "Jane Doe", notice.Address.Name)
	assert.Equal(t, "1 Main St", notice.Address.Street)
	assert.Equal(t, "90210", notice.Address.Zip)
}

func TestParse_ApprovedCountsAsPaid(t *testing.T) {
	srv := orderServer(t, testOrder())
	defer srv.Close()

	w := NewWebhook("", payment.VerifyPermissive, NewClient("sq-token", "loc-1").WithBaseURL(srv.URL))

	notice, ok, err := w.Parse(context.Background(), paymentEventBody("APPROVED"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, notice.Paid)
}

func TestParse_FailedPaymentIsPending(t *testing.T) {
	srv := orderServer(t, testOrder())
	defer srv.Close()

	w := NewWebhook("", payment.VerifyPermissive, NewClient("sq-token", "loc-1").WithBaseURL(srv.URL))

	notice, ok, err := w.Parse(context.Background(), paymentEventBody("FAILED"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, notice.Paid)
}

func TestParse_IgnoresOtherEventTypes(t *testing.T) {
	w := NewWebhook("sq-secret", payment.VerifyStrict, nil)

	_, ok, err := w.Parse(context.Background(), []byte(`{"type":"refund.created"}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParse_DropsPaymentWithoutOrderID(t *testing.T) {
	w := NewWebhook("sq-secret", payment.VerifyStrict, nil)

	body := []byte(`{"type":"payment.created","data":{"object":{"payment":{"id":"pay-1","status":"COMPLETED"}}}}`)
	_, ok, err := w.Parse(context.Background(), body)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParse_MalformedBody(t *testing.T) {
	w := NewWebhook("sq-secret", payment.VerifyStrict, nil)

	_, _, err := w.Parse(context.Background(), []byte(`not json`))
	assert.Error(t, err)
}

func TestParse_FallsBackToLineItemsWithoutMetadata(t *testing.T) {
	sqOrder := testOrder()
	delete(sqOrder.Metadata, "items")
	srv := orderServer(t, sqOrder)
	defer srv.Close()

	w := NewWebhook("", payment.VerifyPermissive, NewClient("sq-token", "loc-1").WithBaseURL(srv.URL))

	notice, ok, err := w.Parse(context.Background(), paymentEventBody("COMPLETED"))
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, notice.Items, 1)
	assert.Equal(t, "Lavender Soap", notice.Items[0].Name)
	assert.InDelta(t, 39.98, notice.Subtotal, 0.001)
	assert.InDelta(t, 10.00, notice.ShippingCost, 0.001)
}

func TestParse_EnrichmentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := NewWebhook("", payment.VerifyPermissive, NewClient("sq-token", "loc-1").WithBaseURL(srv.URL))

	_, _, err := w.Parse(context.Background(), paymentEventBody("COMPLETED"))
	assert.Error(t, err)
}
