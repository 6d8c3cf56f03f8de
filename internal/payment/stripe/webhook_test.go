package stripe

import (
	"fmt"
	"testing"
	"time"

	"github.com/example/storefront/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkoutCompletedBody = `{
	"type": "checkout.session.completed",
	"data": {
		"object": {
			"id": "cs_test_abc123",
			"payment_intent": "pi_test_456",
			"payment_status": "paid",
			"customer_details": {"email": "jane@example.com", "name": "Jane Doe"},
			"metadata": {
				"userId": "user-1",
				"items": "[{\"productId\":\"prod-1\",\"name\":\"Lavender Soap\",\"price\":19.99,\"quantity\":1}]"
			},
			"shipping_details": {
				"name": "Jane Doe",
				"address": {"line1": "1 Main St", "city": "Soapville", "state": "CA", "postal_code": "90210", "country": "US"}
			}
		}
	}
}`

// ============================================
// Signature Tests
// ============================================

func TestCheckSignature_Valid(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"type":"checkout.session.completed"}`)
	now := time.Now()

	header := SignPayload(secret, body, now)

	require.NoError(t, CheckSignature(secret, body, header, now))
}

func TestCheckSignature_TamperedBody(t *testing.T) {
	secret := "whsec_test"
	now := time.Now()
	header := SignPayload(secret, []byte(`{"a":1}`), now)

	err := CheckSignature(secret, []byte(`{"a":2}`), header, now)
	assert.ErrorIs(t, err, payment.ErrBadSignature)
}

func TestCheckSignature_WrongSecret(t *testing.T) {
	body := []byte(`{}`)
	now := time.Now()
	header := SignPayload("whsec_one", body, now)

	err := CheckSignature("whsec_two", body, header, now)
	assert.ErrorIs(t, err, payment.ErrBadSignature)
}

func TestCheckSignature_StaleTimestamp(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{}`)
	signedAt := time.Now().Add(-10 * time.Minute)

	header := SignPayload(secret, body, signedAt)

	err := CheckSignature(secret, body, header, time.Now())
	assert.ErrorIs(t, err, payment.ErrBadSignature)
}

func TestCheckSignature_MissingHeader(t *testing.T) {
	err := CheckSignature("whsec_test", []byte(`{}`), "", time.Now())
	assert.ErrorIs(t, err, payment.ErrMissingSignature)
}

func TestCheckSignature_MalformedHeader(t *testing.T) {
	err := CheckSignature("whsec_test", []byte(`{}`), "garbage", time.Now())
	assert.ErrorIs(t, err, payment.ErrBadSignature)
}

func TestCheckSignature_MultipleV1Candidates(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{}`)
	now := time.Now()

	valid := SignPayload(secret, body, now)
	header := fmt.Sprintf("%s,v1=deadbeef", valid)

	require.NoError(t, CheckSignature(secret, body, header, now))
}

// ============================================
// Verify Mode Tests
// ============================================

func TestWebhook_Verify_StrictRequiresSecret(t *testing.T) {
	w := NewWebhook("", payment.VerifyStrict)
	err := w.Verify([]byte(`{}`), "t=1,v1=abc")
	assert.ErrorIs(t, err, payment.ErrNoSecret)
}

func TestWebhook_Verify_PermissiveSkipsWithoutSecret(t *testing.T) {
	w := NewWebhook("", payment.VerifyPermissive)
	assert.NoError(t, w.Verify([]byte(`{}`), ""))
}

func TestWebhook_Verify_PermissiveSkipsMissingSignature(t *testing.T) {
	w := NewWebhook("whsec_test", payment.VerifyPermissive)
	assert.NoError(t, w.Verify([]byte(`{}`), ""))
}

func TestWebhook_Verify_PermissiveStillRejectsBadSignature(t *testing.T) {
	w := NewWebhook("whsec_test", payment.VerifyPermissive)
	header := SignPayload("wrong_secret", []byte(`{}`), time.Now())
	assert.ErrorIs(t, w.Verify([]byte(`{}`), header), payment.ErrBadSignature)
}

func TestWebhook_Verify_StrictRejectsMissingSignature(t *testing.T) {
	w := NewWebhook("whsec_test", payment.VerifyStrict)
	assert.ErrorIs(t, w.Verify([]byte(`{}`), ""), payment.ErrMissingSignature)
}

// ============================================
// Parse Tests
// ============================================

func TestWebhook_Parse_CheckoutCompleted(t *testing.T) {
	w := NewWebhook("", payment.VerifyPermissive)

	notice, ok, err := w.Parse([]byte(checkoutCompletedBody))

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, payment.ProviderStripe, notice.Provider)
	assert.Equal(t, "cs_test_abc123", notice.CorrelationID)
	assert.Equal(t, "pi_test_456", notice.PaymentIntentID)
	assert.Equal(t, "jane@example.com", notice.Email)
	assert.Equal(t, "user-1", notice.UserID)
	assert.True(t, notice.Paid)

	require.Len(t, notice.Items, 1)
	assert.Equal(t, "Lavender Soap", notice.Items[0].Name)
	assert.Equal(t, 19.99, notice.Items[0].Price)

	// below the free-shipping threshold
	assert.Equal(t, 19.99, notice.Subtotal)
	assert.Equal(t, 10.0, notice.ShippingCost)
	assert.Equal(t, 0.0, notice.Tax)

	assert.Equal(t, "1 Main St", notice.Address.Street)
	assert.Equal(t, "Jane Doe", notice.Address.Name)
	assert.Equal(t, "US", notice.Address.Country)
}

func TestWebhook_Parse_IgnoresOtherEventTypes(t *testing.T) {
	w := NewWebhook("", payment.VerifyPermissive)

	notice, ok, err := w.Parse([]byte(`{"type":"invoice.paid","data":{"object":{}}}`))

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, notice)
}

func TestWebhook_Parse_MalformedBody(t *testing.T) {
	w := NewWebhook("", payment.VerifyPermissive)
	_, _, err := w.Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestWebhook_Parse_UnpaidSessionIsPending(t *testing.T) {
	body := `{
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_unpaid",
			"payment_status": "unpaid",
			"customer_email": "x@example.com",
			"metadata": {"items": "[{\"productId\":\"p\",\"name\":\"Soap\",\"price\":5,\"quantity\":1}]"}
		}}
	}`
	w := NewWebhook("", payment.VerifyPermissive)

	notice, ok, err := w.Parse([]byte(body))

	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, notice.Paid)
	assert.Equal(t, "x@example.com", notice.Email)
}

func TestWebhook_Parse_FreeShippingAboveThreshold(t *testing.T) {
	body := `{
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_big",
			"payment_status": "paid",
			"customer_email": "x@example.com",
			"metadata": {"items": "[{\"productId\":\"p\",\"name\":\"Gift Set\",\"price\":60,\"quantity\":2}]"}
		}}
	}`
	w := NewWebhook("", payment.VerifyPermissive)

	notice, ok, err := w.Parse([]byte(body))

	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 120.0, notice.Subtotal)
	assert.Equal(t, 0.0, notice.ShippingCost)
}
