package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/payment"
	log "github.com/sirupsen/logrus"
)

// eventCheckoutCompleted is the only event type acted on; everything else
// is acknowledged and dropped.
const eventCheckoutCompleted = "checkout.session.completed"

// Webhook authenticates and normalizes Stripe webhook deliveries.
type Webhook struct {
	secret string
	mode   payment.VerifyMode
}

func NewWebhook(secret string, mode payment.VerifyMode) *Webhook {
	return &Webhook{secret: secret, mode: mode}
}

// Verify authenticates the raw body against the Stripe-Signature header
// according to the configured verify mode.
func (w *Webhook) Verify(body []byte, signature string) error {
	if w.secret == "" {
		if w.mode == payment.VerifyStrict {
			return payment.ErrNoSecret
		}
		log.Warn("stripe webhook secret not configured, skipping signature verification")
		return nil
	}
	if signature == "" && w.mode == payment.VerifyPermissive {
		log.Warn("stripe webhook delivered without signature, accepted in permissive mode")
		return nil
	}
	return CheckSignature(w.secret, body, signature, time.Now())
}

type event struct {
	Type string `json:"type"`
	Data struct {
		Object session `json:"object"`
	} `json:"data"`
}

type session struct {
	ID              string `json:"id"`
	PaymentIntent   string `json:"payment_intent"`
	PaymentStatus   string `json:"payment_status"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
	Metadata        map[string]string `json:"metadata"`
	ShippingDetails *shippingDetails  `json:"shipping_details"`
	// Newer API versions moved shipping under collected_information.
	CollectedInformation struct {
		ShippingDetails *shippingDetails `json:"shipping_details"`
	} `json:"collected_information"`
}

type shippingDetails struct {
	Name    string `json:"name"`
	Address struct {
		Line1      string `json:"line1"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postal_code"`
		Country    string `json:"country"`
	} `json:"address"`
}

// Parse filters and normalizes a verified event. The second return value is
// false for event types this receiver ignores.
func (w *Webhook) Parse(body []byte) (*payment.Notice, bool, error) {
	var e event
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, false, fmt.Errorf("invalid webhook body: %w", err)
	}
	if e.Type != eventCheckoutCompleted {
		return nil, false, nil
	}

	s := e.Data.Object

	items, err := payment.ParseMetadataItems(s.Metadata["items"])
	if err != nil {
		return nil, false, err
	}

	subtotal := payment.Subtotal(items)

	email := s.CustomerDetails.Email
	if email == "" {
		email = s.CustomerEmail
	}

	shipping := s.ShippingDetails
	if shipping == nil {
		shipping = s.CollectedInformation.ShippingDetails
	}

	address := order.Address{Country: "US"}
	name := s.CustomerDetails.Name
	if shipping != nil {
		if shipping.Name != "" {
			name = shipping.Name
		}
		address.Street = shipping.Address.Line1
		address.City = shipping.Address.City
		address.State = shipping.Address.State
		address.Zip = shipping.Address.PostalCode
		if shipping.Address.Country != "" {
			address.Country = shipping.Address.Country
		}
	}
	address.Name = name

	// Checkout sessions don't carry the shipping charge as a line item;
	// it is recomputed from the store's flat-rate policy.
	return &payment.Notice{
		Provider:        payment.ProviderStripe,
		CorrelationID:   s.ID,
		UserID:          s.Metadata["userId"],
		Email:           email,
		Items:           items,
		Address:         address,
		Subtotal:        subtotal,
		ShippingCost:    order.StandardShippingCost(subtotal),
		Tax:             0,
		Paid:            s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required",
		PaymentIntentID: s.PaymentIntent,
	}, true, nil
}
