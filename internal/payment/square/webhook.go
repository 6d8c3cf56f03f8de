package square

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/payment"
)

// SignatureHeader carries Square's base64 HMAC-SHA256 of the raw body.
const SignatureHeader = "x-square-hmacsha256-signature"

// Webhook verifies and parses Square payment webhooks. Square events carry
// only ids, so Parse enriches them through the orders API.
type Webhook struct {
	secret string
	mode   payment.VerifyMode
	client *Client
}

func NewWebhook(secret string, mode payment.VerifyMode, client *Client) *Webhook {
	return &Webhook{secret: secret, mode: mode, client: client}
}

// Verify checks the webhook signature per the configured mode. In permissive
// mode a missing secret or signature is logged and tolerated, but a signature
// that is present and wrong is always rejected.
func (w *Webhook) Verify(body []byte, signature string) error {
	if w.secret == "" {
		if w.mode == payment.VerifyStrict {
			return payment.ErrNoSecret
		}
		log.Warn("square webhook secret not configured, skipping verification")
		return nil
	}
	if signature == "" {
		if w.mode == payment.VerifyStrict {
			return payment.ErrMissingSignature
		}
		log.Warn("square webhook signature missing, skipping verification")
		return nil
	}

	mac := hmac.New(sha256.New, []byte(w.secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return payment.ErrBadSignature
	}
	return nil
}

type event struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			Payment struct {
				ID                string `json:"id"`
				OrderID           string `json:"order_id"`
				Status            string `json:"status"`
				BuyerEmailAddress string `json:"buyer_email_address"`
				PaymentLinkID     string `json:"payment_link_id"`
			} `json:"payment"`
		} `json:"object"`
	} `json:"data"`
}

// Parse normalizes a Square payment event into a payment.Notice. The second
// return is false for event types this receiver ignores and for payment
// events without an order id, which cannot be reconciled and are dropped.
func (w *Webhook) Parse(ctx context.Context, body []byte) (*payment.Notice, bool, error) {
	var evt event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, false, fmt.Errorf("invalid webhook body: %w", err)
	}

	if evt.Type != "payment.created" && evt.Type != "payment.updated" {
		return nil, false, nil
	}

	p := evt.Data.Object.Payment
	if p.OrderID == "" {
		log.WithField("payment_id", p.ID).Warn("square payment event has no order id, dropping")
		return nil, false, nil
	}

	sqOrder, err := w.client.RetrieveOrder(ctx, p.OrderID)
	if err != nil {
		return nil, false, fmt.Errorf("square order enrichment: %w", err)
	}

	notice := &payment.Notice{
		Provider:      payment.ProviderSquare,
		CorrelationID: p.OrderID,
		UserID:        sqOrder.Metadata["userId"],
		Paid:          p.Status == "COMPLETED" || p.Status == "APPROVED",
		PaymentLinkID: p.PaymentLinkID,
		Address:       order.Address{Country: "US"},
	}

	// Amounts arrive in cents; the shipping charge arrives as an ordinary
	// line item the checkout flow added, so it is folded back into the
	// shipping cost here rather than kept as a product line.
	for _, li := range sqOrder.LineItems {
		qty, err := strconv.Atoi(li.Quantity)
		if err != nil || qty < 1 {
			qty = 1
		}
		price := float64(li.BasePriceMoney.Amount) / 100

		if li.Name == "Shipping" {
			notice.ShippingCost += price * float64(qty)
			continue
		}
		notice.Items = append(notice.Items, order.Item{
			Kind:      order.KindProduct,
			ProductID: li.Note,
			Name:      li.Name,
			Price:     price,
			Quantity:  qty,
		})
	}

	// The cart snapshot in order metadata is authoritative when present:
	// it carries product ids and images the line items lack.
	if raw := sqOrder.Metadata["items"]; raw != "" {
		items, err := payment.ParseMetadataItems(raw)
		if err != nil {
			log.WithError(err).Warn("square order metadata items unparseable, falling back to line items")
		} else if len(items) > 0 {
			notice.Items = items
		}
	}
	notice.Subtotal = payment.Subtotal(notice.Items)

	for _, f := range sqOrder.Fulfillments {
		if f.ShipmentDetails == nil || f.ShipmentDetails.Recipient == nil {
			continue
		}
		r := f.ShipmentDetails.Recipient
		notice.Email = r.EmailAddress
		notice.Address.Name = r.DisplayName
		if r.Address != nil {
			notice.Address.Street = r.Address.AddressLine1
			notice.Address.City = r.Address.Locality
			notice.Address.State = r.Address.AdministrativeDistrictLevel1
			notice.Address.Zip = r.Address.PostalCode
			if r.Address.Country != "" {
				notice.Address.Country = r.Address.Country
			}
		}
		break
	}
	if notice.Email == "" {
		notice.Email = p.BuyerEmailAddress
	}

	return notice, true, nil
}
