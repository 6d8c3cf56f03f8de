package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/payment"
	"github.com/example/storefront/internal/payment/square"
	"github.com/example/storefront/internal/payment/stripe"
)

// CheckoutHandlers creates provider-hosted checkout sessions. The cart lives
// client-side; the item snapshot is echoed into provider metadata, and the
// order itself is only ever created by the provider's webhook.
type CheckoutHandlers struct {
	stripe  *stripe.Client
	square  *square.Client
	baseURL string
}

func NewCheckoutHandlers(stripeClient *stripe.Client, squareClient *square.Client, baseURL string) *CheckoutHandlers {
	return &CheckoutHandlers{stripe: stripeClient, square: squareClient, baseURL: baseURL}
}

type checkoutRequest struct {
	Items []payment.MetadataItem `json:"items"`
}

func (req *checkoutRequest) valid() bool {
	if len(req.Items) == 0 {
		return false
	}
	for _, item := range req.Items {
		if item.Name == "" || item.Quantity < 1 || item.Price < 0 {
			return false
		}
	}
	return true
}

func (h *CheckoutHandlers) StripeCheckout(w http.ResponseWriter, r *http.Request) {
	if !h.stripe.Configured() {
		respondJSONError(w, "Stripe checkout is not available", http.StatusServiceUnavailable)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.valid() {
		respondJSONError(w, "Invalid cart", http.StatusBadRequest)
		return
	}

	session, err := h.stripe.CreateCheckoutSession(r.Context(), stripe.CheckoutParams{
		Items:      req.Items,
		UserID:     claims.UserID,
		Email:      claims.Email,
		SuccessURL: h.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.baseURL + "/checkout/cancel",
	})
	if err != nil {
		log.WithError(err).Error("creating stripe checkout session failed")
		respondJSONError(w, "Failed to create checkout session", http.StatusBadGateway)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"session_id":   session.ID,
		"checkout_url": session.URL,
	})
}

func (h *CheckoutHandlers) SquareCheckout(w http.ResponseWriter, r *http.Request) {
	if !h.square.Configured() {
		respondJSONError(w, "Square checkout is not available", http.StatusServiceUnavailable)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.valid() {
		respondJSONError(w, "Invalid cart", http.StatusBadRequest)
		return
	}

	var subtotal float64
	lineItems := make([]square.LineItem, 0, len(req.Items)+1)
	for _, item := range req.Items {
		subtotal += item.Price * float64(item.Quantity)
		lineItems = append(lineItems, square.LineItem{
			Name:           item.Name,
			Quantity:       strconv.Itoa(item.Quantity),
			BasePriceMoney: square.Money{Amount: toCents(item.Price), Currency: "USD"},
			Note:           item.ProductID,
		})
	}
	if shipping := order.StandardShippingCost(subtotal); shipping > 0 {
		lineItems = append(lineItems, square.LineItem{
			Name:           "Shipping",
			Quantity:       "1",
			BasePriceMoney: square.Money{Amount: toCents(shipping), Currency: "USD"},
		})
	}

	itemsJSON, err := json.Marshal(req.Items)
	if err != nil {
		respondJSONError(w, "Invalid cart", http.StatusBadRequest)
		return
	}
	metadata := map[string]string{
		"userId": claims.UserID,
		"items":  string(itemsJSON),
	}

	sqOrder, err := h.square.CreateOrder(r.Context(), lineItems, metadata)
	if err != nil {
		log.WithError(err).Error("creating square order failed")
		respondJSONError(w, "Failed to create checkout", http.StatusBadGateway)
		return
	}

	link, err := h.square.CreatePaymentLink(r.Context(), sqOrder.ID)
	if err != nil {
		log.WithError(err).Error("creating square payment link failed")
		respondJSONError(w, "Failed to create checkout", http.StatusBadGateway)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"order_id":     sqOrder.ID,
		"checkout_url": link.URL,
	})
}

func toCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}
