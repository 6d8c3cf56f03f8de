package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/payment"
	"github.com/example/storefront/internal/payment/square"
	"github.com/example/storefront/internal/payment/stripe"
	"github.com/example/storefront/internal/webhook"
)

// maxWebhookBody caps provider payloads; real events are a few KB.
const maxWebhookBody = 1 << 20

// WebhookHandlers terminates provider webhook deliveries. Everything past
// signature verification is acknowledged with 200 even on processing
// failure, because provider retries cannot fix an internal error and the
// reconciliation flow is idempotent anyway.
type WebhookHandlers struct {
	stripe   *stripe.Webhook
	square   *square.Webhook
	receiver *webhook.Receiver
}

func NewWebhookHandlers(stripeWebhook *stripe.Webhook, squareWebhook *square.Webhook, receiver *webhook.Receiver) *WebhookHandlers {
	return &WebhookHandlers{stripe: stripeWebhook, square: squareWebhook, receiver: receiver}
}

func (h *WebhookHandlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := readWebhookBody(w, r)
	if !ok {
		return
	}

	if err := h.stripe.Verify(body, r.Header.Get("Stripe-Signature")); err != nil {
		respondSignatureError(w, err)
		return
	}

	notice, relevant, err := h.stripe.Parse(body)
	if err != nil {
		log.WithError(err).Warn("stripe webhook parsing failed")
		acknowledge(w)
		return
	}
	if !relevant {
		acknowledge(w)
		return
	}

	if _, _, err := h.receiver.Process(r.Context(), notice); err != nil {
		log.WithError(err).WithField("session_id", notice.CorrelationID).Error("stripe webhook processing failed")
	}
	acknowledge(w)
}

func (h *WebhookHandlers) SquareWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := readWebhookBody(w, r)
	if !ok {
		return
	}

	if err := h.square.Verify(body, r.Header.Get(square.SignatureHeader)); err != nil {
		respondSignatureError(w, err)
		return
	}

	notice, relevant, err := h.square.Parse(r.Context(), body)
	if err != nil {
		log.WithError(err).Warn("square webhook parsing failed")
		acknowledge(w)
		return
	}
	if !relevant {
		acknowledge(w)
		return
	}

	if _, _, err := h.receiver.Process(r.Context(), notice); err != nil {
		log.WithError(err).WithField("square_order_id", notice.CorrelationID).Error("square webhook processing failed")
	}
	acknowledge(w)
}

func readWebhookBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil || len(body) == 0 || !json.Valid(body) {
		respondJSONError(w, "Invalid webhook body", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func respondSignatureError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payment.ErrBadSignature):
		respondJSONError(w, "Webhook signature verification failed", http.StatusForbidden)
	default:
		respondJSONError(w, err.Error(), http.StatusBadRequest)
	}
}

func acknowledge(w http.ResponseWriter) {
	respondJSON(w, http.StatusOK, map[string]bool{"received": true})
}
