package square

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultBaseURL = "https://connect.squareup.com"

var ErrNotConfigured = errors.New("square is not configured")

// Client is a minimal Square REST client: order retrieval for webhook
// enrichment, plus order and payment-link creation for checkout.
type Client struct {
	token      string
	locationID string
	baseURL    string
	http       *http.Client
}

func NewClient(token, locationID string) *Client {
	return &Client{
		token:      token,
		locationID: locationID,
		baseURL:    defaultBaseURL,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at a test server.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.token != "" && c.locationID != ""
}

// Money is Square's integer smallest-currency-unit amount.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type LineItem struct {
	Name           string `json:"name"`
	Quantity       string `json:"quantity"`
	BasePriceMoney Money  `json:"base_price_money"`
	Note           string `json:"note,omitempty"`
}

type Address struct {
	AddressLine1                 string `json:"address_line_1"`
	Locality                     string `json:"locality"`
	AdministrativeDistrictLevel1 string `json:"administrative_district_level_1"`
	PostalCode                   string `json:"postal_code"`
	Country                      string `json:"country"`
}

type Recipient struct {
	DisplayName  string   `json:"display_name"`
	EmailAddress string   `json:"email_address"`
	Address      *Address `json:"address"`
}

type ShipmentDetails struct {
	Recipient *Recipient `json:"recipient"`
}

type Fulfillment struct {
	ShipmentDetails *ShipmentDetails `json:"shipment_details"`
}

// Order is the subset of Square's order object the receiver needs.
type Order struct {
	ID           string            `json:"id"`
	LocationID   string            `json:"location_id"`
	Metadata     map[string]string `json:"metadata"`
	LineItems    []LineItem        `json:"line_items"`
	Fulfillments []Fulfillment     `json:"fulfillments"`
}

type apiError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

// RetrieveOrder fetches full order detail for a webhook event that only
// carried the order id.
func (c *Client) RetrieveOrder(ctx context.Context, orderID string) (*Order, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	reqBody := map[string]any{
		"location_id": c.locationID,
		"order_ids":   []string{orderID},
	}

	var resp struct {
		Orders []Order    `json:"orders"`
		Errors []apiError `json:"errors"`
	}
	if err := c.post(ctx, "/v2/orders/batch-retrieve", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("square order retrieval: %s: %s", resp.Errors[0].Code, resp.Errors[0].Detail)
	}
	if len(resp.Orders) == 0 {
		return nil, fmt.Errorf("square order %s not found", orderID)
	}
	return &resp.Orders[0], nil
}

// CreateOrder creates an order carrying the cart snapshot in metadata, the
// prerequisite for a multi-item payment link.
func (c *Client) CreateOrder(ctx context.Context, lineItems []LineItem, metadata map[string]string) (*Order, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	reqBody := map[string]any{
		"idempotency_key": uuid.New().String(),
		"order": map[string]any{
			"location_id": c.locationID,
			"line_items":  lineItems,
			"metadata":    metadata,
		},
	}

	var resp struct {
		Order  *Order     `json:"order"`
		Errors []apiError `json:"errors"`
	}
	if err := c.post(ctx, "/v2/orders", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("square order creation: %s: %s", resp.Errors[0].Code, resp.Errors[0].Detail)
	}
	if resp.Order == nil || resp.Order.ID == "" {
		return nil, errors.New("square order creation returned no order")
	}
	return resp.Order, nil
}

// PaymentLink is a hosted checkout URL for an order.
type PaymentLink struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (c *Client) CreatePaymentLink(ctx context.Context, orderID string) (*PaymentLink, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	reqBody := map[string]any{
		"idempotency_key": uuid.New().String(),
		"order_id":        orderID,
	}

	var resp struct {
		PaymentLink *PaymentLink `json:"payment_link"`
		Errors      []apiError   `json:"errors"`
	}
	if err := c.post(ctx, "/v2/online-checkout/payment-links", reqBody, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("square payment link: %s: %s", resp.Errors[0].Code, resp.Errors[0].Detail)
	}
	if resp.PaymentLink == nil {
		return nil, errors.New("square payment link creation returned no link")
	}
	return resp.PaymentLink, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, out any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("square %s failed: %s: %s", path, resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
