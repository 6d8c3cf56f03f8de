package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/payment"
)

const defaultBaseURL = "https://api.stripe.com"

var ErrNotConfigured = errors.New("stripe is not configured")

// Client is a minimal Stripe REST client covering checkout-session
// creation. The API takes form-encoded bodies with indexed bracket keys.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at a test server.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// CheckoutParams describes a checkout session for a client-side cart. The
// item list is echoed into session metadata so the webhook can rebuild the
// order without trusting any later client input.
type CheckoutParams struct {
	Items      []payment.MetadataItem
	UserID     string
	Email      string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the subset of the session object the storefront needs.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var subtotal float64
	for _, item := range params.Items {
		subtotal += item.Price * float64(item.Quantity)
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	form.Set("customer_email", params.Email)
	form.Set("shipping_address_collection[allowed_countries][0]", "US")

	for i, item := range params.Items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
		form.Set(prefix+"[price_data][currency]", "usd")
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(toCents(item.Price), 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
	}

	if shipping := toCents(order.StandardShippingCost(subtotal)); shipping > 0 {
		form.Set("shipping_options[0][shipping_rate_data][display_name]", "Standard Shipping")
		form.Set("shipping_options[0][shipping_rate_data][type]", "fixed_amount")
		form.Set("shipping_options[0][shipping_rate_data][fixed_amount][amount]", strconv.FormatInt(shipping, 10))
		form.Set("shipping_options[0][shipping_rate_data][fixed_amount][currency]", "usd")
	}

	itemsJSON, err := json.Marshal(params.Items)
	if err != nil {
		return nil, err
	}
	form.Set("metadata[userId]", params.UserID)
	form.Set("metadata[items]", string(itemsJSON))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/checkout/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("stripe checkout session failed: %s: %s", resp.Status, body)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

func toCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}
