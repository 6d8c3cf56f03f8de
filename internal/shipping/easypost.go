package shipping

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
)

const easypostBaseURL = "https://api.easypost.com"

var ErrNotConfigured = errors.New("easypost is not configured")

// EasyPostClient is a thin wrapper over the EasyPost shipments API: create a
// shipment to get rates, then buy one of them.
type EasyPostClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewEasyPostClient(apiKey string) *EasyPostClient {
	return &EasyPostClient{
		apiKey:  apiKey,
		baseURL: easypostBaseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at a test server.
func (c *EasyPostClient) WithBaseURL(baseURL string) *EasyPostClient {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

func (c *EasyPostClient) Configured() bool {
	return c != nil && c.apiKey != ""
}

// EPAddress is EasyPost's address shape.
type EPAddress struct {
	Name    string `json:"name,omitempty"`
	Street1 string `json:"street1"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// EPParcel is weight in ounces and dimensions in inches.
type EPParcel struct {
	WeightOz float64 `json:"weight"`
	Length   float64 `json:"length"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

type EPRate struct {
	ID              string `json:"id"`
	Carrier         string `json:"carrier"`
	Service         string `json:"service"`
	Rate            string `json:"rate"`
	DeliveryDays    int    `json:"delivery_days"`
	EstDeliveryDays int    `json:"est_delivery_days"`
}

type EPPostageLabel struct {
	LabelURL string `json:"label_url"`
}

type EPShipment struct {
	ID           string          `json:"id"`
	Rates        []EPRate        `json:"rates"`
	TrackingCode string          `json:"tracking_code"`
	SelectedRate *EPRate         `json:"selected_rate"`
	PostageLabel *EPPostageLabel `json:"postage_label"`
}

type epError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateShipment registers a shipment and returns it with carrier rates.
func (c *EasyPostClient) CreateShipment(ctx context.Context, from, to EPAddress, parcel EPParcel) (*EPShipment, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	body := map[string]any{
		"shipment": map[string]any{
			"from_address": from,
			"to_address":   to,
			"parcel":       parcel,
		},
	}
	return c.post(ctx, "/v2/shipments", body)
}

// BuyShipment purchases the given rate, yielding tracking code and label.
func (c *EasyPostClient) BuyShipment(ctx context.Context, shipmentID, rateID string) (*EPShipment, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	body := map[string]any{
		"rate": map[string]string{"id": rateID},
	}
	return c.post(ctx, "/v2/shipments/"+shipmentID+"/buy", body)
}

func (c *EasyPostClient) post(ctx context.Context, path string, reqBody any) (*EPShipment, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	// EasyPost authenticates with the api key as the basic-auth username.
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var ep epError
		if json.Unmarshal(raw, &ep) == nil && ep.Error.Message != "" {
			return nil, fmt.Errorf("easypost %s: %s", path, ep.Error.Message)
		}
		return nil, fmt.Errorf("easypost %s failed: %s", path, resp.Status)
	}

	var shipment EPShipment
	if err := json.Unmarshal(raw, &shipment); err != nil {
		return nil, fmt.Errorf("easypost response parsing: %w", err)
	}
	return &shipment, nil
}
