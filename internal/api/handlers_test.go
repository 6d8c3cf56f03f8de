package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/auth"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/infrastructure/store/mocks"
	"github.com/example/storefront/internal/shipping"
)

func withClaims(r *http.Request, userID, email, role string) *http.Request {
	claims := &auth.Claims{UserID: userID, Email: email, Role: role}
	return r.WithContext(context.WithValue(r.Context(), middleware.UserContextKey, claims))
}

func testProduct() *product.Product {
	return &product.Product{
		ID:        "prod-1",
		Name:      "Lavender Soap",
		Price:     19.99,
		Category:  "soap",
		Inventory: 10,
		Active:    true,
	}
}

func testOrder() *order.Order {
	return &order.Order{
		ID:     "3f1c9a7e-8d2b-4c5a-9e1f-0123456789ab",
		UserID: "user-1",
		Email:  "jane@example.com",
		Items: []order.Item{
			{Kind: order.KindProduct, ProductID: "prod-1", Name: "Lavender Soap", Price: 19.99, Quantity: 1},
		},
		Subtotal:      19.99,
		ShippingCost:  10.00,
		Total:         29.99,
		PaymentStatus: order.PaymentCompleted,
		Status:        order.StatusPaid,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func newHandlersFixture() (*Handlers, *mocks.MockProductStore, *mocks.MockOrderStore, *mocks.MockPublisher) {
	products := mocks.NewMockProductStore()
	orders := mocks.NewMockOrderStore()
	publisher := mocks.NewMockPublisher()
	shippingSvc := shipping.NewService(shipping.NewEasyPostClient(""), orders, publisher, shipping.EPAddress{})
	return NewHandlers(products, orders, shippingSvc, publisher), products, orders, publisher
}

// ============================================
// Product Handler Tests
// ============================================

func TestGetProducts_PublicSeesActiveOnly(t *testing.T) {
	h, products, _, _ := newHandlersFixture()
	products.Seed(testProduct())
	inactive := testProduct()
	inactive.ID = "prod-2"
	inactive.Active = false
	products.Seed(inactive)

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	rec := httptest.NewRecorder()
	h.GetProducts(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []*product.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "prod-1", got[0].ID)
}

func TestGetProducts_AdminSeesInactive(t *testing.T) {
	h, products, _, _ := newHandlersFixture()
	inactive := testProduct()
	inactive.Active = false
	products.Seed(inactive)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/products", nil), "admin-1", "admin@example.com", "admin")
	rec := httptest.NewRecorder()
	h.GetProducts(rec, req)

	var got []*product.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 1)
}

func TestGetProduct_InactiveHiddenFromPublic(t *testing.T) {
	h, products, _, _ := newHandlersFixture()
	inactive := testProduct()
	inactive.Active = false
	products.Seed(inactive)

	req := httptest.NewRequest(http.MethodGet, "/products/prod-1", nil)
	rec := httptest.NewRecorder()
	h.GetProduct(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateProduct_Valid(t *testing.T) {
	h, _, _, _ := newHandlersFixture()

	body := `{"name":"Lavender Soap","price":19.99,"category":"soap","inventory":10}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateProduct(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got product.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.ID)
	assert.True(t, got.Active)
}

func TestCreateProduct_InvalidPrice(t *testing.T) {
	h, _, _, _ := newHandlersFixture()

	body := `{"name":"Lavender Soap","price":-1,"category":"soap"}`
	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.CreateProduct(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteProduct_Deactivates(t *testing.T) {
	h, products, _, _ := newHandlersFixture()
	products.Seed(testProduct())

	req := httptest.NewRequest(http.MethodDelete, "/products/prod-1", nil)
	rec := httptest.NewRecorder()
	h.DeleteProduct(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	p, err := products.GetByID(context.Background(), "prod-1")
	require.NoError(t, err)
	assert.False(t, p.Active)
}

// ============================================
// Order Handler Tests
// ============================================

func TestGetOrders_CustomerSeesOwnOnly(t *testing.T) {
	h, _, orders, _ := newHandlersFixture()
	orders.Seed(testOrder())
	other := testOrder()
	other.ID = "11111111-2222-3333-4444-555555555555"
	other.UserID = "user-2"
	other.Email = "bob@example.com"
	orders.Seed(other)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/orders", nil), "user-1", "jane@example.com", "customer")
	rec := httptest.NewRecorder()
	h.GetOrders(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []*order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "user-1", got[0].UserID)
}

func TestGetOrders_AdminSeesAll(t *testing.T) {
	h, _, orders, _ := newHandlersFixture()
	orders.Seed(testOrder())
	other := testOrder()
	other.ID = "11111111-2222-3333-4444-555555555555"
	other.UserID = "user-2"
	orders.Seed(other)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/orders", nil), "admin-1", "admin@example.com", "admin")
	rec := httptest.NewRecorder()
	h.GetOrders(rec, req)

	var got []*order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestGetOrder_ForbiddenForOtherCustomer(t *testing.T) {
	h, _, orders, _ := newHandlersFixture()
	orders.Seed(testOrder())

	req := withClaims(httptest.NewRequest(http.MethodGet, "/orders/"+testOrder().ID, nil), "user-2", "bob@example.com", "customer")
	rec := httptest.NewRecorder()
	h.GetOrder(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetOrder_GuestOrderMatchedByEmail(t *testing.T) {
	h, _, orders, _ := newHandlersFixture()
	guest := testOrder()
	guest.UserID = ""
	orders.Seed(guest)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/orders/"+guest.ID, nil), "user-1", "jane@example.com", "customer")
	rec := httptest.NewRecorder()
	h.GetOrder(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateOrder_TrackingAdvancesToShippedAndNotifiesOnce(t *testing.T) {
	h, _, orders, publisher := newHandlersFixture()
	orders.Seed(testOrder())

	body := `{"tracking_number":"9405511899223197428490"}`
	req := httptest.NewRequest(http.MethodPut, "/orders/"+testOrder().ID, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.UpdateOrder(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, order.StatusShipped, got.Status)
	assert.Len(t, publisher.EventsOfType(order.EventOrderShipped), 1)

	// Re-setting tracking must not notify again.
	req = httptest.NewRequest(http.MethodPut, "/orders/"+testOrder().ID, strings.NewReader(body))
	rec = httptest.NewRecorder()
	h.UpdateOrder(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, publisher.EventsOfType(order.EventOrderShipped), 1)
}

func TestUpdateOrder_ExplicitStatusWithTracking(t *testing.T) {
	h, _, orders, _ := newHandlersFixture()
	orders.Seed(testOrder())

	body := `{"tracking_number":"9405511899223197428490","status":"delivered"}`
	req := httptest.NewRequest(http.MethodPut, "/orders/"+testOrder().ID, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.UpdateOrder(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, order.StatusDelivered, got.Status)
}

func TestUpdateOrder_BackwardTransitionRejected(t *testing.T) {
	h, _, orders, _ := newHandlersFixture()
	shipped := testOrder()
	shipped.Status = order.StatusShipped
	shipped.TrackingNumber = "9405511899223197428490"
	orders.Seed(shipped)

	body := `{"status":"pending"}`
	req := httptest.NewRequest(http.MethodPut, "/orders/"+shipped.ID, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.UpdateOrder(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateOrder_EmptyBody(t *testing.T) {
	h, _, orders, _ := newHandlersFixture()
	orders.Seed(testOrder())

	req := httptest.NewRequest(http.MethodPut, "/orders/"+testOrder().ID, strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.UpdateOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyInventory_IdempotentSecondCall(t *testing.T) {
	h, _, orders, _ := newHandlersFixture()
	orders.Seed(testOrder())

	path := "/orders/" + testOrder().ID + "/inventory"
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	h.ApplyInventory(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"applied":true`)

	req = httptest.NewRequest(http.MethodPost, path, nil)
	rec = httptest.NewRecorder()
	h.ApplyInventory(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"applied":false`)
}

// ============================================
// Shipping Handler Tests
// ============================================

func TestGetShippingRates_MockQuote(t *testing.T) {
	h, _, orders, _ := newHandlersFixture()
	orders.Seed(testOrder())

	body := `{"order_id":"` + testOrder().ID + `"}`
	req := httptest.NewRequest(http.MethodPost, "/shipping/rates", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.GetShippingRates(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var quote shipping.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, "mock_shipment", quote.ShipmentID)
	assert.NotEmpty(t, quote.Rates)
}

func TestBuyShippingLabel_UnknownOrder(t *testing.T) {
	h, _, _, _ := newHandlersFixture()

	body := `{"order_id":"missing","shipment_id":"mock_shipment","rate_id":"mock_priority"}`
	req := httptest.NewRequest(http.MethodPost, "/shipping/label", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.BuyShippingLabel(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
