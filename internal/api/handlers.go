package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/example/storefront/internal/api/middleware"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/infrastructure/store"
	"github.com/example/storefront/internal/shipping"
	"github.com/example/storefront/internal/webhook"
)

// Handlers serves the catalog, order, and fulfillment endpoints.
type Handlers struct {
	products  store.ProductStore
	orders    store.OrderStore
	shipping  *shipping.Service
	publisher webhook.Publisher
}

func NewHandlers(products store.ProductStore, orders store.OrderStore, shippingSvc *shipping.Service, publisher webhook.Publisher) *Handlers {
	return &Handlers{
		products:  products,
		orders:    orders,
		shipping:  shippingSvc,
		publisher: publisher,
	}
}

// Product Handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	filter := store.ProductFilter{
		// Inactive products stay visible to admins for catalog management.
		ActiveOnly: !isAdmin(r),
		Category:   r.URL.Query().Get("category"),
		Featured:   r.URL.Query().Get("featured") == "true",
	}

	products, err := h.products.List(r.Context(), filter)
	if err != nil {
		log.WithError(err).Error("listing products failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []*product.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/products/")

	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			respondJSONError(w, "Product not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("getting product failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !p.Active && !isAdmin(r) {
		respondJSONError(w, "Product not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p product.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	p.ID = uuid.New().String()
	p.Active = true
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt

	if err := h.products.Create(r.Context(), &p); err != nil {
		if isValidationError(err) {
			respondJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.WithError(err).Error("creating product failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, &p)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/products/")

	existing, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			respondJSONError(w, "Product not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("getting product failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var p product.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()

	if err := h.products.Update(r.Context(), &p); err != nil {
		if isValidationError(err) {
			respondJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.WithError(err).Error("updating product failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, &p)
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/products/")

	if err := h.products.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, product.ErrProductNotFound) {
			respondJSONError(w, "Product not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("deactivating product failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Product deactivated"})
}

// Order Handlers

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	filter := store.OrderFilter{Status: order.Status(r.URL.Query().Get("status"))}
	if !claims.IsAdmin() {
		filter.UserID = claims.UserID
		filter.Email = claims.Email
	}

	orders, err := h.orders.List(r.Context(), filter)
	if err != nil {
		log.WithError(err).Error("listing orders failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")

	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondJSONError(w, "Order not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("getting order failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !claims.IsAdmin() && o.UserID != claims.UserID && o.Email != claims.Email {
		respondJSONError(w, "Forbidden", http.StatusForbidden)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// UpdateOrderRequest carries admin-editable order fields. A tracking number
// routes through the first-assignment path so shipped notifications cannot
// fire twice.
type UpdateOrderRequest struct {
	Status         *order.Status        `json:"status"`
	PaymentStatus  *order.PaymentStatus `json:"payment_status"`
	Notes          *string              `json:"notes"`
	TrackingNumber *string              `json:"tracking_number"`
}

func (h *Handlers) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/orders/")

	var req UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var updated *order.Order
	if req.TrackingNumber != nil && *req.TrackingNumber != "" {
		o, first, err := h.orders.AssignTracking(r.Context(), id, *req.TrackingNumber, req.Status, nil)
		if err != nil {
			respondOrderError(w, err)
			return
		}
		if first {
			if err := h.publisher.PublishEvent(r.Context(), o.ID, order.EventOrderShipped, o.ShippedEvent()); err != nil {
				log.WithError(err).WithField("order_id", o.ID).Error("publishing OrderShipped failed")
			}
		}
		updated = o

		// Status was consumed by the tracking assignment.
		req.Status = nil
	}

	if req.Status != nil || req.PaymentStatus != nil || req.Notes != nil {
		o, err := h.orders.UpdateFields(r.Context(), id, store.OrderUpdate{
			Status:        req.Status,
			PaymentStatus: req.PaymentStatus,
			Notes:         req.Notes,
		})
		if err != nil {
			respondOrderError(w, err)
			return
		}
		updated = o
	}

	if updated == nil {
		respondJSONError(w, "No fields to update", http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *Handlers) ApplyInventory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(extractPathParam(r.URL.Path, "/orders/"), "/inventory")

	applied, err := h.orders.ApplyInventory(r.Context(), id)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// Shipping Handlers

type ratesRequest struct {
	OrderID  string  `json:"order_id"`
	WeightOz float64 `json:"weight_oz"`
}

func (h *Handlers) GetShippingRates(w http.ResponseWriter, r *http.Request) {
	var req ratesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	quote, err := h.shipping.GetRates(r.Context(), req.OrderID, req.WeightOz)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondJSONError(w, "Order not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("quoting shipping rates failed")
		respondJSONError(w, "Failed to get shipping rates", http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

type buyLabelRequest struct {
	OrderID    string `json:"order_id"`
	ShipmentID string `json:"shipment_id"`
	RateID     string `json:"rate_id"`
}

func (h *Handlers) BuyShippingLabel(w http.ResponseWriter, r *http.Request) {
	var req buyLabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	o, err := h.shipping.BuyLabel(r.Context(), req.OrderID, req.ShipmentID, req.RateID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondJSONError(w, "Order not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("buying shipping label failed")
		respondJSONError(w, "Failed to buy shipping label", http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// Helpers

func respondOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		respondJSONError(w, "Order not found", http.StatusNotFound)
	case errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrOrderDelivered),
		errors.Is(err, order.ErrOrderCancelled):
		respondJSONError(w, err.Error(), http.StatusConflict)
	default:
		log.WithError(err).Error("order operation failed")
		respondJSONError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, product.ErrInvalidName) ||
		errors.Is(err, product.ErrInvalidPrice) ||
		errors.Is(err, product.ErrInvalidInventory) ||
		errors.Is(err, product.ErrInvalidCategory)
}

// isAdmin checks if the current user has the admin role.
func isAdmin(r *http.Request) bool {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return false
	}
	return claims.IsAdmin()
}
