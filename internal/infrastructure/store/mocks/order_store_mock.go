package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/store"
)

// MockOrderStore is an in-memory OrderStore for testing. It enforces the
// same correlation-id uniqueness the Postgres indexes do, so dedup tests
// exercise the real contract.
type MockOrderStore struct {
	mu     sync.Mutex
	orders map[string]*order.Order

	// For tracking calls in tests
	CreateCalls         []*order.Order
	CreateErr           error
	AssignTrackingCalls []AssignTrackingCall
	UpdateFieldsErr     error
}

// AssignTrackingCall records parameters passed to AssignTracking.
type AssignTrackingCall struct {
	OrderID        string
	TrackingNumber string
	Status         *order.Status
	Label          *order.Label
}

func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{orders: make(map[string]*order.Order)}
}

// Seed inserts an order directly, bypassing validation and call tracking.
func (m *MockOrderStore) Seed(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

func (m *MockOrderStore) Create(ctx context.Context, o *order.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, o)
	if m.CreateErr != nil {
		return false, m.CreateErr
	}
	if err := o.Validate(); err != nil {
		return false, err
	}

	for _, existing := range m.orders {
		if o.StripeSessionID != "" && existing.StripeSessionID == o.StripeSessionID {
			return false, nil
		}
		if o.SquareOrderID != "" && existing.SquareOrderID == o.SquareOrderID {
			return false, nil
		}
	}

	m.orders[o.ID] = o
	return true, nil
}

func (m *MockOrderStore) GetByID(ctx context.Context, id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (m *MockOrderStore) GetByStripeSessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if sessionID != "" && o.StripeSessionID == sessionID {
			return o, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *MockOrderStore) GetBySquareOrderID(ctx context.Context, squareOrderID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if squareOrderID != "" && o.SquareOrderID == squareOrderID {
			return o, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *MockOrderStore) List(ctx context.Context, filter store.OrderFilter) ([]*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var orders []*order.Order
	for _, o := range m.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.UserID != "" || filter.Email != "" {
			if o.UserID != filter.UserID && o.Email != filter.Email {
				continue
			}
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (m *MockOrderStore) UpdateFields(ctx context.Context, id string, upd store.OrderUpdate) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateFieldsErr != nil {
		return nil, m.UpdateFieldsErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}

	if upd.Status != nil && *upd.Status != o.Status {
		if !o.CanTransitionTo(*upd.Status) {
			return nil, o.TransitionError(*upd.Status)
		}
		o.Status = *upd.Status
	}
	if upd.PaymentStatus != nil {
		o.PaymentStatus = *upd.PaymentStatus
	}
	if upd.Notes != nil {
		o.Notes = *upd.Notes
	}
	o.UpdatedAt = time.Now()
	return o, nil
}

func (m *MockOrderStore) AssignTracking(ctx context.Context, id, trackingNumber string, status *order.Status, label *order.Label) (*order.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AssignTrackingCalls = append(m.AssignTrackingCalls, AssignTrackingCall{
		OrderID:        id,
		TrackingNumber: trackingNumber,
		Status:         status,
		Label:          label,
	})

	o, ok := m.orders[id]
	if !ok {
		return nil, false, order.ErrOrderNotFound
	}

	first := o.TrackingNumber == ""

	newStatus := o.Status
	switch {
	case status != nil:
		newStatus = *status
	case first:
		newStatus = order.StatusShipped
	}
	if newStatus != o.Status {
		if !o.CanTransitionTo(newStatus) {
			return nil, false, o.TransitionError(newStatus)
		}
		o.Status = newStatus
	}

	o.TrackingNumber = trackingNumber
	if label != nil {
		o.ShippingLabel = label
	}
	o.UpdatedAt = time.Now()
	return o, first, nil
}

func (m *MockOrderStore) ApplyInventory(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return false, order.ErrOrderNotFound
	}
	if o.InventoryApplied {
		return false, nil
	}
	o.InventoryApplied = true
	return true, nil
}

// Count returns the number of stored orders.
func (m *MockOrderStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}
