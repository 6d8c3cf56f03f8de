package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/product"
	"github.com/example/storefront/internal/infrastructure/store"
)

// MockProductStore is an in-memory ProductStore for testing.
type MockProductStore struct {
	mu       sync.Mutex
	products map[string]*product.Product

	CreateCalls []*product.Product
	CreateErr   error
}

func NewMockProductStore() *MockProductStore {
	return &MockProductStore{products: make(map[string]*product.Product)}
}

func (m *MockProductStore) Seed(p *product.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MockProductStore) Create(ctx context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, p)
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if err := p.Validate(); err != nil {
		return err
	}
	m.products[p.ID] = p
	return nil
}

func (m *MockProductStore) GetByID(ctx context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

func (m *MockProductStore) List(ctx context.Context, filter store.ProductFilter) ([]*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var products []*product.Product
	for _, p := range m.products {
		if filter.ActiveOnly && !p.Active {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Featured && !p.Featured {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (m *MockProductStore) Update(ctx context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := p.Validate(); err != nil {
		return err
	}
	if _, ok := m.products[p.ID]; !ok {
		return product.ErrProductNotFound
	}
	p.UpdatedAt = time.Now()
	m.products[p.ID] = p
	return nil
}

func (m *MockProductStore) Deactivate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[id]
	if !ok {
		return product.ErrProductNotFound
	}
	p.Active = false
	return nil
}
