package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/user"
)

// MockUserStore is an in-memory UserStore for testing.
type MockUserStore struct {
	mu    sync.Mutex
	users map[string]*user.User

	CreateCalls []*user.User
	CreateErr   error
}

func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[string]*user.User)}
}

func (m *MockUserStore) Seed(u *user.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *MockUserStore) Create(ctx context.Context, u *user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls = append(m.CreateCalls, u)
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, existing := range m.users {
		if existing.Email == user.NormalizeEmail(u.Email) {
			return user.ErrEmailTaken
		}
	}
	u.Email = user.NormalizeEmail(u.Email)
	m.users[u.ID] = u
	return nil
}

func (m *MockUserStore) GetByID(ctx context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

func (m *MockUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == user.NormalizeEmail(email) {
			return u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (m *MockUserStore) UpdateProfile(ctx context.Context, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	u.Name = name
	u.UpdatedAt = time.Now()
	return nil
}

func (m *MockUserStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (m *MockUserStore) SetResetToken(ctx context.Context, id, tokenHash string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return user.ErrUserNotFound
	}
	u.ResetTokenHash = tokenHash
	u.ResetTokenExpires = &expires
	return nil
}

func (m *MockUserStore) ConsumeResetToken(ctx context.Context, tokenHash string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tokenHash == "" {
		return nil, user.ErrResetTokenInvalid
	}
	for _, u := range m.users {
		if u.ResetTokenValid(tokenHash, time.Now()) {
			u.ResetTokenHash = ""
			u.ResetTokenExpires = nil
			return u, nil
		}
	}
	return nil, user.ErrResetTokenInvalid
}
