package mocks

import (
	"context"
	"sync"

	"github.com/example/shop-analytics/internal/infrastructure/store"
	"github.com/example/shop-analytics/internal/readmodel"
)

// MockStore is a mock implementation of AnalyticsStore for testing.
// It keeps projections in memory and records every call; errors can be
// injected per method to exercise failure paths.
type MockStore struct {
	mu       sync.Mutex
	users    map[string]*readmodel.UserAnalytics
	products map[string]*readmodel.ProductAnalytics

	// For tracking calls in tests
	UserUpserts    []store.UserUpsert
	ProductUpserts []store.ProductUpsert
	FindCalls      []string

	// Injected errors
	FindErr    error
	UserErr    error
	ProductErr error
}

func NewMockStore() *MockStore {
	return &MockStore{
		users:    make(map[string]*readmodel.UserAnalytics),
		products: make(map[string]*readmodel.ProductAnalytics),
	}
}

func (m *MockStore) FindUserActions(ctx context.Context, userID string) ([]readmodel.UserAction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.FindCalls = append(m.FindCalls, userID)
	if m.FindErr != nil {
		return nil, false, m.FindErr
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, false, nil
	}
	actions := make([]readmodel.UserAction, len(u.Actions))
	copy(actions, u.Actions)
	return actions, true, nil
}

func (m *MockStore) UpsertUser(ctx context.Context, up store.UserUpsert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UserUpserts = append(m.UserUpserts, up)
	if m.UserErr != nil {
		return m.UserErr
	}

	u, ok := m.users[up.UserID]
	if !ok {
		u = &readmodel.UserAnalytics{UserID: up.UserID}
		m.users[up.UserID] = u
	}
	u.LastVisited = up.LastVisited
	u.Actions = up.Actions
	if up.Country != "" {
		u.Country = up.Country
	}
	if up.City != "" {
		u.City = up.City
	}
	if up.Device != "" {
		u.Device = up.Device
	}
	return nil
}

func (m *MockStore) UpsertProductCounters(ctx context.Context, up store.ProductUpsert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ProductUpserts = append(m.ProductUpserts, up)
	if m.ProductErr != nil {
		return m.ProductErr
	}

	p, ok := m.products[up.ProductID]
	if !ok {
		p = &readmodel.ProductAnalytics{ProductID: up.ProductID, ShopID: up.ShopID}
		m.products[up.ProductID] = p
	}
	p.Views = clamp(p.Views + up.ViewsDelta)
	p.CartAdds = clamp(p.CartAdds + up.CartDelta)
	p.WishListAdds = clamp(p.WishListAdds + up.WishDelta)
	p.Purchases = clamp(p.Purchases + up.BuyDelta)
	p.LastViewedAt = up.LastViewedAt
	return nil
}

func (m *MockStore) GetUser(ctx context.Context, userID string) (*readmodel.UserAnalytics, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, false, nil
	}
	out := *u
	return &out, true, nil
}

func (m *MockStore) GetProduct(ctx context.Context, productID string) (*readmodel.ProductAnalytics, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, false, nil
	}
	out := *p
	return &out, true, nil
}

// SetUser seeds a user row directly for testing.
func (m *MockStore) SetUser(u *readmodel.UserAnalytics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.UserID] = u
}

func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
