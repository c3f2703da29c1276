package store

import (
	"context"
	"sync"

	"github.com/example/shop-analytics/internal/readmodel"
)

// MemoryStore is an in-memory AnalyticsStore for local development and
// tests.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*readmodel.UserAnalytics
	products map[string]*readmodel.ProductAnalytics
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*readmodel.UserAnalytics),
		products: make(map[string]*readmodel.ProductAnalytics),
	}
}

func (s *MemoryStore) FindUserActions(ctx context.Context, userID string) ([]readmodel.UserAction, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, false, nil
	}
	actions := make([]readmodel.UserAction, len(u.Actions))
	copy(actions, u.Actions)
	return actions, true, nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, up UserUpsert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[up.UserID]
	if !ok {
		u = &readmodel.UserAnalytics{UserID: up.UserID}
		s.users[up.UserID] = u
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

func (s *MemoryStore) UpsertProductCounters(ctx context.Context, up ProductUpsert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[up.ProductID]
	if !ok {
		p = &readmodel.ProductAnalytics{
			ProductID: up.ProductID,
			ShopID:    up.ShopID,
		}
		s.products[up.ProductID] = p
	}
	p.Views = clamp(p.Views + up.ViewsDelta)
	p.CartAdds = clamp(p.CartAdds + up.CartDelta)
	p.WishListAdds = clamp(p.WishListAdds + up.WishDelta)
	p.Purchases = clamp(p.Purchases + up.BuyDelta)
	p.LastViewedAt = up.LastViewedAt
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, userID string) (*readmodel.UserAnalytics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, false, nil
	}
	out := *u
	out.Actions = make([]readmodel.UserAction, len(u.Actions))
	copy(out.Actions, u.Actions)
	return &out, true, nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, productID string) (*readmodel.ProductAnalytics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, false, nil
	}
	out := *p
	return &out, true, nil
}

// clamp keeps a counter from going negative; a decrement at zero is a
// no-op.
func clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
