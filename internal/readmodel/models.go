package readmodel

import (
	"time"

	"github.com/example/shop-analytics/internal/event"
)

// UserAction is one entry in a user's behavior history.
type UserAction struct {
	ProductID string       `json:"productId,omitempty"`
	ShopID    string       `json:"shopId,omitempty"`
	Action    event.Action `json:"action"`
	Timestamp time.Time    `json:"timestamp"`
}

// UserAnalytics is the per-user projection: last visit, a bounded
// behavior history, and last-known context fields.
type UserAnalytics struct {
	UserID      string       `json:"userId"`
	LastVisited time.Time    `json:"lastVisited"`
	Actions     []UserAction `json:"actions"`
	Country     string       `json:"country,omitempty"`
	City        string       `json:"city,omitempty"`
	Device      string       `json:"device,omitempty"`
}

// ProductAnalytics is the per-product projection of behavior counters.
type ProductAnalytics struct {
	ProductID    string    `json:"productId"`
	ShopID       string    `json:"shopId,omitempty"`
	Views        int64     `json:"views"`
	CartAdds     int64     `json:"cartAdds"`
	WishListAdds int64     `json:"wishListAdds"`
	Purchases    int64     `json:"purchases"`
	LastViewedAt time.Time `json:"lastViewedAt"`
}
