package store

import (
	"context"
	"time"

	"github.com/example/shop-analytics/internal/readmodel"
)

// UserUpsert carries one write to the user projection. Empty context
// fields (Country, City, Device) leave the last known value untouched.
type UserUpsert struct {
	UserID      string
	LastVisited time.Time
	Actions     []readmodel.UserAction
	Country     string
	City        string
	Device      string
}

// ProductUpsert carries one delta write to the product counters. On
// first touch the row is created with the deltas as seed values (never
// below zero) and ShopID captured; an existing row's ShopID is never
// overwritten.
type ProductUpsert struct {
	ProductID    string
	ShopID       string
	ViewsDelta   int64
	CartDelta    int64
	WishDelta    int64
	BuyDelta     int64
	LastViewedAt time.Time
}

// AnalyticsStore is the projection storage contract for the
// aggregation engine. Counter decrements clamp at zero inside the
// store so concurrent updates cannot materialize a negative counter.
type AnalyticsStore interface {
	// FindUserActions returns the user's current action history, with
	// ok=false when the user has no row yet.
	FindUserActions(ctx context.Context, userID string) ([]readmodel.UserAction, bool, error)

	// UpsertUser creates or replaces the user projection row.
	UpsertUser(ctx context.Context, up UserUpsert) error

	// UpsertProductCounters applies counter deltas to the product row,
	// creating it if needed.
	UpsertProductCounters(ctx context.Context, up ProductUpsert) error

	// GetUser returns the full user projection row.
	GetUser(ctx context.Context, userID string) (*readmodel.UserAnalytics, bool, error)

	// GetProduct returns the full product projection row.
	GetProduct(ctx context.Context, productID string) (*readmodel.ProductAnalytics, bool, error)
}
