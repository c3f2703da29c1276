package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/shop-analytics/internal/event"
	"github.com/example/shop-analytics/internal/infrastructure/store"
	"github.com/example/shop-analytics/internal/readmodel"
)

// MaxUserActions bounds a user's behavior history; oldest entries are
// evicted first.
const MaxUserActions = 100

// Aggregator folds behavior events into the user and product
// projections. Updates are idempotent where the rules call for it
// (cart/wishlist de-duplication) and best-effort: a storage failure
// drops the event.
type Aggregator struct {
	store store.AnalyticsStore
	now   func() time.Time
}

func NewAggregator(s store.AnalyticsStore) *Aggregator {
	return &Aggregator{store: s, now: time.Now}
}

// ApplyBatch processes batch elements sequentially in arrival order.
// A failing element is logged and skipped; it does not abort the rest
// of the batch.
func (a *Aggregator) ApplyBatch(ctx context.Context, events []event.Event) {
	for _, e := range events {
		if err := a.Apply(ctx, e); err != nil {
			log.Printf("[Analytics] Dropping event for user %s: %v", e.UserID, err)
		}
	}
}

// Apply folds one event into both projections.
func (a *Aggregator) Apply(ctx context.Context, e event.Event) error {
	// Reserved: shop visits carry no projection update yet.
	if e.Action == event.ActionShopVisit {
		return nil
	}
	if !e.Action.Valid() {
		log.Printf("[Analytics] Skipping event with unknown action %q", e.Action)
		return nil
	}
	if e.UserID == "" {
		log.Printf("[Analytics] Skipping event without userId (action %q)", e.Action)
		return nil
	}

	now := a.now()

	actions, _, err := a.store.FindUserActions(ctx, e.UserID)
	if err != nil {
		return fmt.Errorf("load actions: %w", err)
	}

	// A repeated cart/wishlist add is a duplicate of an existing logical
	// effect: the event is consumed, but neither the history nor the
	// counter moves.
	duplicate := false
	if e.Action == event.ActionAddToCart || e.Action == event.ActionAddToWishlist {
		duplicate = containsPair(actions, e.ProductID, e.Action)
	}

	actions = applyActionRule(actions, e, now)
	if len(actions) > MaxUserActions {
		actions = actions[len(actions)-MaxUserActions:]
	}

	err = a.store.UpsertUser(ctx, store.UserUpsert{
		UserID:      e.UserID,
		LastVisited: now,
		Actions:     actions,
		Country:     e.Country,
		City:        e.City,
		Device:      e.DeviceString(),
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	if e.ProductID != "" {
		up := store.ProductUpsert{
			ProductID:    e.ProductID,
			ShopID:       e.ShopID,
			LastViewedAt: now,
		}
		switch e.Action {
		case event.ActionProductView:
			up.ViewsDelta = 1
		case event.ActionAddToCart:
			if !duplicate {
				up.CartDelta = 1
			}
		case event.ActionRemoveFromCart:
			up.CartDelta = -1
		case event.ActionAddToWishlist:
			if !duplicate {
				up.WishDelta = 1
			}
		case event.ActionRemoveFromWishlist:
			up.WishDelta = -1
		case event.ActionPurchase:
			up.BuyDelta = 1
		}
		// lastViewedAt still moves for a duplicate; the row was touched
		if err := a.store.UpsertProductCounters(ctx, up); err != nil {
			return fmt.Errorf("upsert product: %w", err)
		}
	}
	return nil
}

// applyActionRule mutates the action history for one event:
// views always append, cart/wishlist adds de-duplicate on
// (productId, action), removes cancel all matching add entries, and a
// purchase leaves the list alone.
func applyActionRule(actions []readmodel.UserAction, e event.Event, now time.Time) []readmodel.UserAction {
	entry := readmodel.UserAction{
		ProductID: e.ProductID,
		ShopID:    e.ShopID,
		Action:    e.Action,
		Timestamp: now,
	}

	switch e.Action {
	case event.ActionProductView:
		return append(actions, entry)

	case event.ActionAddToCart, event.ActionAddToWishlist:
		if containsPair(actions, e.ProductID, e.Action) {
			return actions
		}
		return append(actions, entry)

	case event.ActionRemoveFromCart:
		return removeMatching(actions, e.ProductID, event.ActionAddToCart)

	case event.ActionRemoveFromWishlist:
		return removeMatching(actions, e.ProductID, event.ActionAddToWishlist)
	}

	// purchase: counters only, no history entry
	return actions
}

func containsPair(actions []readmodel.UserAction, productID string, action event.Action) bool {
	for _, a := range actions {
		if a.ProductID == productID && a.Action == action {
			return true
		}
	}
	return false
}

func removeMatching(actions []readmodel.UserAction, productID string, action event.Action) []readmodel.UserAction {
	out := actions[:0]
	for _, a := range actions {
		if a.ProductID == productID && a.Action == action {
			continue
		}
		out = append(out, a)
	}
	return out
}
