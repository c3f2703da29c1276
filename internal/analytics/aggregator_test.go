package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/shop-analytics/internal/event"
	"github.com/example/shop-analytics/internal/infrastructure/store/mocks"
)

func newTestAggregator() (*Aggregator, *mocks.MockStore) {
	mock := mocks.NewMockStore()
	agg := NewAggregator(mock)
	return agg, mock
}

func TestAggregator_ShopVisitSkipsProjections(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	err := agg.Apply(ctx, event.Event{UserID: "u1", ShopID: "s1", Action: event.ActionShopVisit})

	require.NoError(t, err)
	assert.Empty(t, mock.UserUpserts)
	assert.Empty(t, mock.ProductUpserts)
}

func TestAggregator_UnknownActionSkipsProjections(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	err := agg.Apply(ctx, event.Event{UserID: "u1", Action: "teleport"})

	require.NoError(t, err)
	assert.Empty(t, mock.UserUpserts)
	assert.Empty(t, mock.ProductUpserts)
}

func TestAggregator_ViewsAreNotDeduplicated(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	view := event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionProductView}
	require.NoError(t, agg.Apply(ctx, view))
	require.NoError(t, agg.Apply(ctx, view))

	u, ok, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, u.Actions, 2)
}

func TestAggregator_AddToCartIsIdempotent(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	add := event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionAddToCart}
	require.NoError(t, agg.Apply(ctx, add))
	require.NoError(t, agg.Apply(ctx, add))

	u, ok, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, u.Actions, 1)
	assert.Equal(t, event.ActionAddToCart, u.Actions[0].Action)
	assert.Equal(t, "p1", u.Actions[0].ProductID)
}

func TestAggregator_AddToCartDifferentProductsBothRecorded(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionAddToCart}))
	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p2", Action: event.ActionAddToCart}))

	u, _, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, u.Actions, 2)
}

func TestAggregator_RemoveFromCartCancelsAdd(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionAddToCart}))
	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionRemoveFromCart}))

	u, _, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u.Actions)
}

func TestAggregator_RemoveBeforeAddIsNoOp(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionRemoveFromCart}))

	u, ok, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok) // user row still upserted with lastVisited
	assert.Empty(t, u.Actions)
}

func TestAggregator_RemoveFromWishlistOnlyCancelsWishlistAdds(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionAddToCart}))
	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionAddToWishlist}))
	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionRemoveFromWishlist}))

	u, _, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, u.Actions, 1)
	assert.Equal(t, event.ActionAddToCart, u.Actions[0].Action)
}

func TestAggregator_PurchaseSkipsHistoryButCounts(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionPurchase}))

	u, _, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, u.Actions)

	p, ok, err := mock.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), p.Purchases)
}

func TestAggregator_ActionListCappedAtHundredFIFO(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	for i := 0; i < 130; i++ {
		e := event.Event{
			UserID:    "u1",
			ProductID: fmt.Sprintf("p%d", i),
			Action:    event.ActionProductView,
		}
		require.NoError(t, agg.Apply(ctx, e))
	}

	u, _, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, u.Actions, MaxUserActions)
	// oldest evicted first: p0..p29 gone, p30 is now the head
	assert.Equal(t, "p30", u.Actions[0].ProductID)
	assert.Equal(t, "p129", u.Actions[len(u.Actions)-1].ProductID)
}

func TestAggregator_CounterSequenceViewAddRemove(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	for _, action := range []event.Action{
		event.ActionProductView,
		event.ActionAddToCart,
		event.ActionRemoveFromCart,
	} {
		require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", Action: action}))
	}

	p, _, err := mock.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Views)
	assert.Equal(t, int64(0), p.CartAdds)
}

func TestAggregator_DecrementAtZeroIsNoOp(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionRemoveFromCart}))

	p, ok, err := mock.GetProduct(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(0), p.CartAdds)
}

// Scenario from the pipeline contract: view, add, duplicate add.
func TestAggregator_ViewAddDuplicateAddScenario(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	agg.ApplyBatch(ctx, []event.Event{
		{UserID: "u1", ProductID: "p1", Action: event.ActionProductView},
		{UserID: "u1", ProductID: "p1", Action: event.ActionAddToCart},
		{UserID: "u1", ProductID: "p1", Action: event.ActionAddToCart},
	})

	u, _, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, u.Actions, 2)
	assert.Equal(t, event.ActionProductView, u.Actions[0].Action)
	assert.Equal(t, event.ActionAddToCart, u.Actions[1].Action)

	p, _, err := mock.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Views)
	assert.Equal(t, int64(1), p.CartAdds)
}

func TestAggregator_ContextFieldsMergeLastKnown(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Apply(ctx, event.Event{
		UserID:  "u1",
		Action:  event.ActionProductView,
		Country: "DE",
		City:    "Berlin",
		Device:  json.RawMessage(`"iPhone"`),
	}))
	// second event carries no context: last known values stay
	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", Action: event.ActionProductView}))

	u, _, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "DE", u.Country)
	assert.Equal(t, "Berlin", u.City)
	assert.Equal(t, "iPhone", u.Device)
}

func TestAggregator_ShopIDCapturedOnFirstProductTouch(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", ShopID: "s1", Action: event.ActionProductView}))

	p, _, err := mock.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "s1", p.ShopID)
}

func TestAggregator_NoProductIDSkipsCounters(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", Action: event.ActionProductView}))

	assert.Len(t, mock.UserUpserts, 1)
	assert.Empty(t, mock.ProductUpserts)
}

func TestAggregator_StorageErrorDropsEvent(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	mock.UserErr = errors.New("connection refused")

	err := agg.Apply(ctx, event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionProductView})

	require.Error(t, err)
	// the failing event never reaches the counter step
	assert.Empty(t, mock.ProductUpserts)
}

func TestAggregator_BatchContinuesPastFailingElement(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	mock.FindErr = errors.New("transient")
	agg.ApplyBatch(ctx, []event.Event{
		{UserID: "u1", Action: event.ActionProductView},
	})
	mock.FindErr = nil
	agg.ApplyBatch(ctx, []event.Event{
		{UserID: "u2", Action: event.ActionProductView},
	})

	_, ok, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = mock.GetUser(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAggregator_DedupAcrossBatches(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	add := event.Event{UserID: "u1", ProductID: "p1", Action: event.ActionAddToCart}
	agg.ApplyBatch(ctx, []event.Event{add})
	agg.ApplyBatch(ctx, []event.Event{add})

	u, _, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, u.Actions, 1)
}

func TestAggregator_LastVisitedUpdatedOnEveryEvent(t *testing.T) {
	agg, mock := newTestAggregator()
	ctx := context.Background()

	t1 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	times := []time.Time{t1, t2}
	i := 0
	agg.now = func() time.Time {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}

	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", Action: event.ActionProductView}))
	require.NoError(t, agg.Apply(ctx, event.Event{UserID: "u1", Action: event.ActionProductView}))

	u, _, err := mock.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, t2, u.LastVisited)
}
