package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrBadPayload    = errors.New("malformed event payload")
	ErrUnknownAction = errors.New("unknown action")
	ErrMissingUser   = errors.New("user_id is required")
)

// Action identifies a trackable user behavior.
type Action string

const (
	ActionProductView        Action = "product_view"
	ActionAddToCart          Action = "add_to_cart"
	ActionRemoveFromCart     Action = "remove_from_cart"
	ActionAddToWishlist      Action = "add_to_wishlist"
	ActionRemoveFromWishlist Action = "remove_from_wishlist"
	ActionPurchase           Action = "purchase"
	ActionShopVisit          Action = "shop_visit"
)

// Valid reports whether the action is one of the closed set.
func (a Action) Valid() bool {
	switch a {
	case ActionProductView, ActionAddToCart, ActionRemoveFromCart,
		ActionAddToWishlist, ActionRemoveFromWishlist, ActionPurchase, ActionShopVisit:
		return true
	}
	return false
}

// Event is the wire record published to the users-events topic.
// The timestamp is assigned at aggregation time, not by the producer.
type Event struct {
	UserID    string          `json:"userId"`
	ProductID string          `json:"productId,omitempty"`
	ShopID    string          `json:"shopId,omitempty"`
	Action    Action          `json:"action"`
	Country   string          `json:"country,omitempty"`
	City      string          `json:"city,omitempty"`
	Device    json.RawMessage `json:"device,omitempty"`
}

// ParseEvent decodes and validates a raw message body. It fails closed:
// bad JSON, a missing or unknown action, or a missing userId all reject
// the message before it reaches aggregation.
func ParseEvent(raw []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if !e.Action.Valid() {
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownAction, e.Action)
	}
	if e.UserID == "" {
		return Event{}, ErrMissingUser
	}
	return e, nil
}

// DeviceString normalizes the device field to a plain string. A JSON
// string is taken as-is, an object contributes its deviceInfo field,
// and any other non-empty shape becomes "Unknown". An absent field
// yields "" so the last known value is left alone.
func (e Event) DeviceString() string {
	if len(e.Device) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(e.Device, &s); err == nil {
		return s
	}

	var obj struct {
		DeviceInfo string `json:"deviceInfo"`
	}
	if err := json.Unmarshal(e.Device, &obj); err == nil && obj.DeviceInfo != "" {
		return obj.DeviceInfo
	}
	return "Unknown"
}
