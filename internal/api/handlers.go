package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/example/shop-analytics/internal/api/middleware"
	"github.com/example/shop-analytics/internal/event"
)

// EventPublisher publishes a behavior event to the users-events topic.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// TrackHandlers accepts browser track requests and forwards them to
// the topic. Publishing is fire-and-forget from the caller's view: a
// 202 means the event was accepted, not that it was aggregated.
type TrackHandlers struct {
	publisher EventPublisher
}

func NewTrackHandlers(publisher EventPublisher) *TrackHandlers {
	return &TrackHandlers{publisher: publisher}
}

// TrackEvent handles POST /api/track.
func (h *TrackHandlers) TrackEvent(w http.ResponseWriter, r *http.Request) {
	var e event.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// A verified token overrides whatever userId the body claims.
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		e.UserID = userID
	}

	if !e.Action.Valid() {
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}
	if e.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	if err := h.publisher.Publish(r.Context(), e.UserID, e); err != nil {
		log.Printf("[Tracker] Failed to publish event for user %s: %v", e.UserID, err)
		http.Error(w, "failed to accept event", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *TrackHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
