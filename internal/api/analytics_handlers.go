package api

import (
	"net/http"
	"strings"

	"github.com/example/shop-analytics/internal/infrastructure/store"
)

// AnalyticsHandlers serves the projections back to dashboards.
type AnalyticsHandlers struct {
	store store.AnalyticsStore
}

func NewAnalyticsHandlers(s store.AnalyticsStore) *AnalyticsHandlers {
	return &AnalyticsHandlers{store: s}
}

// GetUserAnalytics handles GET /api/analytics/users/{id}.
func (h *AnalyticsHandlers) GetUserAnalytics(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/api/analytics/users/")
	if id == "" {
		http.Error(w, "user id is required", http.StatusBadRequest)
		return
	}
	if strings.Contains(id, "/") {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}

	user, ok, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// GetProductAnalytics handles GET /api/analytics/products/{id}.
func (h *AnalyticsHandlers) GetProductAnalytics(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/api/analytics/products/")
	if id == "" {
		http.Error(w, "product id is required", http.StatusBadRequest)
		return
	}
	if strings.Contains(id, "/") {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return
	}

	product, ok, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "product not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func extractPathParam(path, prefix string) string {
	param := strings.TrimPrefix(path, prefix)
	return strings.TrimSuffix(param, "/")
}
