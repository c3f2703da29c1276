package api

import (
	"net/http"

	"github.com/example/shop-analytics/internal/api/middleware"
	"github.com/example/shop-analytics/internal/auth"
)

// NewTrackerRouter wires the event ingest surface. Track requests may
// carry a bearer token; when present and valid, its subject overrides
// the body's userId.
func NewTrackerRouter(handlers *TrackHandlers, jwtService *auth.JWTService) http.Handler {
	mux := http.NewServeMux()

	optionalAuth := middleware.OptionalAuthMiddleware(jwtService)

	mux.Handle("/api/track", optionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			handlers.TrackEvent(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	mux.HandleFunc("/healthz", handlers.Healthz)

	return mux
}

// NewAnalyticsRouter wires the projection read surface.
func NewAnalyticsRouter(handlers *AnalyticsHandlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/analytics/users/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.GetUserAnalytics(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/analytics/products/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handlers.GetProductAnalytics(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}
