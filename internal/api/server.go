// Package api provides the HTTP server for Kaizen. It is a thin JSON adapter
// over the application services; identity arrives as the X-User-ID header set
// by the gateway in front of this process.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kaizen-app/kaizen/internal/app/ledger"
	"github.com/kaizen-app/kaizen/internal/app/tracker"
	"github.com/kaizen-app/kaizen/internal/domain"
)

// Server is the Kaizen HTTP API server.
type Server struct {
	tracker        *tracker.Service
	ledger         *ledger.Service
	metricsEnabled bool
	corsEnabled    bool
}

// NewServer creates a new API server.
func NewServer(tracker *tracker.Service, ledger *ledger.Service) *Server {
	return &Server{tracker: tracker, ledger: ledger}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// EnableCORS enables permissive CORS headers for local development.
func (s *Server) EnableCORS() { s.corsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	if s.corsEnabled {
		r.Use(corsMiddleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/users", s.handleRegisterUser)
		r.Get("/users/me", s.handleGetUser)
		r.Put("/users/me/settings", s.handleUpdateSettings)

		r.Get("/measures", s.handleListMeasures)
		r.Post("/measures", s.handleCreateMeasure)
		r.Put("/measures/{id}", s.handleUpdateMeasure)
		r.Delete("/measures/{id}", s.handleDeleteMeasure)

		r.Get("/goals", s.handleListGoals)
		r.Post("/goals", s.handleCreateGoal)
		r.Delete("/goals/{id}", s.handleDeleteGoal)

		r.Get("/entries", s.handleListEntries)
		r.Post("/entries", s.handleCreateEntry)
		r.Post("/entries/batch", s.handleBatchEntries)
		r.Put("/entries/{id}", s.handleUpdateEntry)
		r.Delete("/entries/{id}", s.handleDeleteEntry)

		r.Get("/transactions", s.handleListTransactions)
		r.Post("/transactions", s.handleCreateTransaction)
		r.Post("/transactions/cashout", s.handleCashout)
		r.Put("/transactions/{id}", s.handleUpdateTransaction)
		r.Delete("/transactions/{id}", s.handleDeleteTransaction)
	})

	return r
}

// userID extracts the authenticated user from the gateway header. An empty
// header writes 401 and returns false.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return "", false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeDomainError maps service errors onto HTTP statuses. Ownership
// failures already arrive as domain.ErrNotFound, so foreign resources are
// indistinguishable from missing ones here too.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnknownMeasureName),
		errors.Is(err, domain.ErrUnsupportedTimeframe):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientBalance):
		writeError(w, http.StatusBadRequest, "insufficient balance")
	case errors.Is(err, domain.ErrAlreadyGranted):
		writeError(w, http.StatusConflict, "reward already granted for this period")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
