package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/ponbike-core/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Prometheus scrape endpoint (no auth, same as the health check)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// WebSocket (auth via ticket, validated in handler)
		r.Get("/ws", s.handleWebSocket)

		// Read routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware(auth.ScopeRead))

			r.Get("/status", s.handleStatus)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/bikes", func(r chi.Router) {
				r.Get("/", s.handleListBikes)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetBike)
					r.Get("/entities", s.handleBikeEntities)
				})
			})

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/{id}", s.handleGetDevice)
			})

			r.Get("/audit", s.handleListAuditLogs)
		})

		// Refresh triggers a vendor round trip, so it needs its own scope.
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware(auth.ScopeRefresh))
			r.Post("/refresh", s.handleRefresh)
		})
	})

	return r
}

// healthResponse is the body of GET /api/v1/health.
type healthResponse struct {
	Status           string     `json:"status"`
	Version          string     `json:"version"`
	EntryID          string     `json:"entry_id"`
	CoordinatorState string     `json:"coordinator_state"`
	LastSuccess      *time.Time `json:"last_success,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	Bikes            int        `json:"bikes"`
}

// handleHealth returns the server health status. It always answers 200:
// a failing vendor degrades the bridge, it does not take it down.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:           "ok",
		Version:          s.version,
		EntryID:          s.entryID,
		CoordinatorState: s.source.State(),
		Bikes:            s.source.CurrentSnapshot().Len(),
	}
	if last := s.source.LastSuccess(); !last.IsZero() {
		last = last.UTC()
		resp.LastSuccess = &last
	}
	if err := s.source.LastError(); err != nil {
		resp.Status = "degraded"
		resp.LastError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
