//
//
package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mukundvijay123/5thSemEL/internal/auth"
)

// RegisterRoutes registers the HTTP and WebSocket endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"

	// Health endpoint (no auth required)
	mux.HandleFunc(apiV1+"/health", s.handleHealth)

	// Read API (read scope when auth is configured)
	mux.HandleFunc(apiV1+"/vehicles", s.authMiddleware.Protect(s.handleVehicles, auth.ScopeRead))
	mux.HandleFunc(apiV1+"/vehicles/{id}", s.authMiddleware.Protect(s.handleVehicle, auth.ScopeRead))

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	if s.sessions != nil {
		mux.HandleFunc("/vehicle", s.sessions.HandleVehicle)
		mux.HandleFunc("/monitor", s.sessions.HandleMonitor)
	}
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	WriteError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed,
		"Only GET method is allowed", nil)
	return false
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	health := map[string]interface{}{
		"status":    "ok",
		"uptimeSec": time.Since(s.startTime).Seconds(),
		"version":   Version,
	}
	if s.store != nil {
		health["knownVehicles"] = s.store.Len()
	}
	if s.sessions != nil {
		health["sessions"] = map[string]int{
			"vehicles": s.sessions.Vehicles(),
			"monitors": s.sessions.Monitors(),
		}
	}

	WriteSuccess(w, health)
}

// handleVehicles handles GET /vehicles
func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	vehicles := s.store.Snapshot()
	WriteSuccess(w, map[string]interface{}{
		"count":    len(vehicles),
		"vehicles": vehicles,
	})
}

// handleVehicle handles GET /vehicles/{id}
func (s *Server) handleVehicle(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeAPIError(w, fmt.Errorf("%w: empty vehicle id", ErrBadRequest))
		return
	}

	st, ok := s.store.Get(id)
	if !ok {
		writeAPIError(w, fmt.Errorf("vehicle %q: %w", id, ErrNotFound))
		return
	}
	WriteSuccess(w, st)
}
