// Package inference is a stand-in for the external model service that
// predict.Remote talks to. It serves POST /predict/{model} from the local
// rule predictors and can simulate latency and outages.
package inference

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mukundvijay123/5thSemEL/internal/predict"
)

const maxRequestBytes = 64 << 10

// Server answers inference requests.
type Server struct {
	models map[string]predict.Predictor
	log    zerolog.Logger

	mu      sync.RWMutex
	latency time.Duration

	outage   atomic.Bool
	requests atomic.Int64
}

// NewServer serves the maintenance and engine rule sets.
func NewServer(log zerolog.Logger) *Server {
	return &Server{
		models: map[string]predict.Predictor{
			predict.ModelMaintenance: predict.MaintenanceRules{},
			predict.ModelEngine:      predict.EngineRules{},
		},
		log: log.With().Str("component", "inference").Logger(),
	}
}

// SetLatency delays every response by d.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// SetOutage makes every request fail with 503 until cleared.
func (s *Server) SetOutage(down bool) {
	s.outage.Store(down)
	s.log.Info().Bool("outage", down).Msg("outage state changed")
}

// Requests returns the number of requests received.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict/{model}", s.HandlePredict)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if s.outage.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

// HandlePredict serves POST /predict/{model}.
func (s *Server) HandlePredict(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	start := time.Now()
	model := r.PathValue("model")

	s.mu.RLock()
	latency := s.latency
	s.mu.RUnlock()
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-r.Context().Done():
			return
		}
	}

	if s.outage.Load() {
		writeJSON(w, http.StatusServiceUnavailable, predict.RemoteResponse{Error: "model service unavailable"})
		return
	}

	p, ok := s.models[model]
	if !ok {
		writeJSON(w, http.StatusNotFound, predict.RemoteResponse{Error: "unknown model " + model})
		return
	}

	var req predict.RemoteRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, predict.RemoteResponse{Error: "malformed request"})
		return
	}

	label, err := p.Predict(r.Context(), req.Features)
	if err != nil {
		var ierr *predict.InferenceError
		reason := err.Error()
		if errors.As(err, &ierr) {
			reason = ierr.Reason
		}
		writeJSON(w, http.StatusUnprocessableEntity, predict.RemoteResponse{Error: reason})
		return
	}

	s.log.Debug().
		Str("model", model).
		Str("label", label).
		Dur("duration", time.Since(start)).
		Msg("prediction served")
	writeJSON(w, http.StatusOK, predict.RemoteResponse{Label: label})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
