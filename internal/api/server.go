//
//
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mukundvijay123/5thSemEL/internal/auth"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Server represents the HTTP API server.
type Server struct {
	httpServer     *http.Server
	store          StateReadPort
	sessions       SessionPort
	gatherer       prometheus.Gatherer
	authMiddleware *auth.Middleware
	log            zerolog.Logger
	startTime      time.Time
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

// NewServer creates a new API server. gatherer and authMiddleware may be nil.
func NewServer(store StateReadPort, sessions SessionPort, gatherer prometheus.Gatherer, authMiddleware *auth.Middleware, log zerolog.Logger, readTimeout, writeTimeout, idleTimeout time.Duration) *Server {
	return &Server{
		store:          store,
		sessions:       sessions,
		gatherer:       gatherer,
		authMiddleware: authMiddleware,
		log:            log.With().Str("component", "api").Logger(),
		startTime:      time.Now(),
		readTimeout:    readTimeout,
		writeTimeout:   writeTimeout,
		idleTimeout:    idleTimeout,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// Start serves on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		IdleTimeout:  s.idleTimeout,
	}

	s.log.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server. Hijacked WebSocket connections
// are not tracked by http.Server and must be closed by their owner.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}
