//
//
package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mukundvijay123/5thSemEL/internal/audit"
	"github.com/mukundvijay123/5thSemEL/internal/metrics"
	"github.com/mukundvijay123/5thSemEL/internal/state"
)

// SessionOptions holds per-connection timing and limits.
type SessionOptions struct {
	ProbeInterval   time.Duration
	ProbeTimeout    time.Duration
	WriteWait       time.Duration
	PredictTimeout  time.Duration
	MaxMessageBytes int64
}

// Deps are the optional collaborators shared by every session.
type Deps struct {
	Log     zerolog.Logger
	Metrics *metrics.Metrics
	Audit   *audit.Logger
}

// Server upgrades /vehicle and /monitor requests and runs their sessions.
type Server struct {
	store     *state.Store
	hub       *Hub
	predictor Predictor
	opts      SessionOptions
	upgrader  websocket.Upgrader

	log     zerolog.Logger
	metrics *metrics.Metrics
	audit   *audit.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	vehicles map[string]*VehicleSession
	wg       sync.WaitGroup
}

// NewServer wires a store, a broadcast hub and a predictor into WebSocket handlers.
func NewServer(store *state.Store, predictor Predictor, hubOpts Options, opts SessionOptions, deps Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		store:     store,
		hub:       NewHub(store, hubOpts, deps.Log, deps.Metrics, deps.Audit),
		predictor: predictor,
		opts:      opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:      deps.Log.With().Str("component", "sessions").Logger(),
		metrics:  deps.Metrics,
		audit:    deps.Audit,
		ctx:      ctx,
		cancel:   cancel,
		vehicles: make(map[string]*VehicleSession),
	}
}

// Hub returns the broadcast hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Store returns the state store.
func (s *Server) Store() *state.Store {
	return s.store
}

// Vehicles returns the number of open producer sessions.
func (s *Server) Vehicles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vehicles)
}

// Monitors returns the number of registered monitors.
func (s *Server) Monitors() int {
	return s.hub.Subscribers()
}

// HandleVehicle serves GET /vehicle.
func (s *Server) HandleVehicle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("vehicle upgrade failed")
		return
	}
	if s.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.opts.MaxMessageBytes)
	}

	id := uuid.NewString()
	sess := &VehicleSession{
		ID:        id,
		Remote:    r.RemoteAddr,
		conn:      conn,
		store:     s.store,
		hub:       s.hub,
		predictor: s.predictor,
		opts:      s.opts,
		log:       s.log.With().Str("session", id).Str("role", audit.RoleVehicle).Str("remote", r.RemoteAddr).Logger(),
		metrics:   s.metrics,
		audit:     s.audit,
	}

	if !s.track(sess) {
		_ = conn.Close()
		return
	}
	defer s.untrack(sess)

	s.metrics.SessionOpened(metrics.RoleVehicle)
	defer s.metrics.SessionClosed(metrics.RoleVehicle)
	s.audit.LogSession(audit.RoleVehicle, id, r.RemoteAddr, "", audit.ActionConnect, nil)
	sess.log.Info().Msg("vehicle connected")

	err = sess.Serve(s.ctx)

	s.audit.LogSession(audit.RoleVehicle, id, r.RemoteAddr, sess.VehicleID(), audit.ActionDisconnect, err)
	sess.log.Info().AnErr("reason", err).Str("vehicle", sess.VehicleID()).Msg("vehicle disconnected")
}

// HandleMonitor serves GET /monitor.
func (s *Server) HandleMonitor(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("monitor upgrade failed")
		return
	}
	if s.opts.MaxMessageBytes > 0 {
		conn.SetReadLimit(s.opts.MaxMessageBytes)
	}

	id := uuid.NewString()
	sess := newMonitorSession(id, conn, s.hub, s.opts, s.log)

	if !s.enter() {
		_ = conn.Close()
		return
	}
	defer s.wg.Done()

	s.metrics.SessionOpened(metrics.RoleMonitor)
	defer s.metrics.SessionClosed(metrics.RoleMonitor)
	s.audit.LogSession(audit.RoleMonitor, id, r.RemoteAddr, "", audit.ActionConnect, nil)
	sess.log.Info().Str("remote", r.RemoteAddr).Msg("monitor connected")

	err = sess.Serve(s.ctx)

	s.audit.LogSession(audit.RoleMonitor, id, r.RemoteAddr, "", audit.ActionDisconnect, err)
	sess.log.Info().AnErr("reason", err).Msg("monitor disconnected")
}

// enter admits a session unless the server is closing.
func (s *Server) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) track(sess *VehicleSession) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return false
	}
	s.vehicles[sess.ID] = sess
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(sess *VehicleSession) {
	s.mu.Lock()
	delete(s.vehicles, sess.ID)
	s.mu.Unlock()
	s.wg.Done()
}

// Close ends every session and stops the hub. It waits until ctx is done
// for the handlers to return.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	for _, sess := range s.vehicles {
		sess.Close()
	}
	s.mu.Unlock()

	s.hub.Stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
