package hub

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mukundvijay123/5thSemEL/internal/keepalive"
)

// MonitorState is the lifecycle state of a monitor session.
type MonitorState int32

const (
	MonitorConnected MonitorState = iota
	MonitorSnapshotting
	MonitorStreaming
	MonitorClosed
)

func (s MonitorState) String() string {
	switch s {
	case MonitorConnected:
		return "connected"
	case MonitorSnapshotting:
		return "snapshotting"
	case MonitorStreaming:
		return "streaming"
	case MonitorClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MonitorSession serves one dashboard subscriber.
type MonitorSession struct {
	ID     string
	Remote string

	conn *websocket.Conn
	hub  *Hub
	opts SessionOptions
	log  zerolog.Logger

	state atomic.Int32
}

func newMonitorSession(id string, conn *websocket.Conn, h *Hub, opts SessionOptions, log zerolog.Logger) *MonitorSession {
	return &MonitorSession{
		ID:     id,
		Remote: conn.RemoteAddr().String(),
		conn:   conn,
		hub:    h,
		opts:   opts,
		log:    log.With().Str("session", id).Str("role", "monitor").Logger(),
	}
}

// State returns the current session state.
func (m *MonitorSession) State() MonitorState {
	return MonitorState(m.state.Load())
}

func (m *MonitorSession) setState(s MonitorState) {
	m.state.Store(int32(s))
}

// Serve subscribes and streams until the peer leaves, the subscriber is
// dropped, or ctx ends. Inbound application frames are discarded.
func (m *MonitorSession) Serve(ctx context.Context) error {
	defer m.setState(MonitorClosed)

	m.setState(MonitorSnapshotting)
	sub, err := m.hub.Subscribe(m.ID, m.conn)
	if err != nil {
		_ = m.conn.Close()
		return err
	}
	m.setState(MonitorStreaming)

	ka := keepalive.Watch(m.conn, keepalive.Config{
		Interval: m.opts.ProbeInterval,
		Timeout:  m.opts.ProbeTimeout,
	}, m.opts.WriteWait, func(reason error) {
		m.hub.Unsubscribe(sub, reason)
	})
	go func() { _ = ka.Run(ctx) }()
	defer ka.Stop()

	stop := context.AfterFunc(ctx, func() { m.hub.Unsubscribe(sub, ErrDisconnected) })
	defer stop()

	for {
		if _, _, err := m.conn.ReadMessage(); err != nil {
			m.hub.Unsubscribe(sub, ErrDisconnected)
			break
		}
		ka.Ack()
	}

	<-sub.Done()
	reason := sub.Err()
	if errors.Is(reason, ErrDisconnected) {
		reason = nil
	}
	m.log.Debug().AnErr("reason", reason).Msg("monitor session closed")
	return reason
}
