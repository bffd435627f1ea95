// Package keepalive implements the probe/acknowledge liveness check used on
// both ends of a WebSocket link.
//
// A Monitor sends a probe every Interval. Any acknowledgement (a pong or any
// inbound frame) moves it back to Alive. When nothing is acknowledged for
// Timeout the link is declared Dead and the onDead callback runs once.
package keepalive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the liveness state of a link.
type State int

const (
	Alive State = iota
	Probing
	Dead
)

func (s State) String() string {
	switch s {
	case Alive:
		return "alive"
	case Probing:
		return "probing"
	case Dead:
		return "dead"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrTimeout is reported when no acknowledgement arrives within Timeout.
var ErrTimeout = errors.New("keepalive: no acknowledgement within timeout")

// Config holds probe timing.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Monitor tracks the liveness of one link.
type Monitor struct {
	cfg    Config
	probe  func() error
	onDead func(error)

	mu      sync.Mutex
	state   State
	lastAck time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a monitor. probe sends one probe; onDead is called at most once.
func New(cfg Config, probe func() error, onDead func(error)) *Monitor {
	return &Monitor{
		cfg:     cfg,
		probe:   probe,
		onDead:  onDead,
		state:   Alive,
		lastAck: time.Now(),
		stop:    make(chan struct{}),
	}
}

// Ack records proof of life from the peer.
func (m *Monitor) Ack() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Dead {
		return
	}
	m.lastAck = time.Now()
	m.state = Alive
}

// State returns the current liveness state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stop ends Run without declaring the link dead.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// Run probes until ctx is done, Stop is called, or the link dies.
// It returns the reason the link died, or nil.
func (m *Monitor) Run(ctx context.Context) error {
	nextProbe := time.Now().Add(m.cfg.Interval)
	timer := time.NewTimer(m.cfg.Interval)
	defer timer.Stop()

	for {
		m.mu.Lock()
		deadline := m.lastAck.Add(m.cfg.Timeout)
		m.mu.Unlock()

		wake := nextProbe
		if deadline.Before(wake) {
			wake = deadline
		}
		timer.Reset(time.Until(wake))

		select {
		case <-ctx.Done():
			return nil
		case <-m.stop:
			return nil
		case <-timer.C:
		}

		now := time.Now()

		m.mu.Lock()
		expired := !now.Before(m.lastAck.Add(m.cfg.Timeout))
		m.mu.Unlock()

		if expired {
			return m.die(ErrTimeout)
		}

		if !now.Before(nextProbe) {
			if err := m.probe(); err != nil {
				return m.die(fmt.Errorf("keepalive: probe failed: %w", err))
			}
			m.mu.Lock()
			if m.state == Alive {
				m.state = Probing
			}
			m.mu.Unlock()
			nextProbe = now.Add(m.cfg.Interval)
		}
	}
}

func (m *Monitor) die(reason error) error {
	m.mu.Lock()
	m.state = Dead
	m.mu.Unlock()

	if m.onDead != nil {
		m.onDead(reason)
	}
	return reason
}
