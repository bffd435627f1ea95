// Package agent implements the vehicle-side client: it keeps a WebSocket
// link to the hub alive and streams telemetry at a fixed cadence.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/mukundvijay123/5thSemEL/internal/keepalive"
	"github.com/mukundvijay123/5thSemEL/internal/metrics"
	"github.com/mukundvijay123/5thSemEL/internal/telemetry"
)

// State is the client's connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	BackingOff
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case BackingOff:
		return "backing_off"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Dialer opens the WebSocket link. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Options configures a Client.
type Options struct {
	URL           string
	VehicleID     string
	SendInterval  time.Duration
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	WriteWait     time.Duration
}

// Client is a reconnecting telemetry producer.
type Client struct {
	opts   Options
	source Source
	dialer Dialer
	sleep  func(ctx context.Context, d time.Duration) error

	log     zerolog.Logger
	metrics *metrics.Metrics

	state   atomic.Int32
	sent    atomic.Int64
	replies atomic.Int64
}

// New creates a client that dials with websocket.DefaultDialer.
func New(opts Options, source Source, log zerolog.Logger, m *metrics.Metrics) *Client {
	return &Client{
		opts:    opts,
		source:  source,
		dialer:  websocket.DefaultDialer,
		sleep:   sleepContext,
		log:     log.With().Str("component", "agent").Str("url", opts.URL).Logger(),
		metrics: m,
	}
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Sent returns the number of telemetry messages written.
func (c *Client) Sent() int64 { return c.sent.Load() }

// Replies returns the number of hub replies read.
func (c *Client) Replies() int64 { return c.replies.Load() }

func (c *Client) newBackOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     c.opts.BackoffBase,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         c.opts.BackoffMax,
	}
}

// Run connects and streams until ctx is cancelled. Every failure, whether
// dialing or mid-session, is followed by a backoff delay of base, doubling
// up to max, reset after each successful connection.
func (c *Client) Run(ctx context.Context) error {
	bo := c.newBackOff()
	bo.Reset()
	defer c.setState(Disconnected)

	for {
		if ctx.Err() != nil {
			return nil
		}

		c.setState(Connecting)
		conn, _, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn().Err(err).Msg("connection failed")
		} else {
			bo.Reset()
			c.setState(Connected)
			c.log.Info().Msg("connected to hub")

			err = c.stream(ctx, conn)
			c.setState(Disconnected)
			if ctx.Err() != nil {
				return nil
			}
			c.log.Warn().Err(err).Msg("connection lost")
		}

		delay := bo.NextBackOff()
		c.setState(BackingOff)
		c.metrics.AgentReconnect()
		c.log.Info().Dur("delay", delay).Msg("reconnecting after backoff")
		if err := c.sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// stream runs one connected session: a fixed-cadence sender, a reply
// reader and a keepalive monitor.
func (c *Client) stream(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	dead := make(chan error, 1)
	ka := keepalive.Watch(conn, keepalive.Config{
		Interval: c.opts.ProbeInterval,
		Timeout:  c.opts.ProbeTimeout,
	}, c.opts.WriteWait, func(reason error) {
		dead <- reason
		_ = conn.Close()
	})
	go func() { _ = ka.Run(ctx) }()
	defer ka.Stop()

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			ka.Ack()
			c.handleReply(data)
		}
	}()

	ticker := time.NewTicker(c.opts.SendInterval)
	defer ticker.Stop()

	for {
		if err := c.send(conn); err != nil {
			select {
			case reason := <-dead:
				return reason
			default:
				return err
			}
		}

		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteWait))
			return nil
		case reason := <-dead:
			return reason
		case err := <-readErr:
			select {
			case reason := <-dead:
				return reason
			default:
				return fmt.Errorf("read failed: %w", err)
			}
		case <-ticker.C:
		}
	}
}

func (c *Client) send(conn *websocket.Conn) error {
	msg := telemetry.NewMessage(c.opts.VehicleID, c.source.Next())
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry: %w", err)
	}

	if c.opts.WriteWait > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.metrics.AgentSend(metrics.ResultSendError)
		return fmt.Errorf("send failed: %w", err)
	}
	c.sent.Add(1)
	c.metrics.AgentSend(metrics.ResultOK)
	return nil
}

type hubReply struct {
	telemetry.Reply
	Error string `json:"error"`
}

func (c *Client) handleReply(data []byte) {
	c.replies.Add(1)

	var r hubReply
	if err := json.Unmarshal(data, &r); err != nil {
		c.log.Warn().Err(err).Msg("unreadable reply from hub")
		return
	}
	if r.Error != "" {
		c.log.Warn().Str("error", r.Error).Msg("hub rejected telemetry")
		return
	}
	c.log.Debug().
		Str("vehicle", r.VehicleID).
		Str("failure_type", r.FailureType).
		Str("engine_condition", r.EngineCondition).
		Msg("prediction received")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
