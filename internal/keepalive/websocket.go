package keepalive

import (
	"time"

	"github.com/gorilla/websocket"
)

// Watch attaches a monitor to conn. Probes are WebSocket pings written with
// WriteControl, which is safe alongside the connection's single writer.
// Pongs are acknowledgements; the caller should also Ack on inbound frames.
// The pong handler only fires while someone is reading conn.
func Watch(conn *websocket.Conn, cfg Config, writeWait time.Duration, onDead func(error)) *Monitor {
	m := New(cfg, func() error {
		return conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
	}, onDead)

	conn.SetPongHandler(func(string) error {
		m.Ack()
		return nil
	})
	return m
}
