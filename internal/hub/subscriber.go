package hub

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the write side of a WebSocket connection. *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Subscriber is one monitor's outbound stream: the snapshot frames captured
// at registration followed by live updates from a bounded FIFO queue.
// Only the writer goroutine touches the connection's data frames.
type Subscriber struct {
	ID string

	conn        Conn
	sendTimeout time.Duration
	queue       chan []byte
	snapshot    [][]byte

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

func newSubscriber(id string, conn Conn, queueSize int, sendTimeout time.Duration) *Subscriber {
	return &Subscriber{
		ID:          id,
		conn:        conn,
		sendTimeout: sendTimeout,
		queue:       make(chan []byte, queueSize),
		done:        make(chan struct{}),
	}
}

// enqueue offers msg without blocking. It fails when the queue is full or
// the subscriber is closed.
func (s *Subscriber) enqueue(msg []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.queue <- msg:
		return true
	default:
		return false
	}
}

// run writes the snapshot, then live updates, until close or a failed write.
func (s *Subscriber) run() error {
	for _, msg := range s.snapshot {
		if err := s.write(msg); err != nil {
			return err
		}
	}
	s.snapshot = nil

	for {
		select {
		case <-s.done:
			return nil
		case msg := <-s.queue:
			if err := s.write(msg); err != nil {
				return err
			}
		}
	}
}

func (s *Subscriber) write(msg []byte) error {
	if s.sendTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.sendTimeout)); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// close stops the writer and closes the connection. The first reason wins.
func (s *Subscriber) close(reason error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = reason
		s.mu.Unlock()

		close(s.done)
		_ = s.conn.Close()
	})
}

// Done is closed when the subscriber has been removed.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Err returns why the subscriber was removed, or nil while it is live.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
