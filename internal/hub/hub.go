//
//
package hub

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mukundvijay123/5thSemEL/internal/audit"
	"github.com/mukundvijay123/5thSemEL/internal/metrics"
	"github.com/mukundvijay123/5thSemEL/internal/state"
)

// Options configures the broadcast side of the hub.
type Options struct {
	QueueSize   int
	SendTimeout time.Duration
}

// dropJournal records subscribers the hub removed. *audit.Logger satisfies it.
type dropJournal interface {
	LogDrop(session, reason string)
}

// Hub fans vehicle updates out to monitor subscribers.
//
// Publish never blocks on a subscriber: each one has a bounded queue
// drained by its own writer, and a subscriber whose queue is full is
// dropped. Updates reach every subscriber in publish order.
type Hub struct {
	registry *Registry
	store    *state.Store
	opts     Options

	log     zerolog.Logger
	metrics *metrics.Metrics
	journal dropJournal

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHub creates a hub reading snapshots from store.
func NewHub(store *state.Store, opts Options, log zerolog.Logger, m *metrics.Metrics, a *audit.Logger) *Hub {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	return &Hub{
		registry: NewRegistry(),
		store:    store,
		opts:     opts,
		log:      log.With().Str("component", "hub").Logger(),
		metrics:  m,
		journal:  a,
	}
}

// Subscribe captures the current store snapshot and registers a subscriber
// for conn in one step, then starts its writer. The snapshot is written
// before any live update.
func (h *Hub) Subscribe(id string, conn Conn) (*Subscriber, error) {
	sub := newSubscriber(id, conn, h.opts.QueueSize, h.opts.SendTimeout)

	// The writer is counted under the registry lock so Stop, which closes
	// the registry before waiting, never races the Add.
	var snap []state.VehicleState
	if !h.registry.Register(sub, func() {
		snap = h.store.Snapshot()
		h.wg.Add(1)
	}) {
		return nil, ErrHubStopped
	}

	frames := make([][]byte, 0, len(snap))
	for _, st := range snap {
		msg, err := encodeState(st)
		if err != nil {
			h.Unsubscribe(sub, err)
			h.recordDrop(sub)
			h.wg.Done()
			return nil, err
		}
		frames = append(frames, msg)
	}
	sub.snapshot = frames

	go func() {
		defer h.wg.Done()
		if err := sub.run(); err != nil {
			h.Unsubscribe(sub, err)
		}
		h.recordDrop(sub)
	}()

	h.log.Debug().Str("session", id).Int("snapshot", len(frames)).Msg("monitor subscribed")
	return sub, nil
}

// Publish enqueues st for every registered subscriber and returns how many
// accepted it.
func (h *Hub) Publish(st state.VehicleState) int {
	msg, err := encodeState(st)
	if err != nil {
		h.log.Error().Err(err).Str("vehicle", st.VehicleID).Msg("failed to encode update")
		return 0
	}

	subs := h.registry.List()

	delivered := 0
	for _, sub := range subs {
		if sub.enqueue(msg) {
			delivered++
			h.metrics.Delivery(metrics.DeliveryQueued)
			continue
		}
		h.metrics.Delivery(metrics.DeliveryDropped)
		h.Unsubscribe(sub, ErrQueueFull)
	}
	return delivered
}

// Unsubscribe removes sub and closes its connection. Only the first call
// for a subscriber is counted. The journal entry is written later by the
// subscriber's writer as it exits, never by the caller.
func (h *Hub) Unsubscribe(sub *Subscriber, reason error) {
	if !h.registry.Remove(sub) {
		sub.close(reason)
		return
	}
	sub.close(reason)
	h.metrics.SubscriberDropped(dropReason(reason))
}

// recordDrop journals why sub went away, unless the monitor left on its
// own or the hub is shutting down.
func (h *Hub) recordDrop(sub *Subscriber) {
	reason := sub.Err()
	if reason == nil || errors.Is(reason, ErrDisconnected) || errors.Is(reason, ErrHubStopped) {
		return
	}
	if h.journal != nil {
		h.journal.LogDrop(sub.ID, reason.Error())
	}
	h.log.Info().Str("session", sub.ID).Err(reason).Msg("monitor dropped")
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	return h.registry.Len()
}

// Stop closes every subscriber and refuses new ones. It waits up to five
// seconds for the writers to exit.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		for _, sub := range h.registry.Close() {
			sub.close(ErrHubStopped)
			h.metrics.SubscriberDropped(metrics.DropShutdown)
		}

		done := make(chan struct{})
		go func() {
			h.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			h.log.Warn().Msg("subscriber writers did not exit before timeout")
		}
	})
}

func encodeState(st state.VehicleState) ([]byte, error) {
	msg, err := json.Marshal(st.Reply())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal update for %s: %w", st.VehicleID, err)
	}
	return msg, nil
}
