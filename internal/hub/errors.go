package hub

import (
	"errors"

	"github.com/mukundvijay123/5thSemEL/internal/keepalive"
	"github.com/mukundvijay123/5thSemEL/internal/metrics"
)

// Reasons a monitor subscriber leaves the registry.
var (
	ErrQueueFull    = errors.New("subscriber queue full")
	ErrWriteFailed  = errors.New("subscriber write failed")
	ErrDisconnected = errors.New("peer disconnected")
	ErrHubStopped   = errors.New("hub stopped")
)

// dropReason maps a removal cause to its metrics label.
func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrQueueFull):
		return metrics.DropQueueFull
	case errors.Is(err, ErrWriteFailed):
		return metrics.DropWriteFailed
	case errors.Is(err, keepalive.ErrTimeout):
		return metrics.DropKeepalive
	case errors.Is(err, ErrHubStopped):
		return metrics.DropShutdown
	default:
		return metrics.DropDisconnected
	}
}
