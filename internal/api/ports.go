// Package api defines ports (interfaces) for API server dependencies.
package api

import (
	"net/http"

	"github.com/mukundvijay123/5thSemEL/internal/hub"
	"github.com/mukundvijay123/5thSemEL/internal/state"
)

// StateReadPort is the read side of the state store.
type StateReadPort interface {
	Get(vehicleID string) (state.VehicleState, bool)
	Snapshot() []state.VehicleState
	Len() int
}

// SessionPort serves the WebSocket endpoints and reports session counts.
type SessionPort interface {
	HandleVehicle(w http.ResponseWriter, r *http.Request)
	HandleMonitor(w http.ResponseWriter, r *http.Request)
	Vehicles() int
	Monitors() int
}

// Compile-time assertions for port conformance
var _ StateReadPort = (*state.Store)(nil)
var _ SessionPort = (*hub.Server)(nil)
