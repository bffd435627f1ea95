//
//
package state

import (
	"sort"
	"sync"
	"time"

	"github.com/mukundvijay123/5thSemEL/internal/telemetry"
)

// VehicleState is the latest record and prediction seen for one vehicle.
type VehicleState struct {
	VehicleID  string               `json:"vehicle_id"`
	Telemetry  telemetry.Record     `json:"telemetry"`
	Prediction telemetry.Prediction `json:"prediction"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// Reply returns the monitor/producer frame for this state.
func (s VehicleState) Reply() telemetry.Reply {
	return telemetry.NewReply(s.VehicleID, s.Prediction)
}

// Store keeps one VehicleState per vehicle id. Entries are overwritten on
// every update and never removed.
type Store struct {
	mu       sync.RWMutex
	vehicles map[string]VehicleState
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		vehicles: make(map[string]VehicleState),
		now:      time.Now,
	}
}

// Put inserts or overwrites the state for id and returns the stored value.
func (s *Store) Put(id string, rec telemetry.Record, p telemetry.Prediction) VehicleState {
	st := VehicleState{
		VehicleID:  id,
		Telemetry:  rec,
		Prediction: p,
		UpdatedAt:  s.now().UTC(),
	}

	s.mu.Lock()
	s.vehicles[id] = st
	s.mu.Unlock()

	return st
}

// Get returns the state for id.
func (s *Store) Get(id string) (VehicleState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.vehicles[id]
	return st, ok
}

// Snapshot returns a copy of every entry ordered by vehicle id.
func (s *Store) Snapshot() []VehicleState {
	s.mu.RLock()
	out := make([]VehicleState, 0, len(s.vehicles))
	for _, st := range s.vehicles {
		out = append(out, st)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].VehicleID < out[j].VehicleID })
	return out
}

// Len returns the number of known vehicles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vehicles)
}
