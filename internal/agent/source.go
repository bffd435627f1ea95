package agent

import (
	"math/rand"
	"sync"

	"github.com/mukundvijay123/5thSemEL/internal/telemetry"
)

// Source produces telemetry samples.
type Source interface {
	Next() telemetry.Record
}

// SyntheticSource generates plausible readings for bench and demo use.
type SyntheticSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSyntheticSource returns a generator seeded with seed.
func NewSyntheticSource(seed int64) *SyntheticSource {
	return &SyntheticSource{rng: rand.New(rand.NewSource(seed))}
}

func (s *SyntheticSource) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Next returns one sample. The derived maintenance values (temperature
// difference, energy) are computed from the sampled ones.
func (s *SyntheticSource) Next() telemetry.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	air := s.uniform(298, 300)
	process := s.uniform(308, 310)
	speed := s.uniform(1400, 1600)
	torque := s.uniform(30, 60)
	wear := float64(s.rng.Intn(16))

	return telemetry.Record{
		Maintenance: [telemetry.MaintenanceFeatures]float64{
			air,
			process,
			speed,
			torque,
			wear,
			process - air,
			torque * speed,
		},
		Engine: [telemetry.EngineFeatures]float64{
			s.uniform(400, 900),
			s.uniform(2, 6),
			s.uniform(6, 20),
			s.uniform(1, 5),
			s.uniform(70, 90),
			s.uniform(70, 90),
		},
	}
}
