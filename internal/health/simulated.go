package health

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Simulated ranges.
const (
	simHeartRateMin  = 70
	simHeartRateSpan = 50   // 70..119 bpm
	simStepsSpan     = 10   // 0..9 steps
	simDistanceMaxKm = 0.01 // [0, 0.01) km
)

// Simulated stands in for the health store on machines without one. It
// reports itself unavailable, answers queries with absent values and feeds
// the Monitor pseudo-random readings.
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand
	log *slog.Logger
}

// NewSimulated creates a simulated platform seeded from the clock.
func NewSimulated(log *slog.Logger) *Simulated {
	seed := uint64(time.Now().UnixNano())
	return NewSimulatedWithSource(rand.NewPCG(seed, seed>>1), log)
}

// NewSimulatedWithSource creates a simulated platform over src, for
// reproducible readings.
func NewSimulatedWithSource(src rand.Source, log *slog.Logger) *Simulated {
	return &Simulated{rng: rand.New(src), log: log}
}

func (s *Simulated) Mode() string { return "simulated" }

func (s *Simulated) IsAvailable() bool { return false }

func (s *Simulated) IsAuthorized() bool { return false }

func (s *Simulated) RequestAuthorization(context.Context) bool {
	s.log.Info("health store not available, running on simulated readings")
	return false
}

func (s *Simulated) QuerySteps(context.Context, time.Time, time.Time) (float64, bool) {
	return 0, false
}

func (s *Simulated) QueryHeartRate(context.Context, time.Time, time.Time) (float64, bool) {
	return 0, false
}

func (s *Simulated) QueryDistance(context.Context, time.Time, time.Time) (float64, bool) {
	return 0, false
}

func (s *Simulated) SaveWorkout(context.Context, Workout) bool { return false }

// Sample returns a pseudo-random reading. Every field is always present.
func (s *Simulated) Sample(_ context.Context, _, end time.Time) Reading {
	s.mu.Lock()
	hr := float64(simHeartRateMin + s.rng.IntN(simHeartRateSpan))
	steps := float64(s.rng.IntN(simStepsSpan))
	dist := s.rng.Float64() * simDistanceMaxKm
	s.mu.Unlock()

	return Reading{At: end, HeartRate: &hr, Steps: &steps, Distance: &dist}
}
