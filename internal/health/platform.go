// Package health adapts the phone's health store to the app. A Platform is
// chosen once at startup: native talks to the Health Auto Export server on the
// device, simulated produces pseudo-random readings for development.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/mafwalk/internal/config"
)

// Authorization scopes requested from the health store.
var (
	ReadScopes  = []string{"heartRate", "steps", "distance", "activeEnergy"}
	WriteScopes = []string{"steps", "distance", "workout"}
)

// Reading is one bundle of values sampled over a short window. Nil fields
// were not available.
type Reading struct {
	At        time.Time `json:"at"`
	HeartRate *float64  `json:"heartRate,omitempty"`
	Steps     *float64  `json:"steps,omitempty"`
	Distance  *float64  `json:"distance,omitempty"` // km
}

// WorkoutType is the activity type written back to the health store.
type WorkoutType string

const (
	WorkoutWalking WorkoutType = "walking"
	WorkoutRunning WorkoutType = "running"
)

// Workout is a finished session mirrored to the health store.
type Workout struct {
	Type         WorkoutType
	Start        time.Time
	End          time.Time
	Duration     int     // minutes
	Distance     float64 // km
	AvgHeartRate *float64
}

// Platform is the health capability. Query methods report ok=false when the
// value is unavailable; failures are logged by the implementation and never
// returned.
type Platform interface {
	Mode() string
	IsAvailable() bool
	IsAuthorized() bool
	RequestAuthorization(ctx context.Context) bool
	QuerySteps(ctx context.Context, start, end time.Time) (float64, bool)
	QueryHeartRate(ctx context.Context, start, end time.Time) (float64, bool)
	QueryDistance(ctx context.Context, start, end time.Time) (float64, bool)
	SaveWorkout(ctx context.Context, w Workout) bool

	// Sample returns the reading for the tick ending at end. Steps and
	// Distance are the amounts accrued in (start, end] only, so readings for
	// consecutive windows can be summed. HeartRate is the current value.
	Sample(ctx context.Context, start, end time.Time) Reading
}

// Status describes the selected platform for the presentation layer.
type Status struct {
	Mode         string        `json:"mode"`
	Available    bool          `json:"available"`
	Authorized   bool          `json:"authorized"`
	PollInterval time.Duration `json:"pollIntervalNs"`
	ReadScopes   []string      `json:"readScopes"`
	WriteScopes  []string      `json:"writeScopes"`
}

// New builds the platform named by cfg.Mode and requests health access. A
// native platform that cannot reach the device is still returned; it reports
// unavailable and unauthorized until a later RequestAuthorization succeeds.
func New(ctx context.Context, cfg config.HealthConfig, log *slog.Logger) (Platform, error) {
	switch cfg.Mode {
	case config.HealthNative:
		n := NewNative(cfg.Host, cfg.Port, cfg.Timeout, log)
		if !n.RequestAuthorization(ctx) {
			log.Warn("health access not granted, readings will be absent",
				"host", cfg.Host, "port", cfg.Port, "reachable", n.IsAvailable())
		}
		return n, nil
	case config.HealthSimulated, "":
		return NewSimulated(log), nil
	default:
		return nil, fmt.Errorf("unknown health mode %q", cfg.Mode)
	}
}

// StatusOf reports p's current state.
func StatusOf(p Platform, pollInterval time.Duration) Status {
	return Status{
		Mode:         p.Mode(),
		Available:    p.IsAvailable(),
		Authorized:   p.IsAuthorized(),
		PollInterval: pollInterval,
		ReadScopes:   ReadScopes,
		WriteScopes:  WriteScopes,
	}
}

func ptr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
