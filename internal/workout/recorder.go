// Package workout records a live walking session from health platform
// readings and persists it when stopped.
package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/mafwalk/internal/health"
	"github.com/claude/mafwalk/internal/maf"
	"github.com/claude/mafwalk/internal/models"
	"github.com/claude/mafwalk/internal/observability"
)

var (
	ErrWorkoutActive = errors.New("a workout is already in progress")
	ErrNoWorkout     = errors.New("no workout in progress")
	ErrPaused        = errors.New("workout is already paused")
	ErrNotPaused     = errors.New("workout is not paused")
	ErrEnded         = errors.New("workout has ended and is waiting to be saved")
)

// SessionStore is the subset of the store the recorder needs.
type SessionStore interface {
	GetProfileOrDefault(ctx context.Context) (models.UserProfile, bool, error)
	SaveActivity(ctx context.Context, session models.ActivitySession) error
}

// Recorder runs at most one workout at a time.
type Recorder struct {
	store    SessionStore
	platform health.Platform
	monitor  *health.Monitor
	policy   maf.Policy
	strideKm float64
	log      *slog.Logger
	now      func() time.Time

	// stopMu serializes Stop and Discard.
	stopMu sync.Mutex
	mu     sync.Mutex
	active *workout
}

type workout struct {
	id          string
	handle      health.Handle
	start       time.Time
	zone        maf.Result
	paused      bool
	pausedAt    time.Time
	pausedTotal time.Duration
	// ended is set by the first Stop. The workout stays active until it is
	// saved or discarded.
	ended time.Time

	steps       float64
	distance    float64
	heartRate   *float64
	hrSum       float64
	hrCount     int
	maxHR       float64
	zoneSeconds float64
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock replaces time.Now for elapsed-time accounting.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithPolicy overrides the stride length and zone width.
func WithPolicy(strideKm float64, zoneWidth int) Option {
	return func(r *Recorder) {
		r.strideKm = strideKm
		r.policy = maf.Policy{ZoneWidth: zoneWidth}
	}
}

// NewRecorder creates a recorder saving to store and sampling through monitor.
func NewRecorder(store SessionStore, platform health.Platform, monitor *health.Monitor, log *slog.Logger, opts ...Option) *Recorder {
	r := &Recorder{
		store:    store,
		platform: platform,
		monitor:  monitor,
		policy:   maf.DefaultPolicy,
		strideKm: models.StrideLengthKm,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Status is a snapshot of the workout in progress.
type Status struct {
	ID                   string       `json:"id"`
	StartedAt            time.Time    `json:"startedAt"`
	Paused               bool         `json:"paused"`
	Ended                bool         `json:"ended,omitempty"`
	ElapsedSeconds       int          `json:"elapsedSeconds"`
	Steps                int          `json:"steps"`
	Distance             float64      `json:"distance"`
	MeasuredDistance     float64      `json:"measuredDistance"`
	HeartRate            *float64     `json:"heartRate,omitempty"`
	Zone                 *maf.Reading `json:"zone,omitempty"`
	MarkerPosition       *float64     `json:"markerPosition,omitempty"`
	TimeInMAFZoneSeconds int          `json:"timeInMAFZoneSeconds"`
	MAF                  maf.Result   `json:"maf"`
}

// Start begins a workout against the profile's MAF zone.
func (r *Recorder) Start(ctx context.Context) (Status, error) {
	profile, _, err := r.store.GetProfileOrDefault(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("loading profile: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return Status{}, ErrWorkoutActive
	}
	w := &workout{
		id:    uuid.NewString(),
		start: r.now(),
		zone:  r.policy.ForProfile(profile),
	}
	r.active = w
	w.handle = r.monitor.Start(func(reading health.Reading) { r.record(w, reading) })

	observability.SetWorkoutActive(true)
	r.log.Info("workout started", "id", w.id, "zone", w.zone.Zone)
	return r.status(w), nil
}

// record folds one reading into w. Readings for a finished or paused
// workout are dropped.
func (r *Recorder) record(w *workout, reading health.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != w || w.paused || !w.ended.IsZero() {
		return
	}
	if reading.Steps != nil {
		w.steps += *reading.Steps
	}
	if reading.Distance != nil {
		w.distance += *reading.Distance
	}
	if reading.HeartRate != nil && *reading.HeartRate > 0 {
		hr := *reading.HeartRate
		w.heartRate = &hr
		w.hrSum += hr
		w.hrCount++
		if hr > w.maxHR {
			w.maxHR = hr
		}
		if maf.InZone(hr, w.zone) {
			w.zoneSeconds += r.monitor.Interval().Seconds()
		}
	}
}

// Pause stops accumulating time and readings until Resume.
func (r *Recorder) Pause() (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.active
	if w == nil {
		return Status{}, ErrNoWorkout
	}
	if !w.ended.IsZero() {
		return Status{}, ErrEnded
	}
	if w.paused {
		return Status{}, ErrPaused
	}
	w.paused = true
	w.pausedAt = r.now()
	r.log.Info("workout paused", "id", w.id)
	return r.status(w), nil
}

// Resume continues a paused workout.
func (r *Recorder) Resume() (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.active
	if w == nil {
		return Status{}, ErrNoWorkout
	}
	if !w.ended.IsZero() {
		return Status{}, ErrEnded
	}
	if !w.paused {
		return Status{}, ErrNotPaused
	}
	w.pausedTotal += r.now().Sub(w.pausedAt)
	w.paused = false
	r.log.Info("workout resumed", "id", w.id)
	return r.status(w), nil
}

// Current returns the workout in progress.
func (r *Recorder) Current() (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return Status{}, false
	}
	return r.status(r.active), true
}

// Stop ends the workout, saves it to the store and mirrors it to the health
// platform. Mirroring is best effort. If the save fails the ended workout
// stays current, and a later Stop retries with the original end time.
func (r *Recorder) Stop(ctx context.Context) (models.ActivitySession, error) {
	r.stopMu.Lock()
	defer r.stopMu.Unlock()

	r.mu.Lock()
	w := r.active
	if w == nil {
		r.mu.Unlock()
		return models.ActivitySession{}, ErrNoWorkout
	}
	if w.ended.IsZero() {
		w.ended = r.now()
	}
	end := w.ended
	r.mu.Unlock()

	// No callback can touch w once the subscription is stopped.
	r.monitor.Stop(w.handle)
	observability.SetWorkoutActive(false)

	session := r.session(w, end)
	if err := r.store.SaveActivity(ctx, session); err != nil {
		r.log.Warn("workout kept for retry", "id", w.id, "error", err)
		return models.ActivitySession{}, fmt.Errorf("saving workout: %w", err)
	}

	r.mu.Lock()
	if r.active == w {
		r.active = nil
	}
	r.mu.Unlock()
	r.log.Info("workout saved", "id", session.ID, "duration_min", session.Duration, "steps", session.Steps)

	mirrored := r.platform.SaveWorkout(ctx, health.Workout{
		Type:         health.WorkoutWalking,
		Start:        w.start,
		End:          end,
		Duration:     session.Duration,
		Distance:     session.Distance,
		AvgHeartRate: session.AvgHeartRate,
	})
	if !mirrored {
		r.log.Debug("workout not mirrored to health platform", "id", session.ID, "mode", r.platform.Mode())
	}
	return session, nil
}

// Discard abandons the workout without saving.
func (r *Recorder) Discard() error {
	r.stopMu.Lock()
	defer r.stopMu.Unlock()

	r.mu.Lock()
	w := r.active
	r.active = nil
	r.mu.Unlock()

	if w == nil {
		return ErrNoWorkout
	}
	r.monitor.Stop(w.handle)
	observability.SetWorkoutActive(false)
	r.log.Info("workout discarded", "id", w.id)
	return nil
}

func (w *workout) elapsed(now time.Time) time.Duration {
	paused := w.pausedTotal
	if w.paused {
		paused += now.Sub(w.pausedAt)
	}
	d := now.Sub(w.start) - paused
	if d < 0 {
		return 0
	}
	return d
}

func (r *Recorder) session(w *workout, end time.Time) models.ActivitySession {
	steps := int(w.steps)
	endMs := end.UnixMilli()
	s := models.ActivitySession{
		ID:            w.id,
		Date:          models.FormatTimestamp(end),
		StartTime:     w.start.UnixMilli(),
		EndTime:       &endMs,
		Duration:      int(w.elapsed(end) / time.Minute),
		Steps:         steps,
		Distance:      models.DistanceForSteps(steps, r.strideKm),
		TimeInMAFZone: int(math.Floor(w.zoneSeconds / 60)),
	}
	if w.hrCount > 0 {
		avg := w.hrSum / float64(w.hrCount)
		maxHR := w.maxHR
		s.AvgHeartRate = &avg
		s.MaxHeartRate = &maxHR
	}
	return s
}

// clock is the time elapsed is measured to: now while w runs, its end after.
func (r *Recorder) clock(w *workout) time.Time {
	if !w.ended.IsZero() {
		return w.ended
	}
	return r.now()
}

// status must be called with r.mu held.
func (r *Recorder) status(w *workout) Status {
	steps := int(w.steps)
	st := Status{
		ID:                   w.id,
		StartedAt:            w.start,
		Paused:               w.paused,
		Ended:                !w.ended.IsZero(),
		ElapsedSeconds:       int(w.elapsed(r.clock(w)) / time.Second),
		Steps:                steps,
		Distance:             models.DistanceForSteps(steps, r.strideKm),
		MeasuredDistance:     w.distance,
		TimeInMAFZoneSeconds: int(w.zoneSeconds),
		MAF:                  w.zone,
	}
	if w.heartRate != nil {
		hr := *w.heartRate
		zone := maf.HeartRateZone(hr, w.zone)
		marker := maf.MarkerPosition(hr, w.zone)
		st.HeartRate = &hr
		st.Zone = &zone
		st.MarkerPosition = &marker
	}
	return st
}
