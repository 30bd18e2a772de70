// Package importer converts Health Auto Export workouts into activity
// sessions. Payloads arrive as exported JSON files, as REST pushes from the
// phone, or straight from the HAE TCP server.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/claude/mafwalk/internal/maf"
	"github.com/claude/mafwalk/internal/models"
)

// Store is the subset of the store the importer needs.
type Store interface {
	GetAllActivities(ctx context.Context) ([]models.ActivitySession, error)
	GetProfileOrDefault(ctx context.Context) (models.UserProfile, bool, error)
	SaveActivity(ctx context.Context, session models.ActivitySession) error
}

// WorkoutSource fetches workouts for a time range, e.g. health.Native.
type WorkoutSource interface {
	QueryWorkouts(ctx context.Context, start, end time.Time) ([]models.HAEWorkout, error)
}

// Result tracks import progress.
type Result struct {
	FilesProcessed int `json:"files_processed,omitempty"`
	FilesErrored   int `json:"files_errored,omitempty"`

	WorkoutsReceived   int `json:"workouts_received"`
	WorkoutsImported   int `json:"workouts_imported"`
	WorkoutsDuplicated int `json:"workouts_duplicated"`
	WorkoutsSkipped    int `json:"workouts_skipped"`
	HRCorrelated       int `json:"hr_correlated"`

	DryRun bool `json:"dry_run,omitempty"`
}

// Importer turns HAE workouts into sessions, skipping non-walking activities
// and workouts already imported.
type Importer struct {
	store    Store
	log      *slog.Logger
	dryRun   bool
	strideKm float64
	policy   maf.Policy
}

// Option configures an Importer.
type Option func(*Importer)

// WithPolicy overrides the stride length and zone width.
func WithPolicy(strideKm float64, zoneWidth int) Option {
	return func(imp *Importer) {
		imp.strideKm = strideKm
		imp.policy = maf.Policy{ZoneWidth: zoneWidth}
	}
}

// New creates a new Importer. In dry-run mode nothing is written.
func New(store Store, log *slog.Logger, dryRun bool, opts ...Option) *Importer {
	imp := &Importer{
		store:    store,
		log:      log,
		dryRun:   dryRun,
		strideKm: models.StrideLengthKm,
		policy:   maf.DefaultPolicy,
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// ImportPath imports a single payload file, or every *.json file in a directory.
func (imp *Importer) ImportPath(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.json"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
	}

	result := &Result{DryRun: imp.dryRun}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			imp.log.Warn("read failed", "file", f, "error", err)
			result.FilesErrored++
			continue
		}
		var payload models.HAEPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			imp.log.Warn("parse failed", "file", f, "error", err)
			result.FilesErrored++
			continue
		}
		if err := imp.importPayload(ctx, &payload, result); err != nil {
			return result, fmt.Errorf("importing %s: %w", filepath.Base(f), err)
		}
		result.FilesProcessed++
	}
	return result, nil
}

// ImportPayload imports the workouts of one REST payload.
func (imp *Importer) ImportPayload(ctx context.Context, payload *models.HAEPayload) (*Result, error) {
	result := &Result{DryRun: imp.dryRun}
	if err := imp.importPayload(ctx, payload, result); err != nil {
		return result, err
	}
	return result, nil
}

// ImportFromSource pulls the workouts in [start, end] from src and imports them.
func (imp *Importer) ImportFromSource(ctx context.Context, src WorkoutSource, start, end time.Time) (*Result, error) {
	workouts, err := src.QueryWorkouts(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	return imp.ImportPayload(ctx, &models.HAEPayload{Data: models.HAEData{Workouts: workouts}})
}

func (imp *Importer) importPayload(ctx context.Context, payload *models.HAEPayload, result *Result) error {
	if len(payload.Data.Workouts) == 0 {
		return nil
	}

	profile, _, err := imp.store.GetProfileOrDefault(ctx)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}
	zone := imp.policy.ForProfile(profile)

	existing, err := imp.store.GetAllActivities(ctx)
	if err != nil {
		return fmt.Errorf("loading activities: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, a := range existing {
		seen[a.ID] = true
	}

	samples := collectSamples(payload.Data.Metrics, imp.log)

	for _, w := range payload.Data.Workouts {
		result.WorkoutsReceived++
		if !w.IsWalkOrRun() {
			result.WorkoutsSkipped++
			imp.log.Debug("skipping workout", "name", w.Name, "id", w.ID)
			continue
		}

		id := SessionID(w)
		if seen[id] {
			result.WorkoutsDuplicated++
			continue
		}

		if len(w.HeartRateData) == 0 {
			if points := samples.heartRateIn(w.Start.Time, w.End.Time); len(points) > 0 {
				w.HeartRateData = points
				result.HRCorrelated++
			}
		}
		if len(w.StepCount) == 0 {
			w.StepCount = samples.stepsIn(w.Start.Time, w.End.Time)
		}

		session := ToSession(w, zone, imp.strideKm)
		seen[id] = true
		result.WorkoutsImported++

		if imp.dryRun {
			imp.log.Info("dry-run: would import workout", "id", session.ID, "date", session.DateKey(),
				"steps", session.Steps, "distance_km", session.Distance)
			continue
		}
		if err := imp.store.SaveActivity(ctx, session); err != nil {
			return fmt.Errorf("saving workout %s: %w", w.ID, err)
		}
	}
	return nil
}

// sessionNamespace scopes IDs derived for workouts that arrive without one.
var sessionNamespace = uuid.MustParse("6f1d7f0e-3c55-4b8e-9d0a-6a8f2f1c2b10")

// SessionID returns the stable session ID for w. Workouts without an HAE id
// get a name-based UUID from their name and start time so re-imports dedupe.
func SessionID(w models.HAEWorkout) string {
	if w.ID != "" {
		return w.ID
	}
	key := w.Name + "|" + w.Start.Format(models.HAETimeLayout)
	return uuid.NewSHA1(sessionNamespace, []byte(key)).String()
}

// ToSession converts one HAE workout into an activity session. Time in zone
// is measured from the heart rate samples, see minutesInZone.
func ToSession(w models.HAEWorkout, zone maf.Result, strideKm float64) models.ActivitySession {
	start, end := w.Start.Time, w.End.Time
	durationSec := w.Duration
	if durationSec <= 0 && end.After(start) {
		durationSec = end.Sub(start).Seconds()
	}

	var distance float64
	if w.Distance != nil {
		distance = w.Distance.Kilometers()
	}
	steps, ok := w.TotalSteps()
	if !ok {
		steps = models.StepsForDistance(distance, strideKm)
	}
	if distance == 0 {
		distance = models.DistanceForSteps(steps, strideKm)
	}

	endMs := end.UnixMilli()
	s := models.ActivitySession{
		ID:        SessionID(w),
		Date:      models.FormatTimestamp(end),
		StartTime: start.UnixMilli(),
		EndTime:   &endMs,
		Duration:  int(math.Floor(durationSec / 60)),
		Steps:     steps,
		Distance:  distance,
	}

	if avg, ok := w.AverageHeartRate(); ok {
		s.AvgHeartRate = &avg
	} else if avg, ok := meanHeartRate(w.HeartRateData); ok {
		s.AvgHeartRate = &avg
	}
	if maxHR, ok := w.MaximumHeartRate(); ok {
		s.MaxHeartRate = &maxHR
	} else if maxHR, ok := peakHeartRate(w.HeartRateData); ok {
		s.MaxHeartRate = &maxHR
	}
	if w.ActiveEnergyBurned != nil {
		kcal := w.ActiveEnergyBurned.Kilocalories()
		s.Calories = &kcal
	}

	s.TimeInMAFZone = minutesInZone(w.HeartRateData, zone, end)
	if s.TimeInMAFZone > s.Duration {
		s.TimeInMAFZone = s.Duration
	}
	return s
}

// minutesInZone credits each in-zone sample with the time until the next
// sample (or the workout end), at most one minute, and rounds the total down
// to whole minutes. Samples may come per minute or every few seconds.
func minutesInZone(points []models.HAEWorkoutHRPoint, zone maf.Result, end time.Time) int {
	pts := make([]models.HAEWorkoutHRPoint, 0, len(points))
	for _, p := range points {
		if p.Avg > 0 {
			pts = append(pts, p)
		}
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date.Time) })

	var inZone time.Duration
	for i, p := range pts {
		if !maf.InZone(p.Avg, zone) {
			continue
		}
		next := end
		if i+1 < len(pts) {
			next = pts[i+1].Date.Time
		}
		gap := min(next.Sub(p.Date.Time), time.Minute)
		if gap > 0 {
			inZone += gap
		}
	}
	return int(inZone / time.Minute)
}

func meanHeartRate(points []models.HAEWorkoutHRPoint) (float64, bool) {
	var sum float64
	n := 0
	for _, p := range points {
		if p.Avg > 0 {
			sum += p.Avg
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func peakHeartRate(points []models.HAEWorkoutHRPoint) (float64, bool) {
	var peak float64
	for _, p := range points {
		v := p.Max
		if v == 0 {
			v = p.Avg
		}
		if v > peak {
			peak = v
		}
	}
	return peak, peak > 0
}
