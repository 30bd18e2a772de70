package importer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/mafwalk/internal/maf"
	"github.com/claude/mafwalk/internal/models"
	"github.com/claude/mafwalk/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// walkPayload has one walk with inline heart rate, one walk relying on the
// payload-level heart_rate metric, and one strength workout.
const walkPayload = `{
  "data": {
    "metrics": [
      {"name": "heart_rate", "units": "count/min", "data": [
        {"date": "2025-03-19 18:00:00 +0000", "Min": 128, "Avg": 132, "Max": 136},
        {"date": "2025-03-19 18:01:00 +0000", "Min": 130, "Avg": 138, "Max": 141},
        {"date": "2025-03-19 18:02:00 +0000", "Min": 139, "Avg": 145, "Max": 150},
        {"date": "2025-03-19 21:00:00 +0000", "Min": 60, "Avg": 62, "Max": 64}
      ]}
    ],
    "workouts": [
      {
        "id": "A1B2C3D4-0000-4000-8000-000000000001",
        "name": "Outdoor Walk",
        "start": "2025-03-20 07:00:00 +0000",
        "end": "2025-03-20 07:05:00 +0000",
        "duration": 300,
        "distance": {"qty": 0.5, "units": "km"},
        "activeEnergyBurned": {"qty": 418.4, "units": "kJ"},
        "avgHeartRate": {"qty": 131, "units": "bpm"},
        "maxHeartRate": {"qty": 142, "units": "bpm"},
        "heartRateData": [
          {"date": "2025-03-20 07:00:00 +0000", "Min": 120, "Avg": 125, "Max": 129},
          {"date": "2025-03-20 07:01:00 +0000", "Min": 128, "Avg": 131, "Max": 134},
          {"date": "2025-03-20 07:02:00 +0000", "Min": 133, "Avg": 135, "Max": 138},
          {"date": "2025-03-20 07:03:00 +0000", "Min": 136, "Avg": 140, "Max": 142}
        ],
        "stepCount": [
          {"date": "2025-03-20 07:00:00 +0000", "qty": 300},
          {"date": "2025-03-20 07:03:00 +0000", "qty": 356}
        ]
      },
      {
        "id": "A1B2C3D4-0000-4000-8000-000000000002",
        "name": "Evening Walk",
        "start": "2025-03-19 18:00:00 +0000",
        "end": "2025-03-19 18:03:00 +0000",
        "duration": 180,
        "distance": {"qty": 0.25, "units": "mi"}
      },
      {
        "id": "A1B2C3D4-0000-4000-8000-000000000003",
        "name": "Traditional Strength Training",
        "start": "2025-03-19 12:00:00 +0000",
        "end": "2025-03-19 12:45:00 +0000",
        "duration": 2700
      }
    ]
  }
}`

func newTestImporter(t *testing.T, dryRun bool) (*Importer, *storage.Store) {
	t.Helper()
	store := storage.NewStore(storage.NewMemory(), testLogger())
	// Age 40 default profile: zone 130-140.
	profile := models.DefaultProfile()
	profile.Age = 40
	if err := store.SaveUserProfile(context.Background(), profile); err != nil {
		t.Fatal(err)
	}
	return New(store, testLogger(), dryRun), store
}

func decode(t *testing.T, raw string) *models.HAEPayload {
	t.Helper()
	var p models.HAEPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &p
}

// TestImportPayload verifies walks become sessions, other workouts are skipped and HR is correlated.
func TestImportPayload(t *testing.T) {
	imp, store := newTestImporter(t, false)
	ctx := context.Background()

	res, err := imp.ImportPayload(ctx, decode(t, walkPayload))
	if err != nil {
		t.Fatalf("ImportPayload: %v", err)
	}
	if res.WorkoutsReceived != 3 || res.WorkoutsImported != 2 || res.WorkoutsSkipped != 1 || res.HRCorrelated != 1 {
		t.Errorf("result = %+v", res)
	}

	acts, _ := store.GetAllActivities(ctx)
	if len(acts) != 2 {
		t.Fatalf("stored %d sessions, want 2", len(acts))
	}

	morning := acts[0]
	if morning.ID != "A1B2C3D4-0000-4000-8000-000000000001" || morning.DateKey() != "2025-03-20" {
		t.Errorf("morning = %+v", morning)
	}
	if morning.Steps != 656 || morning.Duration != 5 || morning.Distance != 0.5 {
		t.Errorf("morning totals = steps %d, duration %d, distance %v", morning.Steps, morning.Duration, morning.Distance)
	}
	if morning.TimeInMAFZone != 3 {
		t.Errorf("morning timeInMAFZone = %d, want 3", morning.TimeInMAFZone)
	}
	if morning.Calories == nil || math.Abs(*morning.Calories-100) > 1e-9 {
		t.Errorf("calories = %v, want 100", morning.Calories)
	}

	evening := acts[1]
	if evening.AvgHeartRate == nil || math.Abs(*evening.AvgHeartRate-(132+138+145)/3.0) > 1e-9 {
		t.Errorf("evening avg HR = %v", evening.AvgHeartRate)
	}
	if evening.MaxHeartRate == nil || *evening.MaxHeartRate != 150 {
		t.Errorf("evening max HR = %v, want 150", evening.MaxHeartRate)
	}
	if evening.TimeInMAFZone != 2 {
		t.Errorf("evening timeInMAFZone = %d, want 2", evening.TimeInMAFZone)
	}
	wantKm := 0.25 * 1.609344
	if math.Abs(evening.Distance-wantKm) > 1e-9 || evening.Steps != models.StepsForDistance(wantKm, models.StrideLengthKm) {
		t.Errorf("evening distance %v steps %d", evening.Distance, evening.Steps)
	}

	if d, ok, _ := store.GetDailyStats(ctx, "2025-03-19"); !ok || len(d.Sessions) != 1 {
		t.Errorf("2025-03-19 stats = %+v, %v", d, ok)
	}
}

// TestImportDedup verifies importing the same payload twice adds nothing.
func TestImportDedup(t *testing.T) {
	imp, store := newTestImporter(t, false)
	ctx := context.Background()

	if _, err := imp.ImportPayload(ctx, decode(t, walkPayload)); err != nil {
		t.Fatal(err)
	}
	res, err := imp.ImportPayload(ctx, decode(t, walkPayload))
	if err != nil {
		t.Fatal(err)
	}
	if res.WorkoutsImported != 0 || res.WorkoutsDuplicated != 2 {
		t.Errorf("second import = %+v", res)
	}
	if acts, _ := store.GetAllActivities(ctx); len(acts) != 2 {
		t.Errorf("stored %d sessions, want 2", len(acts))
	}
}

// TestImportDryRun verifies dry-run counts without writing.
func TestImportDryRun(t *testing.T) {
	imp, store := newTestImporter(t, true)
	ctx := context.Background()

	res, err := imp.ImportPayload(ctx, decode(t, walkPayload))
	if err != nil {
		t.Fatal(err)
	}
	if !res.DryRun || res.WorkoutsImported != 2 {
		t.Errorf("result = %+v", res)
	}
	if acts, _ := store.GetAllActivities(ctx); len(acts) != 0 {
		t.Errorf("dry run stored %d sessions", len(acts))
	}
}

// TestImportPath verifies directory imports read every JSON file and count bad ones.
func TestImportPath(t *testing.T) {
	imp, store := newTestImporter(t, false)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "export.json"), []byte(walkPayload), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}

	res, err := imp.ImportPath(context.Background(), dir)
	if err != nil {
		t.Fatalf("ImportPath: %v", err)
	}
	if res.FilesProcessed != 1 || res.FilesErrored != 1 || res.WorkoutsImported != 2 {
		t.Errorf("result = %+v", res)
	}
	if acts, _ := store.GetAllActivities(context.Background()); len(acts) != 2 {
		t.Errorf("stored %d sessions, want 2", len(acts))
	}

	if _, err := imp.ImportPath(context.Background(), filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing path")
	}
}

type staticSource []models.HAEWorkout

func (s staticSource) QueryWorkouts(context.Context, time.Time, time.Time) ([]models.HAEWorkout, error) {
	return s, nil
}

// TestImportFromSource verifies workouts pulled from a device are imported.
func TestImportFromSource(t *testing.T) {
	imp, store := newTestImporter(t, false)
	p := decode(t, walkPayload)

	res, err := imp.ImportFromSource(context.Background(), staticSource(p.Data.Workouts[:1]), time.Time{}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if res.WorkoutsImported != 1 {
		t.Errorf("result = %+v", res)
	}
	if acts, _ := store.GetAllActivities(context.Background()); len(acts) != 1 {
		t.Errorf("stored %d sessions, want 1", len(acts))
	}
}

// TestSessionIDStable verifies workouts without an id get the same derived id every time.
func TestSessionIDStable(t *testing.T) {
	var w models.HAEWorkout
	w.Name = "Outdoor Walk"
	if err := w.Start.Parse("2025-03-20 07:00:00 +0000"); err != nil {
		t.Fatal(err)
	}
	a, b := SessionID(w), SessionID(w)
	if a != b || a == "" {
		t.Errorf("ids %q and %q", a, b)
	}
	w.Start.Time = w.Start.Add(time.Minute)
	if SessionID(w) == a {
		t.Error("different start produced the same id")
	}
}

// TestToSessionStepsOnly verifies distance is derived from steps when the workout has none.
func TestToSessionStepsOnly(t *testing.T) {
	var w models.HAEWorkout
	w.ID = "x"
	w.Name = "Walk"
	w.Start.Time = time.Date(2025, 3, 20, 7, 0, 0, 0, time.UTC)
	w.End.Time = w.Start.Add(90 * time.Second)
	w.StepCount = []models.HAEMetricDataPoint{{Qty: 1000}}

	s := ToSession(w, maf.Calculate(40, models.FitnessIntermediate, models.HealthHealthy), models.StrideLengthKm)
	if s.Steps != 1000 || math.Abs(s.Distance-0.762) > 1e-9 {
		t.Errorf("steps %d distance %v", s.Steps, s.Distance)
	}
	if s.Duration != 1 {
		t.Errorf("duration = %d, want 1 (from start/end)", s.Duration)
	}
	if s.AvgHeartRate != nil || s.TimeInMAFZone != 0 {
		t.Errorf("heart rate fields set without samples: %+v", s)
	}
}

// hrSeries builds samples every step from start, in zone (135) for the first
// inZone span and above it (150) afterwards.
func hrSeries(start time.Time, total, step, inZone time.Duration) []models.HAEWorkoutHRPoint {
	var pts []models.HAEWorkoutHRPoint
	for off := time.Duration(0); off < total; off += step {
		p := models.HAEWorkoutHRPoint{Avg: 150, Units: "count/min"}
		if off < inZone {
			p.Avg = 135
		}
		p.Date.Time = start.Add(off)
		pts = append(pts, p)
	}
	return pts
}

// TestToSessionZoneMinutesBySampleTime verifies time in zone follows the time
// the samples cover rather than how many samples there are.
func TestToSessionZoneMinutesBySampleTime(t *testing.T) {
	zone := maf.Calculate(40, models.FitnessIntermediate, models.HealthHealthy)
	start := time.Date(2025, 3, 20, 7, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		step   time.Duration
		inZone time.Duration
		want   int
	}{
		{"five second samples", 5 * time.Second, 5 * time.Minute, 5},
		{"per minute samples", time.Minute, 12 * time.Minute, 12},
		{"sparse samples count a minute each", 5 * time.Minute, 30 * time.Minute, 6},
		{"all above zone", 5 * time.Second, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w models.HAEWorkout
			w.Name = "Outdoor Walk"
			w.Start.Time = start
			w.End.Time = start.Add(30 * time.Minute)
			w.HeartRateData = hrSeries(start, 30*time.Minute, tt.step, tt.inZone)

			s := ToSession(w, zone, models.StrideLengthKm)
			if s.Duration != 30 {
				t.Fatalf("duration = %d, want 30", s.Duration)
			}
			if s.TimeInMAFZone != tt.want {
				t.Errorf("timeInMAFZone = %d, want %d", s.TimeInMAFZone, tt.want)
			}
		})
	}
}

// TestToSessionZoneMinutesUnordered verifies samples are credited in time order.
func TestToSessionZoneMinutesUnordered(t *testing.T) {
	start := time.Date(2025, 3, 20, 7, 0, 0, 0, time.UTC)
	pts := hrSeries(start, 10*time.Minute, 30*time.Second, 4*time.Minute)
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
	var w models.HAEWorkout
	w.Start.Time = start
	w.End.Time = start.Add(10 * time.Minute)
	w.HeartRateData = pts

	s := ToSession(w, maf.Calculate(40, models.FitnessIntermediate, models.HealthHealthy), models.StrideLengthKm)
	if s.TimeInMAFZone != 4 {
		t.Errorf("timeInMAFZone = %d, want 4", s.TimeInMAFZone)
	}
}
