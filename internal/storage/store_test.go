package storage

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/claude/mafwalk/internal/models"
)

var fixedNow = time.Date(2025, 3, 20, 9, 30, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	t.Cleanup(func() { backend.Close() })
	return NewStore(backend, testLogger(), WithClock(func() time.Time { return fixedNow }))
}

// backends returns one fresh instance of each embedded backend.
func backends(t *testing.T) map[string]func() Backend {
	t.Helper()
	return map[string]func() Backend{
		"memory": func() Backend { return NewMemory() },
		"sqlite": func() Backend {
			b, err := OpenSQLite(filepath.Join(t.TempDir(), "mafwalk.db"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			return b
		},
	}
}

func hr(v float64) *float64 { return &v }

func session(id, date string, steps int, dist float64, dur, zone int, avg *float64) models.ActivitySession {
	return models.ActivitySession{
		ID:            id,
		Date:          date,
		StartTime:     fixedNow.UnixMilli(),
		Duration:      dur,
		Steps:         steps,
		Distance:      dist,
		AvgHeartRate:  avg,
		TimeInMAFZone: zone,
	}
}

// TestProfileRoundTrip verifies that a saved profile loads back equal in every field.
func TestProfileRoundTrip(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, mk())
			ctx := context.Background()

			if _, ok, err := s.GetUserProfile(ctx); err != nil || ok {
				t.Fatalf("GetUserProfile on empty store = ok:%v err:%v, want absent", ok, err)
			}

			w, h := 72.5, 180.0
			want := models.UserProfile{
				Age:           52,
				FitnessLevel:  models.FitnessRecovering,
				HealthStatus:  models.HealthMedication,
				Weight:        &w,
				Height:        &h,
				DailyStepGoal: 8000,
			}
			if err := s.SaveUserProfile(ctx, want); err != nil {
				t.Fatalf("SaveUserProfile: %v", err)
			}
			got, ok, err := s.GetUserProfile(ctx)
			if err != nil || !ok {
				t.Fatalf("GetUserProfile = ok:%v err:%v", ok, err)
			}
			if got.Age != want.Age || got.FitnessLevel != want.FitnessLevel || got.HealthStatus != want.HealthStatus ||
				got.DailyStepGoal != want.DailyStepGoal || *got.Weight != w || *got.Height != h {
				t.Errorf("round trip = %+v, want %+v", got, want)
			}

			// Saving again replaces the whole profile, optional fields included.
			if err := s.SaveUserProfile(ctx, models.DefaultProfile()); err != nil {
				t.Fatalf("SaveUserProfile: %v", err)
			}
			got, _, _ = s.GetUserProfile(ctx)
			if got.Weight != nil || got.Height != nil || got.Age != 30 {
				t.Errorf("overwrite = %+v, want defaults", got)
			}
		})
	}
}

// TestGetProfileOrDefault verifies first-launch defaults when nothing is saved.
func TestGetProfileOrDefault(t *testing.T) {
	s := newTestStore(t, NewMemory())
	p, saved, err := s.GetProfileOrDefault(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if saved {
		t.Error("saved = true on empty store")
	}
	if p.Age != 30 || p.DailyStepGoal != 10000 {
		t.Errorf("profile = %+v, want defaults", p)
	}
}

// TestSaveActivityAggregates verifies the two-session daily rollup.
func TestSaveActivityAggregates(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, mk())
			ctx := context.Background()

			s1 := session("s1", "2025-03-18T07:00:00.000Z", 1000, 0.76, 10, 5, hr(120))
			s2 := session("s2", "2025-03-18T18:30:00.000Z", 500, 0.38, 5, 2, hr(140))
			for _, a := range []models.ActivitySession{s1, s2} {
				if err := s.SaveActivity(ctx, a); err != nil {
					t.Fatalf("SaveActivity: %v", err)
				}
			}

			d, ok, err := s.GetDailyStats(ctx, "2025-03-18")
			if err != nil || !ok {
				t.Fatalf("GetDailyStats = ok:%v err:%v", ok, err)
			}
			if d.TotalSteps != 1500 || d.TotalDuration != 15 || d.TimeInMAFZone != 7 {
				t.Errorf("totals = %+v", d)
			}
			if math.Abs(d.TotalDistance-1.14) > 1e-9 {
				t.Errorf("TotalDistance = %f, want 1.14", d.TotalDistance)
			}
			if d.AvgHeartRate == nil || *d.AvgHeartRate != 130 {
				t.Errorf("AvgHeartRate = %v, want 130", d.AvgHeartRate)
			}
			if len(d.Sessions) != 2 || d.Sessions[0].ID != "s1" || d.Sessions[1].ID != "s2" {
				t.Errorf("sessions = %+v", d.Sessions)
			}

			all, err := s.GetAllActivities(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 2 || all[0].ID != "s1" || all[1].ID != "s2" {
				t.Errorf("GetAllActivities = %+v", all)
			}
		})
	}
}

// TestEverySessionInOneBucket verifies that sessions land in exactly one rollup keyed by date.
func TestEverySessionInOneBucket(t *testing.T) {
	s := newTestStore(t, NewMemory())
	ctx := context.Background()
	dates := []string{"2025-03-01T08:00:00Z", "2025-03-02T08:00:00Z", "2025-03-01T20:00:00Z", "2025-03-03T00:00:01Z"}
	for i, d := range dates {
		if err := s.SaveActivity(ctx, session(string(rune('a'+i)), d, 10, 0, 1, 0, nil)); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.GetAllDailyStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 3 {
		t.Fatalf("buckets = %d, want 3", len(stats))
	}
	seen := map[string]string{}
	for _, d := range stats {
		for _, sess := range d.Sessions {
			if prev, dup := seen[sess.ID]; dup {
				t.Errorf("session %s in both %s and %s", sess.ID, prev, d.Date)
			}
			seen[sess.ID] = d.Date
			if sess.DateKey() != d.Date {
				t.Errorf("session %s dated %s stored under %s", sess.ID, sess.Date, d.Date)
			}
		}
	}
	if len(seen) != len(dates) {
		t.Errorf("sessions in buckets = %d, want %d", len(seen), len(dates))
	}
}

// TestGetActivitiesByDateRange verifies inclusive lexicographic filtering.
func TestGetActivitiesByDateRange(t *testing.T) {
	s := newTestStore(t, NewMemory())
	ctx := context.Background()
	for i, d := range []string{"2025-03-01", "2025-03-05", "2025-03-10", "2025-03-15"} {
		if err := s.SaveActivity(ctx, session(string(rune('a'+i)), d, 1, 0, 1, 0, nil)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.GetActivitiesByDateRange(ctx, "2025-03-05", "2025-03-10")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("range = %+v, want [b c]", got)
	}

	got, _ = s.GetActivitiesByDateRange(ctx, "2025-04-01", "2025-04-30")
	if len(got) != 0 {
		t.Errorf("empty range returned %d sessions", len(got))
	}
}

// TestWeeklyAndMonthlyStats verifies cutoffs relative to the clock and ascending order.
func TestWeeklyAndMonthlyStats(t *testing.T) {
	s := newTestStore(t, NewMemory())
	ctx := context.Background()
	// fixedNow is 2025-03-20: weekly cutoff 2025-03-13, monthly cutoff 2025-02-18.
	for i, d := range []string{"2025-03-19", "2025-02-10", "2025-03-13", "2025-03-12", "2025-02-18", "2025-03-20"} {
		if err := s.SaveActivity(ctx, session(string(rune('a'+i)), d+"T10:00:00Z", 1, 0, 1, 0, nil)); err != nil {
			t.Fatal(err)
		}
	}

	weekly, err := s.GetWeeklyStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assertDates(t, "weekly", weekly, "2025-03-13", "2025-03-19", "2025-03-20")

	monthly, err := s.GetMonthlyStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assertDates(t, "monthly", monthly, "2025-02-18", "2025-03-12", "2025-03-13", "2025-03-19", "2025-03-20")
}

func assertDates(t *testing.T, label string, stats []models.DailyStats, want ...string) {
	t.Helper()
	if len(stats) != len(want) {
		t.Fatalf("%s = %d days, want %d", label, len(stats), len(want))
	}
	for i, d := range stats {
		if d.Date != want[i] {
			t.Errorf("%s[%d] = %s, want %s", label, i, d.Date, want[i])
		}
	}
}

// TestClearAllDataKeepsProfile verifies the wipe removes sessions and rollups only.
func TestClearAllDataKeepsProfile(t *testing.T) {
	for name, mk := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, mk())
			ctx := context.Background()
			if err := s.SaveUserProfile(ctx, models.DefaultProfile()); err != nil {
				t.Fatal(err)
			}
			if err := s.SaveActivity(ctx, session("x", "2025-03-20T07:00:00Z", 100, 0.0762, 2, 1, hr(110))); err != nil {
				t.Fatal(err)
			}
			if err := s.ClearAllData(ctx); err != nil {
				t.Fatalf("ClearAllData: %v", err)
			}

			acts, _ := s.GetAllActivities(ctx)
			stats, _ := s.GetAllDailyStats(ctx)
			if len(acts) != 0 || len(stats) != 0 {
				t.Errorf("after clear: %d activities, %d stats", len(acts), len(stats))
			}
			if _, ok, _ := s.GetUserProfile(ctx); !ok {
				t.Error("profile removed by ClearAllData")
			}
		})
	}
}

// TestMalformedRecordsReadAsEmpty verifies corrupt persisted JSON is treated as no data.
func TestMalformedRecordsReadAsEmpty(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()
	b.Set(ctx, KeyActivities, []byte(`{not json`))
	b.Set(ctx, KeyDailyStats, []byte(`[{"date": 42}]`))
	b.Set(ctx, KeyUserProfile, []byte(`"oops"`))
	s := newTestStore(t, b)

	if acts, err := s.GetAllActivities(ctx); err != nil || len(acts) != 0 {
		t.Errorf("activities = %v, %v; want empty", acts, err)
	}
	if stats, err := s.GetAllDailyStats(ctx); err != nil || len(stats) != 0 {
		t.Errorf("stats = %v, %v; want empty", stats, err)
	}
	if _, ok, err := s.GetUserProfile(ctx); err != nil || ok {
		t.Errorf("profile ok=%v err=%v; want absent", ok, err)
	}

	// A save over corrupt data starts fresh collections.
	if err := s.SaveActivity(ctx, session("n", "2025-03-20T07:00:00Z", 5, 0, 1, 0, nil)); err != nil {
		t.Fatal(err)
	}
	if d, ok, _ := s.GetDailyStats(ctx, "2025-03-20"); !ok || len(d.Sessions) != 1 {
		t.Errorf("daily stats after recovery = %+v, %v", d, ok)
	}
}

// TestReadsOriginalLayout verifies records written by the original app decode unchanged.
func TestReadsOriginalLayout(t *testing.T) {
	b := NewMemory()
	ctx := context.Background()
	b.Set(ctx, KeyDailyStats, []byte(`[{"date":"2025-03-19","totalSteps":42,"totalDistance":0.032004,"totalDuration":1,
		"sessions":[{"id":"1742371200000","date":"2025-03-19T08:00:00.000Z","startTime":1742371140000,"endTime":1742371200000,
		"duration":1,"steps":42,"distance":0.032004,"avgHeartRate":101,"timeInMAFZone":0}],"avgHeartRate":101,"timeInMAFZone":0}]`))
	s := newTestStore(t, b)

	d, ok, err := s.GetDailyStats(ctx, "2025-03-19")
	if err != nil || !ok {
		t.Fatalf("GetDailyStats = %v, %v", ok, err)
	}
	if d.TotalSteps != 42 || len(d.Sessions) != 1 || *d.Sessions[0].EndTime != 1742371200000 {
		t.Errorf("decoded = %+v", d)
	}
}
