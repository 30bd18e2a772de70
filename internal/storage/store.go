package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/claude/mafwalk/internal/models"
	"github.com/claude/mafwalk/internal/observability"
)

// Range cutoffs, in days before today.
const (
	WeeklyWindowDays  = 7
	MonthlyWindowDays = 30
)

// Store persists the user profile, every activity session and the per-day
// rollups. All operations are serialized so each read-modify-write runs alone.
type Store struct {
	mu      sync.Mutex
	backend Backend
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now for the weekly, monthly and streak cutoffs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store over backend.
func NewStore(backend Backend, log *slog.Logger, opts ...Option) *Store {
	s := &Store{backend: backend, log: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the store clock's current date key.
func (s *Store) Today() string {
	return s.now().UTC().Format(models.DateLayout)
}

// SaveUserProfile replaces the stored profile.
func (s *Store) SaveUserProfile(ctx context.Context, profile models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshaling profile: %w", err)
	}
	if err := s.backend.Set(ctx, KeyUserProfile, data); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	return nil
}

// GetUserProfile returns the stored profile. ok is false when none was ever
// saved or the stored record cannot be decoded.
func (s *Store) GetUserProfile(ctx context.Context) (profile models.UserProfile, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err = s.load(ctx, KeyUserProfile, &profile)
	if err != nil || !ok {
		return models.UserProfile{}, false, err
	}
	return profile, true, nil
}

// GetProfileOrDefault returns the stored profile, or the first-launch defaults.
func (s *Store) GetProfileOrDefault(ctx context.Context) (models.UserProfile, bool, error) {
	profile, ok, err := s.GetUserProfile(ctx)
	if err != nil {
		return models.UserProfile{}, false, err
	}
	if !ok {
		return models.DefaultProfile(), false, nil
	}
	return profile, true, nil
}

// SaveActivity appends session and folds it into its day's rollup. Both
// records are written in a single atomic backend operation.
func (s *Store) SaveActivity(ctx context.Context, session models.ActivitySession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	activities, err := s.activities(ctx)
	if err != nil {
		return err
	}
	stats, err := s.dailyStats(ctx)
	if err != nil {
		return err
	}

	activities = append(activities, session)
	stats = updateDailyStats(stats, session)

	activitiesData, err := json.Marshal(activities)
	if err != nil {
		return fmt.Errorf("marshaling activities: %w", err)
	}
	statsData, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling daily stats: %w", err)
	}

	if err := s.backend.SetMulti(ctx, map[string][]byte{
		KeyActivities: activitiesData,
		KeyDailyStats: statsData,
	}); err != nil {
		return fmt.Errorf("saving activity: %w", err)
	}

	observability.RecordSessionSaved(s.now())
	s.log.Debug("activity saved", "id", session.ID, "date", session.DateKey(), "steps", session.Steps)
	return nil
}

// updateDailyStats folds session into the bucket for its date, creating the
// bucket on first use. It returns the updated slice.
func updateDailyStats(stats []models.DailyStats, session models.ActivitySession) []models.DailyStats {
	key := session.DateKey()
	for i := range stats {
		if stats[i].Date == key {
			stats[i].Fold(session)
			return stats
		}
	}
	day := models.NewDailyStats(key)
	day.Fold(session)
	return append(stats, day)
}

// GetAllActivities returns every session in insertion order.
func (s *Store) GetAllActivities(ctx context.Context) ([]models.ActivitySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activities(ctx)
}

// GetActivitiesByDateRange returns sessions whose date string lies within
// [startDate, endDate], compared lexicographically. Bounds must use the same
// format as the stored dates.
func (s *Store) GetActivitiesByDateRange(ctx context.Context, startDate, endDate string) ([]models.ActivitySession, error) {
	all, err := s.GetAllActivities(ctx)
	if err != nil {
		return nil, err
	}
	result := []models.ActivitySession{}
	for _, a := range all {
		if a.Date >= startDate && a.Date <= endDate {
			result = append(result, a)
		}
	}
	return result, nil
}

// GetAllDailyStats returns every rollup in storage order.
func (s *Store) GetAllDailyStats(ctx context.Context) ([]models.DailyStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyStats(ctx)
}

// GetDailyStats returns the rollup for date (YYYY-MM-DD).
func (s *Store) GetDailyStats(ctx context.Context, date string) (models.DailyStats, bool, error) {
	all, err := s.GetAllDailyStats(ctx)
	if err != nil {
		return models.DailyStats{}, false, err
	}
	for _, d := range all {
		if d.Date == date {
			return d, true, nil
		}
	}
	return models.DailyStats{}, false, nil
}

// GetWeeklyStats returns rollups dated within the last 7 days, oldest first.
func (s *Store) GetWeeklyStats(ctx context.Context) ([]models.DailyStats, error) {
	return s.statsSince(ctx, WeeklyWindowDays)
}

// GetMonthlyStats returns rollups dated within the last 30 days, oldest first.
func (s *Store) GetMonthlyStats(ctx context.Context) ([]models.DailyStats, error) {
	return s.statsSince(ctx, MonthlyWindowDays)
}

func (s *Store) statsSince(ctx context.Context, days int) ([]models.DailyStats, error) {
	all, err := s.GetAllDailyStats(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := s.now().UTC().AddDate(0, 0, -days).Format(models.DateLayout)

	result := []models.DailyStats{}
	for _, d := range all {
		if d.Date >= cutoff {
			result = append(result, d)
		}
	}
	sortByDate(result)
	return result, nil
}

// ClearAllData erases every session and rollup. The profile is kept.
func (s *Store) ClearAllData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Remove(ctx, KeyActivities, KeyDailyStats); err != nil {
		return fmt.Errorf("clearing activity data: %w", err)
	}
	s.log.Info("activity data cleared")
	return nil
}

func (s *Store) activities(ctx context.Context) ([]models.ActivitySession, error) {
	var activities []models.ActivitySession
	ok, err := s.load(ctx, KeyActivities, &activities)
	if err != nil {
		return nil, err
	}
	if !ok || activities == nil {
		return []models.ActivitySession{}, nil
	}
	return activities, nil
}

func (s *Store) dailyStats(ctx context.Context) ([]models.DailyStats, error) {
	var stats []models.DailyStats
	ok, err := s.load(ctx, KeyDailyStats, &stats)
	if err != nil {
		return nil, err
	}
	if !ok || stats == nil {
		return []models.DailyStats{}, nil
	}
	return stats, nil
}

// load decodes the record at key into v. Absent and malformed records both
// report ok=false; only backend failures are errors.
func (s *Store) load(ctx context.Context, key string, v any) (bool, error) {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("loading %s: %w", key, err)
	}
	if !ok || len(data) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warn("ignoring malformed record", "key", key, "error", err)
		observability.RecordCorruptRecord(key)
		return false, nil
	}
	return true, nil
}

func sortByDate(stats []models.DailyStats) {
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Date < stats[j].Date })
}
