package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/mafwalk/internal/models"
)

// DataStats holds aggregate statistics about all stored activity data.
type DataStats struct {
	TotalSessions int     `json:"total_sessions"`
	ActiveDays    int     `json:"active_days"`
	TotalSteps    int     `json:"total_steps"`
	TotalDistance float64 `json:"total_distance_km"`
	TotalDuration int     `json:"total_duration_min"`
	TimeInMAFZone int     `json:"time_in_maf_zone_min"`
	EarliestDate  string  `json:"earliest_date,omitempty"`
	LatestDate    string  `json:"latest_date,omitempty"`
	CurrentStreak int     `json:"current_streak_days"`
}

// GetDataStats summarizes every stored rollup.
func (s *Store) GetDataStats(ctx context.Context) (*DataStats, error) {
	all, err := s.GetAllDailyStats(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DataStats{}
	for _, d := range all {
		stats.TotalSessions += len(d.Sessions)
		stats.TotalSteps += d.TotalSteps
		stats.TotalDistance += d.TotalDistance
		stats.TotalDuration += d.TotalDuration
		stats.TimeInMAFZone += d.TimeInMAFZone
		if len(d.Sessions) > 0 {
			stats.ActiveDays++
		}
		if stats.EarliestDate == "" || d.Date < stats.EarliestDate {
			stats.EarliestDate = d.Date
		}
		if d.Date > stats.LatestDate {
			stats.LatestDate = d.Date
		}
	}
	stats.CurrentStreak = streak(all, s.now().UTC())
	return stats, nil
}

// GetCurrentStreak counts consecutive active days ending today. When today has
// no activity yet the count ends at yesterday instead.
func (s *Store) GetCurrentStreak(ctx context.Context) (int, error) {
	all, err := s.GetAllDailyStats(ctx)
	if err != nil {
		return 0, err
	}
	return streak(all, s.now().UTC()), nil
}

func streak(all []models.DailyStats, now time.Time) int {
	active := make(map[string]bool, len(all))
	for _, d := range all {
		if len(d.Sessions) > 0 {
			active[d.Date] = true
		}
	}

	day := now
	if !active[day.Format(models.DateLayout)] {
		day = day.AddDate(0, 0, -1)
	}
	count := 0
	for active[day.Format(models.DateLayout)] {
		count++
		day = day.AddDate(0, 0, -1)
	}
	return count
}

// GetMonthStats returns the rollups of one calendar month, oldest first.
func (s *Store) GetMonthStats(ctx context.Context, year int, month time.Month) ([]models.DailyStats, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	all, err := s.GetAllDailyStats(ctx)
	if err != nil {
		return nil, err
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format(models.DateLayout)
	next := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).Format(models.DateLayout)

	result := []models.DailyStats{}
	for _, d := range all {
		if d.Date >= first && d.Date < next {
			result = append(result, d)
		}
	}
	sortByDate(result)
	return result, nil
}

// StepGoalProgress returns the day's steps as a percentage of the goal. It is
// not capped at 100; a non-positive goal yields 0.
func StepGoalProgress(day *models.DailyStats, goal int) float64 {
	if day == nil || goal <= 0 {
		return 0
	}
	return float64(day.TotalSteps) / float64(goal) * 100
}
