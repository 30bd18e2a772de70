package models

import (
	"strings"
	"time"
)

// Policy constants. They are tunable without touching aggregation logic.
const (
	// StrideLengthKm is the average step length used to derive distance from steps.
	StrideLengthKm = 0.000762
	// ZoneWidthBPM is the width of the MAF zone beneath the adjusted MAF value.
	ZoneWidthBPM = 10
)

// DateLayout is the layout of DailyStats keys.
const DateLayout = "2006-01-02"

// TimestampLayout is the layout of ActivitySession.Date: UTC with millisecond
// precision, so the first ten characters are always the date key.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ActivitySession is one recorded workout. Sessions are immutable once saved.
type ActivitySession struct {
	ID            string   `json:"id"`
	Date          string   `json:"date"`              // RFC3339 instant; the date portion is the bucket key
	StartTime     int64    `json:"startTime"`         // unix millis
	EndTime       *int64   `json:"endTime,omitempty"` // unix millis
	Duration      int      `json:"duration"`          // minutes
	Steps         int      `json:"steps"`
	Distance      float64  `json:"distance"` // km
	AvgHeartRate  *float64 `json:"avgHeartRate,omitempty"`
	MaxHeartRate  *float64 `json:"maxHeartRate,omitempty"`
	TimeInMAFZone int      `json:"timeInMAFZone"` // minutes
	Calories      *float64 `json:"calories,omitempty"`
}

// DateKey returns the YYYY-MM-DD portion of the session date.
func (s ActivitySession) DateKey() string {
	key, _, _ := strings.Cut(s.Date, "T")
	return key
}

// HasHeartRate reports whether the session carries a usable average heart rate.
// A zero reading counts as absent.
func (s ActivitySession) HasHeartRate() bool {
	return s.AvgHeartRate != nil && *s.AvgHeartRate != 0
}

// DistanceForSteps converts a step count to kilometers using StrideLengthKm.
func DistanceForSteps(steps int, strideKm float64) float64 {
	return float64(steps) * strideKm
}

// StepsForDistance is the inverse of DistanceForSteps, rounded down.
func StepsForDistance(km, strideKm float64) int {
	if strideKm <= 0 {
		return 0
	}
	return int(km / strideKm)
}

// DailyStats is the rollup of every session recorded on one calendar date.
type DailyStats struct {
	Date          string            `json:"date"`
	TotalSteps    int               `json:"totalSteps"`
	TotalDistance float64           `json:"totalDistance"`
	TotalDuration int               `json:"totalDuration"`
	Sessions      []ActivitySession `json:"sessions"`
	AvgHeartRate  *float64          `json:"avgHeartRate,omitempty"`
	TimeInMAFZone int               `json:"timeInMAFZone"`
}

// NewDailyStats returns an empty bucket for date.
func NewDailyStats(date string) DailyStats {
	return DailyStats{Date: date, Sessions: []ActivitySession{}}
}

// Fold adds session to the bucket: accumulators grow by the session's values and
// the average heart rate is recomputed over every session that reported one.
func (d *DailyStats) Fold(session ActivitySession) {
	d.Sessions = append(d.Sessions, session)
	d.TotalSteps += session.Steps
	d.TotalDistance += session.Distance
	d.TotalDuration += session.Duration
	d.TimeInMAFZone += session.TimeInMAFZone

	var sum float64
	var n int
	for _, s := range d.Sessions {
		if s.HasHeartRate() {
			sum += *s.AvgHeartRate
			n++
		}
	}
	if n > 0 {
		avg := sum / float64(n)
		d.AvgHeartRate = &avg
	}
}
