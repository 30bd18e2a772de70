package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// HAETime handles the Health Auto Export date format: "2006-01-02 15:04:05 -0700"
// Also handles the date-only format "2006-01-02" used in aggregated data.
type HAETime struct {
	time.Time
}

const (
	HAETimeLayout     = "2006-01-02 15:04:05 -0700"
	HAEDateOnlyLayout = "2006-01-02"
)

func (t *HAETime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return t.Parse(s)
}

func (t HAETime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(HAETimeLayout))
}

// Parse parses a HAE time string, trying full datetime first, then date-only.
func (t *HAETime) Parse(s string) error {
	parsed, err := time.Parse(HAETimeLayout, s)
	if err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err2 := time.Parse(HAEDateOnlyLayout, s)
	if err2 == nil {
		t.Time = parsed
		return nil
	}
	return fmt.Errorf("cannot parse HAE time %q: %w", s, err)
}

// ParseHAETime parses a HAE time string into a time.Time.
func ParseHAETime(s string) (time.Time, error) {
	var t HAETime
	if err := t.Parse(s); err != nil {
		return time.Time{}, err
	}
	return t.Time, nil
}

// HAE metric names queried by the health adapter.
const (
	HAEMetricHeartRate    = "heart_rate"
	HAEMetricStepCount    = "step_count"
	HAEMetricDistance     = "walking_running_distance"
	HAEMetricActiveEnergy = "active_energy"
)

// HAEPayload is the top-level REST API JSON structure.
type HAEPayload struct {
	Data HAEData `json:"data"`
}

// HAEData contains the arrays of health data.
type HAEData struct {
	Metrics  []HAEMetric  `json:"metrics"`
	Workouts []HAEWorkout `json:"workouts"`
}

// HAEMetric is a single metric entry with name, units, and data points.
type HAEMetric struct {
	Name  string            `json:"name"`
	Units string            `json:"units"`
	Data  []json.RawMessage `json:"data"`
}

// HAEMetricDataPoint is a standard metric data point with qty.
type HAEMetricDataPoint struct {
	Date HAETime `json:"date"`
	Qty  float64 `json:"qty"`
}

// HAEHeartRateDataPoint has Min/Avg/Max fields (capitalized in HAE JSON).
type HAEHeartRateDataPoint struct {
	Date HAETime `json:"date"`
	Min  float64 `json:"Min"`
	Avg  float64 `json:"Avg"`
	Max  float64 `json:"Max"`
}

// HAEWorkout is a workout from the REST API (Version 2).
type HAEWorkout struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Start    HAETime `json:"start"`
	End      HAETime `json:"end"`
	Duration float64 `json:"duration"` // seconds

	ActiveEnergyBurned *HAEQuantity `json:"activeEnergyBurned,omitempty"`
	Distance           *HAEQuantity `json:"distance,omitempty"`

	HeartRate *HAEHeartRateSummary `json:"heartRate,omitempty"`
	AvgHR     *HAEQuantity         `json:"avgHeartRate,omitempty"`
	MaxHR     *HAEQuantity         `json:"maxHeartRate,omitempty"`

	HeartRateData []HAEWorkoutHRPoint  `json:"heartRateData,omitempty"`
	StepCount     []HAEMetricDataPoint `json:"stepCount,omitempty"`
}

// IsWalkOrRun reports whether the workout is a walking, running or hiking activity.
func (w HAEWorkout) IsWalkOrRun() bool {
	name := strings.ToLower(w.Name)
	return strings.Contains(name, "walk") || strings.Contains(name, "run") || strings.Contains(name, "hik")
}

// AverageHeartRate returns the workout's average heart rate from whichever field HAE populated.
func (w HAEWorkout) AverageHeartRate() (float64, bool) {
	if w.AvgHR != nil && w.AvgHR.Qty > 0 {
		return w.AvgHR.Qty, true
	}
	if w.HeartRate != nil && w.HeartRate.Avg.Qty > 0 {
		return w.HeartRate.Avg.Qty, true
	}
	return 0, false
}

// MaximumHeartRate returns the workout's maximum heart rate from whichever field HAE populated.
func (w HAEWorkout) MaximumHeartRate() (float64, bool) {
	if w.MaxHR != nil && w.MaxHR.Qty > 0 {
		return w.MaxHR.Qty, true
	}
	if w.HeartRate != nil && w.HeartRate.Max.Qty > 0 {
		return w.HeartRate.Max.Qty, true
	}
	return 0, false
}

// TotalSteps sums the per-interval step counts recorded during the workout.
func (w HAEWorkout) TotalSteps() (int, bool) {
	if len(w.StepCount) == 0 {
		return 0, false
	}
	var total float64
	for _, p := range w.StepCount {
		total += p.Qty
	}
	return int(total), true
}

// HAEQuantity is the {"qty": N, "units": "..."} structure.
type HAEQuantity struct {
	Qty   float64 `json:"qty"`
	Units string  `json:"units"`
}

// Kilometers converts a distance quantity to km. Unknown units are assumed to be km.
func (q HAEQuantity) Kilometers() float64 {
	switch strings.ToLower(q.Units) {
	case "mi":
		return q.Qty * 1.609344
	case "m":
		return q.Qty / 1000
	case "yd":
		return q.Qty * 0.0009144
	default:
		return q.Qty
	}
}

// Kilocalories converts an energy quantity to kcal.
func (q HAEQuantity) Kilocalories() float64 {
	if strings.EqualFold(q.Units, "kj") {
		return q.Qty / 4.184
	}
	return q.Qty
}

// HAEHeartRateSummary is the nested heartRate summary in workouts.
type HAEHeartRateSummary struct {
	Min HAEQuantity `json:"min"`
	Avg HAEQuantity `json:"avg"`
	Max HAEQuantity `json:"max"`
}

// HAEWorkoutHRPoint is a heart rate data point during a workout.
type HAEWorkoutHRPoint struct {
	Date   HAETime `json:"date"`
	Min    float64 `json:"Min"`
	Avg    float64 `json:"Avg"`
	Max    float64 `json:"Max"`
	Units  string  `json:"units"`
	Source string  `json:"source"`
}
