package importer

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/claude/mafwalk/internal/models"
)

// payloadSamples holds the payload-level heart rate and step samples. REST
// pushes often carry workout heart rate only as the separate heart_rate
// metric rather than inline with the workout.
type payloadSamples struct {
	heartRate []models.HAEHeartRateDataPoint
	steps     []models.HAEMetricDataPoint
}

func collectSamples(metrics []models.HAEMetric, log *slog.Logger) payloadSamples {
	var s payloadSamples
	for _, m := range metrics {
		switch m.Name {
		case models.HAEMetricHeartRate:
			for _, raw := range m.Data {
				var p models.HAEHeartRateDataPoint
				if err := json.Unmarshal(raw, &p); err != nil {
					log.Warn("skipping malformed heart rate sample", "error", err)
					continue
				}
				s.heartRate = append(s.heartRate, p)
			}
		case models.HAEMetricStepCount:
			for _, raw := range m.Data {
				var p models.HAEMetricDataPoint
				if err := json.Unmarshal(raw, &p); err != nil {
					log.Warn("skipping malformed step sample", "error", err)
					continue
				}
				s.steps = append(s.steps, p)
			}
		}
	}
	return s
}

// heartRateIn returns the heart rate samples within [start, end] in workout form.
func (s payloadSamples) heartRateIn(start, end time.Time) []models.HAEWorkoutHRPoint {
	var out []models.HAEWorkoutHRPoint
	for _, p := range s.heartRate {
		if within(p.Date.Time, start, end) {
			out = append(out, models.HAEWorkoutHRPoint{Date: p.Date, Min: p.Min, Avg: p.Avg, Max: p.Max, Units: "count/min"})
		}
	}
	return out
}

// stepsIn returns the step samples within [start, end].
func (s payloadSamples) stepsIn(start, end time.Time) []models.HAEMetricDataPoint {
	var out []models.HAEMetricDataPoint
	for _, p := range s.steps {
		if within(p.Date.Time, start, end) {
			out = append(out, p)
		}
	}
	return out
}

func within(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
