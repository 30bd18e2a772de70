// Package observability holds the Prometheus collectors shared by the store,
// the health adapters and the workout recorder.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsSaved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mafwalk",
		Subsystem: "store",
		Name:      "sessions_saved_total",
		Help:      "Activity sessions persisted to the store.",
	})
	lastSessionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mafwalk",
		Subsystem: "store",
		Name:      "last_session_saved_timestamp_seconds",
		Help:      "Unix timestamp of the most recent session persisted.",
	})
	corruptRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mafwalk",
		Subsystem: "store",
		Name:      "corrupt_records_total",
		Help:      "Persisted records that failed to decode and were treated as empty.",
	}, []string{"key"})
	healthQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mafwalk",
		Subsystem: "health",
		Name:      "queries_total",
		Help:      "Health platform queries by kind and outcome.",
	}, []string{"kind", "outcome"})
	workoutsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "mafwalk",
		Subsystem: "workout",
		Name:      "active",
		Help:      "1 while a workout is being recorded.",
	})
)

func init() {
	prometheus.MustRegister(sessionsSaved, lastSessionGauge, corruptRecords, healthQueries, workoutsActive)
}

// RecordSessionSaved bumps the saved counter and the last-saved watermark.
func RecordSessionSaved(ts time.Time) {
	sessionsSaved.Inc()
	if ts.IsZero() {
		return
	}
	lastSessionGauge.Set(float64(ts.Unix()))
}

// RecordCorruptRecord counts a persisted record that could not be decoded.
func RecordCorruptRecord(key string) {
	corruptRecords.WithLabelValues(key).Inc()
}

// RecordHealthQuery counts a platform query; ok=false means the reading was absent.
func RecordHealthQuery(kind string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "absent"
	}
	healthQueries.WithLabelValues(kind, outcome).Inc()
}

// SetWorkoutActive flips the active-workout gauge.
func SetWorkoutActive(active bool) {
	if active {
		workoutsActive.Set(1)
		return
	}
	workoutsActive.Set(0)
}
