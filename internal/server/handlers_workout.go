package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/claude/mafwalk/internal/health"
	"github.com/claude/mafwalk/internal/importer"
	"github.com/claude/mafwalk/internal/models"
	"github.com/claude/mafwalk/internal/workout"
)

// maxDeviceImportDays bounds a single device import request.
const maxDeviceImportDays = 365

func (s *Server) handleStartWorkout(w http.ResponseWriter, r *http.Request) {
	status, err := s.recorder.Start(r.Context())
	if err != nil {
		s.writeWorkoutError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, status)
}

func (s *Server) handlePauseWorkout(w http.ResponseWriter, r *http.Request) {
	status, err := s.recorder.Pause()
	if err != nil {
		s.writeWorkoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleResumeWorkout(w http.ResponseWriter, r *http.Request) {
	status, err := s.recorder.Resume()
	if err != nil {
		s.writeWorkoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStopWorkout(w http.ResponseWriter, r *http.Request) {
	session, err := s.recorder.Stop(r.Context())
	if err != nil {
		s.writeWorkoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDiscardWorkout(w http.ResponseWriter, r *http.Request) {
	if err := s.recorder.Discard(); err != nil {
		s.writeWorkoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

func (s *Server) handleCurrentWorkout(w http.ResponseWriter, r *http.Request) {
	status, ok := s.recorder.Current()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": workout.ErrNoWorkout.Error()})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) writeWorkoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workout.ErrNoWorkout):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, workout.ErrWorkoutActive),
		errors.Is(err, workout.ErrPaused),
		errors.Is(err, workout.ErrNotPaused),
		errors.Is(err, workout.ErrEnded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		s.log.Error("workout error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func (s *Server) handleHealthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, health.StatusOf(s.platform, s.monitor.Interval()))
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	granted := s.platform.RequestAuthorization(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"authorized": granted,
		"status":     health.StatusOf(s.platform, s.monitor.Interval()),
	})
}

func (s *Server) handleHAEIngest(w http.ResponseWriter, r *http.Request) {
	var payload models.HAEPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	result, err := s.importer.ImportPayload(r.Context(), &payload)
	if err != nil {
		s.log.Error("ingest error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDeviceImport(w http.ResponseWriter, r *http.Request) {
	src, ok := s.platform.(importer.WorkoutSource)
	if !ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "device import needs the native health platform"})
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > maxDeviceImportDays {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be between 1 and 365"})
			return
		}
		days = parsed
	}

	end := time.Now()
	result, err := s.importer.ImportFromSource(r.Context(), src, end.AddDate(0, 0, -days), end)
	if err != nil {
		s.log.Error("device import failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}
