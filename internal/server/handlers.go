package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/mafwalk/internal/maf"
	"github.com/claude/mafwalk/internal/models"
)

type profileResponse struct {
	Profile models.UserProfile `json:"profile"`
	Saved   bool               `json:"saved"`
	MAF     maf.Result         `json:"maf"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, saved, err := s.store.GetProfileOrDefault(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: profile, Saved: saved, MAF: s.policy.ForProfile(profile)})
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var profile models.UserProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := validateProfile(&profile); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := s.store.SaveUserProfile(r.Context(), profile); err != nil {
		s.log.Error("saving profile failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: profile, Saved: true, MAF: s.policy.ForProfile(profile)})
}

// validateProfile rejects values the settings form cannot produce and fills
// the step goal default.
func validateProfile(p *models.UserProfile) error {
	if p.Age <= 0 {
		return errors.New("age must be positive")
	}
	if !p.FitnessLevel.Valid() {
		return fmt.Errorf("unknown fitnessLevel %q", p.FitnessLevel)
	}
	if !p.HealthStatus.Valid() {
		return fmt.Errorf("unknown healthStatus %q", p.HealthStatus)
	}
	if p.DailyStepGoal < 0 {
		return errors.New("dailyStepGoal must not be negative")
	}
	if p.DailyStepGoal == 0 {
		p.DailyStepGoal = models.DefaultDailyStepGoal
	}
	return nil
}

func (s *Server) handleGetMAF(w http.ResponseWriter, r *http.Request) {
	profile, _, err := s.store.GetProfileOrDefault(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.policy.ForProfile(profile))
}

type zoneResponse struct {
	HeartRate      float64    `json:"heartRate"`
	Zone           maf.Zone   `json:"zone"`
	Percentage     float64    `json:"percentage"`
	InZone         bool       `json:"inZone"`
	MarkerPosition float64    `json:"markerPosition"`
	MAF            maf.Result `json:"maf"`
}

func (s *Server) handleClassifyHeartRate(w http.ResponseWriter, r *http.Request) {
	hr, err := strconv.ParseFloat(r.URL.Query().Get("hr"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hr parameter must be a number"})
		return
	}
	profile, _, err := s.store.GetProfileOrDefault(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	result := s.policy.ForProfile(profile)
	reading := maf.HeartRateZone(hr, result)
	writeJSON(w, http.StatusOK, zoneResponse{
		HeartRate:      hr,
		Zone:           reading.Zone,
		Percentage:     reading.Percentage,
		InZone:         maf.InZone(hr, result),
		MarkerPosition: maf.MarkerPosition(hr, result),
		MAF:            result,
	})
}

func (s *Server) handleCreateActivity(w http.ResponseWriter, r *http.Request) {
	var session models.ActivitySession
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if session.Steps < 0 || session.Duration < 0 || session.Distance < 0 || session.TimeInMAFZone < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session values must not be negative"})
		return
	}

	now := time.Now()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Date == "" {
		session.Date = models.FormatTimestamp(now)
	} else if _, err := time.Parse(models.DateLayout, session.DateKey()); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must start with YYYY-MM-DD"})
		return
	}
	if session.StartTime == 0 {
		session.StartTime = now.UnixMilli()
	}
	if session.Distance == 0 && session.Steps > 0 {
		session.Distance = models.DistanceForSteps(session.Steps, s.strideKm)
	}

	if err := s.store.SaveActivity(r.Context(), session); err != nil {
		s.log.Error("saving activity failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	var sessions []models.ActivitySession
	if start == "" && end == "" {
		sessions, err = s.store.GetAllActivities(r.Context())
	} else {
		sessions, err = s.store.GetActivitiesByDateRange(r.Context(), start, end)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearAllData(r.Context()); err != nil {
		s.log.Error("clearing data failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseDateRange reads optional start/end query parameters. Date-only bounds
// cover the whole day; an open bound is left empty or widened to match all.
func parseDateRange(r *http.Request) (start, end string, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" && endStr == "" {
		return "", "", nil
	}

	if startStr != "" {
		if start, err = normalizeBound(startStr, false); err != nil {
			return "", "", fmt.Errorf("invalid start: %w", err)
		}
	}
	if endStr == "" {
		end = "9999-12-31T23:59:59.999Z"
	} else if end, err = normalizeBound(endStr, true); err != nil {
		return "", "", fmt.Errorf("invalid end: %w", err)
	}
	return start, end, nil
}

func normalizeBound(s string, endOfDay bool) (string, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return models.FormatTimestamp(t), nil
	}
	if _, err := time.Parse(models.DateLayout, s); err != nil {
		return "", err
	}
	if endOfDay {
		return s + "T23:59:59.999Z", nil
	}
	return s, nil
}

func chiDate(r *http.Request) (string, bool) {
	date := chi.URLParam(r, "date")
	_, err := time.Parse(models.DateLayout, date)
	return date, err == nil
}
