package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/claude/mafwalk/internal/health"
	"github.com/claude/mafwalk/internal/importer"
	"github.com/claude/mafwalk/internal/maf"
	"github.com/claude/mafwalk/internal/models"
	"github.com/claude/mafwalk/internal/storage"
	"github.com/claude/mafwalk/internal/workout"
)

// Deps are the components the handlers call into.
type Deps struct {
	Store    *storage.Store
	Platform health.Platform
	Monitor  *health.Monitor
	Recorder *workout.Recorder
	Importer *importer.Importer

	// StrideKm and Policy default to the package constants when zero.
	StrideKm float64
	Policy   maf.Policy
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store     *storage.Store
	platform  health.Platform
	monitor   *health.Monitor
	recorder  *workout.Recorder
	importer  *importer.Importer
	strideKm  float64
	policy    maf.Policy
	log       *slog.Logger
	apiKey    string
	router    chi.Router
	tailscale whoIsClient
}

// New creates a new Server with all routes configured. An empty apiKey
// leaves the mutating routes open.
func New(deps Deps, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:    deps.Store,
		platform: deps.Platform,
		monitor:  deps.Monitor,
		recorder: deps.Recorder,
		importer: deps.Importer,
		strideKm: deps.StrideKm,
		policy:   deps.Policy,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	if s.strideKm <= 0 {
		s.strideKm = models.StrideLengthKm
	}
	if s.policy.ZoneWidth <= 0 {
		s.policy = maf.DefaultPolicy
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", s.handleMe)

		r.Get("/profile", s.handleGetProfile)
		r.Get("/maf", s.handleGetMAF)
		r.Get("/maf/zone", s.handleClassifyHeartRate)

		r.Get("/activities", s.handleListActivities)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/daily", s.handleAllDailyStats)
			r.Get("/daily/{date}", s.handleDailyStats)
			r.Get("/weekly", s.handleWeeklyStats)
			r.Get("/monthly", s.handleMonthlyStats)
			r.Get("/month/{year}/{month}", s.handleMonthStats)
			r.Get("/streak", s.handleStreak)
			r.Get("/today", s.handleToday)
			r.Get("/summary", s.handleSummary)
		})

		r.Get("/workouts/current", s.handleCurrentWorkout)
		r.Get("/health/status", s.handleHealthStatus)

		// Mutating endpoints (API key required when configured)
		r.Group(func(r chi.Router) {
			if s.apiKey != "" {
				r.Use(APIKeyAuth(s.apiKey))
			}
			r.Put("/profile", s.handlePutProfile)
			r.Post("/activities", s.handleCreateActivity)
			r.Delete("/data", s.handleClearData)

			r.Post("/workouts/start", s.handleStartWorkout)
			r.Post("/workouts/pause", s.handlePauseWorkout)
			r.Post("/workouts/resume", s.handleResumeWorkout)
			r.Post("/workouts/stop", s.handleStopWorkout)
			r.Post("/workouts/discard", s.handleDiscardWorkout)

			r.Post("/health/authorize", s.handleAuthorize)

			r.Post("/ingest", s.handleHAEIngest)
			r.Post("/import/device", s.handleDeviceImport)
		})
	})
}
