package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/zone-scraper/internal/metrics"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
	"github.com/JakeFAU/zone-scraper/internal/zoneconfig"
)

const (
	defaultRecentLimit = 5
	maxHistoryLimit    = 500
	requestTimeout     = 60 * time.Second
	readyTimeout       = 3 * time.Second
)

// JobService starts and reports on scraping jobs.
type JobService interface {
	StartJob(ctx context.Context, zoneIDs []string, opts scraper.JobOptions) (scraper.Job, error)
	JobStatus(ctx context.Context, id string) (scraper.Job, error)
	ListActive(ctx context.Context) ([]scraper.Job, error)
	ListHistory(ctx context.Context, limit int) ([]scraper.Job, error)
	DefaultOptions() scraper.JobOptions
}

// ZoneConfigCache is the resolver cache surface exposed to operators.
type ZoneConfigCache interface {
	Invalidate(zoneID string)
	InvalidateAll()
	Stats() zoneconfig.CacheStats
}

// ReadyCheck reports whether a downstream dependency is usable.
type ReadyCheck func(ctx context.Context) error

// Options tunes the HTTP surface.
type Options struct {
	APIKey      string
	RecentLimit int
	ReadyChecks map[string]ReadyCheck
}

// Server wires HTTP handlers to the orchestrator and zone config cache.
type Server struct {
	router chi.Router
	jobs   JobService
	zones  ZoneConfigCache
	opts   Options
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes. An empty APIKey disables auth.
func NewServer(jobs JobService, zones ZoneConfigCache, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = defaultRecentLimit
	}
	s := &Server{
		jobs:   jobs,
		zones:  zones,
		opts:   opts,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(timeoutMiddleware(requestTimeout))
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", s.startJob)
			r.Get("/", s.listActiveJobs)
			r.Get("/history", s.listJobHistory)
			r.Get("/{job_id}", s.getJob)
		})
		r.Route("/zones", func(r chi.Router) {
			r.Delete("/config", s.invalidateAllZoneConfigs)
			r.Get("/config/stats", s.zoneConfigStats)
			r.Delete("/{zone_id}/config", s.invalidateZoneConfig)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	failures := map[string]string{}
	for name, check := range s.opts.ReadyChecks {
		if err := check(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	if len(failures) > 0 {
		s.logger.Warn("readiness check failed", zap.Any("failures", failures))
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "checks": failures})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
