package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/zone-scraper/internal/orchestrator"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

type startJobRequest struct {
	Zones         []string `json:"zones"`
	DelayMS       *int64   `json:"delay_ms,omitempty"`
	MaxResults    *int     `json:"max_results,omitempty"`
	ExtractEmails *bool    `json:"extract_emails,omitempty"`
}

type jobDTO struct {
	ID            string     `json:"id"`
	Status        string     `json:"status"`
	Zones         []string   `json:"zones"`
	Processed     int        `json:"processed"`
	Total         int        `json:"total"`
	Results       int        `json:"results"`
	CurrentZone   string     `json:"current_zone,omitempty"`
	DelayMS       int64      `json:"delay_ms"`
	MaxResults    int        `json:"max_results"`
	ExtractEmails bool       `json:"extract_emails"`
	StartedAt     time.Time  `json:"started_at"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

type jobListResponse struct {
	Jobs  []jobDTO `json:"jobs"`
	Count int      `json:"count"`
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request) {
	var req startJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Zones) == 0 {
		writeError(w, http.StatusBadRequest, scraper.ErrNoZones.Error())
		return
	}
	opts := s.jobs.DefaultOptions()
	if req.DelayMS != nil {
		if *req.DelayMS < 0 {
			writeError(w, http.StatusBadRequest, "delay_ms must be >= 0")
			return
		}
		opts.InterZoneDelay = time.Duration(*req.DelayMS) * time.Millisecond
	}
	if req.MaxResults != nil {
		if *req.MaxResults <= 0 {
			writeError(w, http.StatusBadRequest, "max_results must be > 0")
			return
		}
		opts.MaxResultsPerZone = *req.MaxResults
	}
	if req.ExtractEmails != nil {
		opts.ExtractEmails = *req.ExtractEmails
	}

	job, err := s.jobs.StartJob(r.Context(), req.Zones, opts)
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/jobs/"+job.ID)
	writeJSON(w, http.StatusAccepted, toJobDTO(job))
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "job_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "job_id is required")
		return
	}
	job, err := s.jobs.JobStatus(r.Context(), id)
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobDTO(job))
}

func (s *Server) listActiveJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.jobs.ListActive(r.Context())
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobList(jobs))
}

func (s *Server) listJobHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), s.opts.RecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, err := s.jobs.ListHistory(r.Context(), limit)
	if err != nil {
		s.writeJobError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobList(jobs))
}

func (s *Server) writeJobError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, scraper.ErrNoZones):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, scraper.ErrJobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scraper.ErrZoneBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, orchestrator.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("job request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func parseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(limit, maxHistoryLimit), nil
}

func toJobList(jobs []scraper.Job) jobListResponse {
	dtos := make([]jobDTO, 0, len(jobs))
	for _, job := range jobs {
		dtos = append(dtos, toJobDTO(job))
	}
	return jobListResponse{Jobs: dtos, Count: len(dtos)}
}

func toJobDTO(job scraper.Job) jobDTO {
	zones := job.ZoneIDs
	if zones == nil {
		zones = []string{}
	}
	return jobDTO{
		ID:            job.ID,
		Status:        string(job.Status),
		Zones:         zones,
		Processed:     job.Processed,
		Total:         job.Total,
		Results:       job.Results,
		CurrentZone:   job.CurrentZone,
		DelayMS:       job.Options.InterZoneDelay.Milliseconds(),
		MaxResults:    job.Options.MaxResultsPerZone,
		ExtractEmails: job.Options.ExtractEmails,
		StartedAt:     job.StartedAt,
		EndedAt:       job.EndedAt,
		Error:         job.Error,
	}
}
