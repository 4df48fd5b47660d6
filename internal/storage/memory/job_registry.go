package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

// DefaultHistoryLimit bounds the number of finished jobs kept.
const DefaultHistoryLimit = 50

// JobRegistry keeps active jobs in a map and finished jobs in a bounded, append-only history.
// Readers always receive copies.
type JobRegistry struct {
	mu        sync.RWMutex
	active    map[string]*scraper.Job
	history   []scraper.Job
	zoneOwner map[string]string
	limit     int
}

// NewJobRegistry constructs a JobRegistry keeping at most historyLimit finished jobs.
func NewJobRegistry(historyLimit int) *JobRegistry {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &JobRegistry{
		active:    make(map[string]*scraper.Job),
		zoneOwner: make(map[string]string),
		limit:     historyLimit,
	}
}

// Create registers job as active.
func (r *JobRegistry) Create(_ context.Context, job scraper.Job, exclusive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.active[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	if exclusive {
		for _, z := range job.ZoneIDs {
			if owner, busy := r.zoneOwner[z]; busy {
				return fmt.Errorf("zone %s held by job %s: %w", z, owner, scraper.ErrZoneBusy)
			}
		}
	}
	for _, z := range job.ZoneIDs {
		if _, busy := r.zoneOwner[z]; !busy {
			r.zoneOwner[z] = job.ID
		}
	}
	cp := job.Clone()
	r.active[job.ID] = &cp
	return nil
}

// Update applies fn to the active job.
func (r *JobRegistry) Update(_ context.Context, id string, fn func(*scraper.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.active[id]
	if !ok {
		return fmt.Errorf("active job %s: %w", id, scraper.ErrJobNotFound)
	}
	fn(job)
	return nil
}

// Finish moves the job into history, dropping the oldest entries beyond the limit.
func (r *JobRegistry) Finish(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.active[id]
	if !ok {
		return fmt.Errorf("active job %s: %w", id, scraper.ErrJobNotFound)
	}
	delete(r.active, id)
	for _, z := range job.ZoneIDs {
		if r.zoneOwner[z] == id {
			delete(r.zoneOwner, z)
		}
	}
	r.history = append(r.history, job.Clone())
	if over := len(r.history) - r.limit; over > 0 {
		r.history = append([]scraper.Job(nil), r.history[over:]...)
	}
	return nil
}

// Get looks in the active set first, then history.
func (r *JobRegistry) Get(_ context.Context, id string) (scraper.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if job, ok := r.active[id]; ok {
		return job.Clone(), nil
	}
	for i := len(r.history) - 1; i >= 0; i-- {
		if r.history[i].ID == id {
			return r.history[i].Clone(), nil
		}
	}
	return scraper.Job{}, fmt.Errorf("job %s: %w", id, scraper.ErrJobNotFound)
}

// ListActive returns active jobs ordered by start time.
func (r *JobRegistry) ListActive(_ context.Context) ([]scraper.Job, error) {
	r.mu.RLock()
	out := make([]scraper.Job, 0, len(r.active))
	for _, job := range r.active {
		out = append(out, job.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

// ListHistory returns up to limit finished jobs, newest first. limit <= 0 returns all.
func (r *JobRegistry) ListHistory(_ context.Context, limit int) ([]scraper.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]scraper.Job, 0, n)
	for i := len(r.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, r.history[i].Clone())
	}
	return out, nil
}
