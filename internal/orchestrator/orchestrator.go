// Package orchestrator runs scraping jobs: it walks a job's zones in order, searches each one,
// persists the results and tracks progress in the job registry.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/zone-scraper/internal/metrics"
	"github.com/JakeFAU/zone-scraper/internal/places"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

// Job lifecycle event types.
const (
	EventJobStarted    = "job.started"
	EventZoneCompleted = "zone.completed"
	EventJobCompleted  = "job.completed"
	EventJobFailed     = "job.failed"
)

const (
	// DefaultInterZoneDelay is the pause between consecutive zones of a job.
	DefaultInterZoneDelay = 2 * time.Second
	// DefaultMaxResultsPerZone caps how many records one zone pass persists.
	DefaultMaxResultsPerZone = 100

	finalizeTimeout = 10 * time.Second
)

// ErrClosed is returned by StartJob after Close.
var ErrClosed = errors.New("orchestrator closed")

// Resolver returns the effective search configuration for a zone.
type Resolver interface {
	Resolve(ctx context.Context, zoneID string) (*scraper.SearchConfig, error)
}

// Searcher runs one zone pass against the places provider.
type Searcher interface {
	SearchZone(ctx context.Context, cfg *scraper.SearchConfig) ([]scraper.RestaurantRecord, places.SearchStats, error)
}

// Enqueuer accepts email discovery work without blocking the zone loop. A full queue reports
// scraper.ErrQueueFull and the work is dropped.
type Enqueuer interface {
	TryEnqueue(ctx context.Context, item scraper.EmailWork) error
}

// Config tunes job defaults and side outputs.
type Config struct {
	DefaultInterZoneDelay time.Duration
	DefaultMaxResults     int
	DefaultExtractEmails  bool
	// RejectBusyZones refuses a job when another active job holds one of its zones.
	RejectBusyZones bool
	// EventsTopic receives lifecycle events. Empty disables publishing.
	EventsTopic string
}

// Orchestrator owns job execution. Each job runs on its own goroutine; zones within a job run
// strictly in order.
type Orchestrator struct {
	registry  scraper.JobRegistry
	resolver  Resolver
	searcher  Searcher
	store     scraper.RestaurantStore
	emails    Enqueuer
	publisher scraper.Publisher
	blobs     scraper.BlobStore
	clock     scraper.Clock
	ids       scraper.IDGenerator
	cfg       Config
	logger    *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	closed  bool
	wg      sync.WaitGroup
}

// New constructs an Orchestrator. emails, publisher and blobs may be nil to disable email
// enrichment, events and zone exports respectively.
func New(
	registry scraper.JobRegistry,
	resolver Resolver,
	searcher Searcher,
	store scraper.RestaurantStore,
	emails Enqueuer,
	publisher scraper.Publisher,
	blobs scraper.BlobStore,
	clock scraper.Clock,
	ids scraper.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultInterZoneDelay < 0 {
		cfg.DefaultInterZoneDelay = 0
	}
	if cfg.DefaultMaxResults <= 0 {
		cfg.DefaultMaxResults = DefaultMaxResultsPerZone
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		registry:  registry,
		resolver:  resolver,
		searcher:  searcher,
		store:     store,
		emails:    emails,
		publisher: publisher,
		blobs:     blobs,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// DefaultOptions returns the job options applied when a caller does not set them.
func (o *Orchestrator) DefaultOptions() scraper.JobOptions {
	return scraper.JobOptions{
		InterZoneDelay:    o.cfg.DefaultInterZoneDelay,
		MaxResultsPerZone: o.cfg.DefaultMaxResults,
		ExtractEmails:     o.cfg.DefaultExtractEmails,
	}
}

// StartJob registers a job and starts it in the background. It returns the job snapshot with
// status starting without waiting for any zone work.
func (o *Orchestrator) StartJob(ctx context.Context, zoneIDs []string, opts scraper.JobOptions) (scraper.Job, error) {
	zoneIDs = uniqueZones(zoneIDs)
	if len(zoneIDs) == 0 {
		return scraper.Job{}, scraper.ErrNoZones
	}
	if opts.InterZoneDelay < 0 {
		opts.InterZoneDelay = 0
	}
	if opts.MaxResultsPerZone <= 0 {
		opts.MaxResultsPerZone = o.cfg.DefaultMaxResults
	}

	id, err := o.ids.NewID()
	if err != nil {
		return scraper.Job{}, fmt.Errorf("generate job id: %w", err)
	}
	job := scraper.Job{
		ID:        id,
		ZoneIDs:   zoneIDs,
		Options:   opts,
		Status:    scraper.JobStatusStarting,
		Total:     len(zoneIDs),
		StartedAt: o.clock.Now(),
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return scraper.Job{}, ErrClosed
	}
	if err := o.registry.Create(ctx, job, o.cfg.RejectBusyZones); err != nil {
		return scraper.Job{}, fmt.Errorf("register job: %w", err)
	}
	metrics.IncActiveJobs()
	o.logger.Info("job accepted",
		zap.String("job_id", job.ID),
		zap.Strings("zones", job.ZoneIDs),
		zap.Duration("inter_zone_delay", opts.InterZoneDelay),
		zap.Int("max_results_per_zone", opts.MaxResultsPerZone),
		zap.Bool("extract_emails", opts.ExtractEmails),
	)

	o.wg.Add(1)
	go o.run(job.Clone())
	return job.Clone(), nil
}

// JobStatus returns a snapshot of an active or finished job.
func (o *Orchestrator) JobStatus(ctx context.Context, id string) (scraper.Job, error) {
	job, err := o.registry.Get(ctx, id)
	if err != nil {
		return scraper.Job{}, fmt.Errorf("job status: %w", err)
	}
	return job, nil
}

// ListActive returns the jobs still running.
func (o *Orchestrator) ListActive(ctx context.Context) ([]scraper.Job, error) {
	jobs, err := o.registry.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	return jobs, nil
}

// ListHistory returns up to limit finished jobs, newest first.
func (o *Orchestrator) ListHistory(ctx context.Context, limit int) ([]scraper.Job, error) {
	jobs, err := o.registry.ListHistory(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list job history: %w", err)
	}
	return jobs, nil
}

// Close cancels running jobs and waits for them to record their final state.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.cancel()
	o.wg.Wait()
}

// Wait blocks until every started job has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) run(job scraper.Job) {
	defer o.wg.Done()
	defer metrics.DecActiveJobs()

	ctx := o.baseCtx
	logger := o.logger.With(zap.String("job_id", job.ID))
	o.publish(ctx, o.event(job, EventJobStarted, ""))

	runErr := o.runZones(ctx, job, logger)
	o.finalize(ctx, job, runErr, logger)
}

func (o *Orchestrator) runZones(ctx context.Context, job scraper.Job, logger *zap.Logger) error {
	if err := o.registry.Update(ctx, job.ID, func(j *scraper.Job) {
		j.Status = scraper.JobStatusRunning
	}); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}

	for i, zoneID := range job.ZoneIDs {
		pass, err := o.runZone(ctx, job, zoneID, logger)
		if pass.inserted > 0 {
			if upErr := o.registry.Update(ctx, job.ID, func(j *scraper.Job) {
				j.Results += pass.inserted
			}); upErr != nil && err == nil {
				err = upErr
			}
		}
		if err != nil {
			return fmt.Errorf("zone %s: %w", zoneID, err)
		}

		var snapshot scraper.Job
		if err := o.registry.Update(ctx, job.ID, func(j *scraper.Job) {
			j.Processed++
			j.CurrentZone = pass.label
			snapshot = j.Clone()
		}); err != nil {
			return fmt.Errorf("record zone %s: %w", zoneID, err)
		}
		o.publish(ctx, o.event(snapshot, EventZoneCompleted, zoneID))
		if pass.emails != nil {
			o.enqueueEmails(ctx, *pass.emails, logger.With(zap.String("zone_id", zoneID)))
		}

		if i < len(job.ZoneIDs)-1 && job.Options.InterZoneDelay > 0 {
			if err := o.clock.Sleep(ctx, job.Options.InterZoneDelay); err != nil {
				return fmt.Errorf("inter-zone delay: %w", err)
			}
		}
	}
	return nil
}

type zonePass struct {
	label    string
	inserted int
	emails   *scraper.EmailWork
}

// runZone searches and persists one zone. Unknown or invalid zones are skipped. A returned error
// is job-fatal.
func (o *Orchestrator) runZone(ctx context.Context, job scraper.Job, zoneID string, logger *zap.Logger) (zonePass, error) {
	pass := zonePass{label: zoneID}
	logger = logger.With(zap.String("zone_id", zoneID))

	cfg, err := o.resolver.Resolve(ctx, zoneID)
	switch {
	case errors.Is(err, scraper.ErrZoneNotFound), errors.Is(err, scraper.ErrInvalidZone):
		metrics.ObserveZone("skipped")
		logger.Warn("zone skipped", zap.Error(err))
		return pass, nil
	case err != nil:
		metrics.ObserveZone("error")
		return pass, fmt.Errorf("resolve: %w", err)
	}
	pass.label = cfg.Zone.Label()
	if err := o.registry.Update(ctx, job.ID, func(j *scraper.Job) {
		j.CurrentZone = pass.label
	}); err != nil {
		return pass, fmt.Errorf("set current zone: %w", err)
	}

	limit := job.Options.MaxResultsPerZone
	scoped := *cfg
	if limit > 0 && limit < scoped.MaxResults {
		scoped.MaxResults = limit
	}
	records, stats, err := o.searcher.SearchZone(ctx, &scoped)
	if err != nil {
		metrics.ObserveZone("error")
		return pass, fmt.Errorf("search: %w", err)
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	persisted := make([]scraper.RestaurantRecord, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			metrics.ObserveZone("error")
			return pass, fmt.Errorf("persist: %w", err)
		}
		inserted, err := o.store.UpsertByPlaceID(ctx, rec)
		switch {
		case errors.Is(err, scraper.ErrStoreUnavailable):
			metrics.ObserveRestaurant("error")
			metrics.ObserveZone("error")
			return pass, fmt.Errorf("persist %s: %w", rec.PlaceID, err)
		case err != nil:
			metrics.ObserveRestaurant("error")
			logger.Warn("restaurant upsert failed", zap.String("place_id", rec.PlaceID), zap.Error(err))
			continue
		case inserted:
			pass.inserted++
			metrics.ObserveRestaurant("inserted")
		default:
			metrics.ObserveRestaurant("duplicate")
		}
		persisted = append(persisted, rec)
	}
	metrics.ObserveZone("processed")
	logger.Info("zone processed",
		zap.String("zone", pass.label),
		zap.Int("queries", stats.Queries),
		zap.Int("failed_queries", stats.FailedQueries),
		zap.Int("records", len(records)),
		zap.Int("inserted", pass.inserted),
	)

	o.export(ctx, job, cfg.Zone, persisted, logger)
	if job.Options.ExtractEmails && o.emails != nil {
		pass.emails = o.emailWork(job, cfg, persisted)
	}
	return pass, nil
}

// emailWork collects the persisted records that have a website. It returns nil when none do.
func (o *Orchestrator) emailWork(job scraper.Job, cfg *scraper.SearchConfig, records []scraper.RestaurantRecord) *scraper.EmailWork {
	withSite := make([]scraper.RestaurantRecord, 0, len(records))
	for _, rec := range records {
		if rec.Website != "" {
			withSite = append(withSite, rec)
		}
	}
	if len(withSite) == 0 {
		return nil
	}
	return &scraper.EmailWork{
		JobID:       job.ID,
		ZoneID:      cfg.Zone.ID,
		Scraping:    cfg.Scraping,
		Restaurants: withSite,
		Submitted:   o.clock.Now().Unix(),
	}
}

func (o *Orchestrator) enqueueEmails(ctx context.Context, item scraper.EmailWork, logger *zap.Logger) {
	err := o.emails.TryEnqueue(ctx, item)
	switch {
	case errors.Is(err, scraper.ErrQueueFull):
		metrics.ObserveEmailWork("dropped")
		logger.Warn("email queue full, work dropped", zap.Int("restaurants", len(item.Restaurants)))
	case err != nil:
		metrics.ObserveEmailWork("error")
		logger.Warn("email work not queued", zap.Int("restaurants", len(item.Restaurants)), zap.Error(err))
	default:
		metrics.ObserveEmailWork("queued")
		logger.Debug("email work queued", zap.Int("restaurants", len(item.Restaurants)))
	}
}

func (o *Orchestrator) finalize(ctx context.Context, job scraper.Job, runErr error, logger *zap.Logger) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	ended := o.clock.Now()
	status := scraper.JobStatusCompleted
	errText := ""
	if runErr != nil {
		status = scraper.JobStatusFailed
		errText = runErr.Error()
	}

	var snapshot scraper.Job
	if err := o.registry.Update(fctx, job.ID, func(j *scraper.Job) {
		j.Status = status
		j.EndedAt = &ended
		j.Error = errText
		if status == scraper.JobStatusCompleted {
			j.CurrentZone = ""
		}
		snapshot = j.Clone()
	}); err != nil {
		logger.Error("final job update failed", zap.Error(err))
		snapshot = job
		snapshot.Status = status
		snapshot.Error = errText
	}
	if err := o.registry.Finish(fctx, job.ID); err != nil {
		logger.Error("move job to history failed", zap.Error(err))
	}
	metrics.ObserveJob(string(status))

	if runErr != nil {
		logger.Error("job failed",
			zap.Int("processed", snapshot.Processed),
			zap.Int("results", snapshot.Results),
			zap.Error(runErr),
		)
		o.publish(fctx, o.event(snapshot, EventJobFailed, ""))
		return
	}
	logger.Info("job completed",
		zap.Int("processed", snapshot.Processed),
		zap.Int("results", snapshot.Results),
		zap.Duration("duration", ended.Sub(job.StartedAt)),
	)
	o.publish(fctx, o.event(snapshot, EventJobCompleted, ""))
}

func (o *Orchestrator) event(job scraper.Job, typ, zoneID string) scraper.JobEvent {
	return scraper.JobEvent{
		Type:      typ,
		JobID:     job.ID,
		ZoneID:    zoneID,
		Status:    job.Status,
		Processed: job.Processed,
		Total:     job.Total,
		Results:   job.Results,
		Error:     job.Error,
		At:        o.clock.Now(),
	}
}

func (o *Orchestrator) publish(ctx context.Context, event scraper.JobEvent) {
	if o.publisher == nil || o.cfg.EventsTopic == "" {
		return
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.EventsTopic, event); err != nil {
		o.logger.Warn("publish job event failed",
			zap.String("job_id", event.JobID),
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}

func uniqueZones(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
