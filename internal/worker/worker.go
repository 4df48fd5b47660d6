// Package worker enriches scraped restaurants with contact emails off the job's critical path.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/zone-scraper/internal/email"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

// EventEmailsCompleted is published after a zone's email work item finishes.
const EventEmailsCompleted = "zone.emails_completed"

// Discoverer runs email discovery over a batch of websites.
type Discoverer interface {
	DiscoverBatch(ctx context.Context, targets []email.Target, opts email.BatchOptions, progress email.ProgressFunc) []email.Outcome
}

// Config controls Worker behavior.
type Config struct {
	// Topic receives a completion event per work item. Empty disables publishing.
	Topic string
	// StoreRetries is how many times an UpdateEmail hitting an unavailable store is retried.
	StoreRetries int
	// RetryBackoff is the base pause between store retries. It doubles per attempt.
	RetryBackoff time.Duration
	// BatchConcurrency and BatchDelay apply when a work item's scraping config leaves them unset.
	BatchConcurrency int
	BatchDelay       time.Duration
}

// Stats summarizes one processed work item.
type Stats struct {
	Targets int
	Found   int
	Saved   int
	Failed  int
}

// Worker consumes email work and writes discovered addresses back to the store.
type Worker struct {
	queue      scraper.Queue
	discoverer Discoverer
	store      scraper.RestaurantStore
	publisher  scraper.Publisher
	clock      scraper.Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Worker.
func New(
	queue scraper.Queue,
	discoverer Discoverer,
	store scraper.RestaurantStore,
	publisher scraper.Publisher,
	clock scraper.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StoreRetries < 0 {
		cfg.StoreRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Worker{
		queue:      queue,
		discoverer: discoverer,
		store:      store,
		publisher:  publisher,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks, consuming queue items until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, scraper.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued email work",
			zap.String("job_id", item.JobID),
			zap.String("zone_id", item.ZoneID),
			zap.Int("restaurants", len(item.Restaurants)),
		)
		w.Process(ctx, item)
	}
}

// Process discovers emails for one zone's restaurants and persists the hits.
func (w *Worker) Process(ctx context.Context, item scraper.EmailWork) Stats {
	targets := Targets(item.Restaurants)
	stats := Stats{Targets: len(targets)}
	if len(targets) == 0 {
		w.publishDone(ctx, item, stats)
		return stats
	}

	opts := w.batchOptions(item.Scraping)
	progress := func(processed, total int, outcome email.Outcome) {
		w.logger.Debug("email discovery progress",
			zap.String("job_id", item.JobID),
			zap.String("zone_id", item.ZoneID),
			zap.Int("processed", processed),
			zap.Int("total", total),
			zap.Bool("found", outcome.Found),
		)
	}
	outcomes := w.discoverer.DiscoverBatch(ctx, targets, opts, progress)

	for _, out := range outcomes {
		if !out.Found {
			continue
		}
		stats.Found++
		if err := w.saveEmail(ctx, out); err != nil {
			stats.Failed++
			w.logger.Warn("update email failed",
				zap.String("job_id", item.JobID),
				zap.String("place_id", out.Target.PlaceID),
				zap.Error(err),
			)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		stats.Saved++
	}

	w.logger.Info("email enrichment finished",
		zap.String("job_id", item.JobID),
		zap.String("zone_id", item.ZoneID),
		zap.Int("targets", stats.Targets),
		zap.Int("found", stats.Found),
		zap.Int("saved", stats.Saved),
		zap.Int("failed", stats.Failed),
	)
	w.publishDone(ctx, item, stats)
	return stats
}

func (w *Worker) batchOptions(sc scraper.ScrapingConfig) email.BatchOptions {
	opts := email.BatchOptions{Concurrency: sc.Concurrency, Delay: sc.RequestDelay}
	if opts.Concurrency <= 0 {
		opts.Concurrency = w.cfg.BatchConcurrency
	}
	if opts.Delay <= 0 {
		opts.Delay = w.cfg.BatchDelay
	}
	return opts
}

// Targets selects the restaurants with a website and no email yet.
func Targets(records []scraper.RestaurantRecord) []email.Target {
	out := make([]email.Target, 0, len(records))
	for _, rec := range records {
		if rec.Website == "" || rec.Email != "" {
			continue
		}
		out = append(out, email.Target{PlaceID: rec.PlaceID, Name: rec.Name, Website: rec.Website})
	}
	return out
}

func (w *Worker) saveEmail(ctx context.Context, out email.Outcome) error {
	backoff := w.cfg.RetryBackoff
	var err error
	for attempt := 0; attempt <= w.cfg.StoreRetries; attempt++ {
		if attempt > 0 {
			if sleepErr := w.clock.Sleep(ctx, backoff); sleepErr != nil {
				return sleepErr
			}
			backoff *= 2
		}
		err = w.store.UpdateEmail(ctx, out.Target.PlaceID, out.Candidate)
		if err == nil || !errors.Is(err, scraper.ErrStoreUnavailable) {
			return err
		}
	}
	return err
}

func (w *Worker) publishDone(ctx context.Context, item scraper.EmailWork, stats Stats) {
	if w.cfg.Topic == "" || w.publisher == nil {
		return
	}
	event := scraper.JobEvent{
		Type:      EventEmailsCompleted,
		JobID:     item.JobID,
		ZoneID:    item.ZoneID,
		Processed: stats.Targets,
		Total:     len(item.Restaurants),
		Results:   stats.Saved,
		At:        w.clock.Now(),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, event); err != nil {
		w.logger.Warn("publish email completion failed", zap.String("job_id", item.JobID), zap.Error(err))
	}
}
