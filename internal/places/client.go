// Package places runs a zone's nearby-search queries, enriches unique hits with place details,
// and turns them into validated restaurant records.
package places

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/zone-scraper/internal/metrics"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
	"github.com/JakeFAU/zone-scraper/internal/strategy"
)

const (
	// DefaultDetailBatchSize bounds concurrent detail calls.
	DefaultDetailBatchSize = 10
	// DefaultDetailBatchDelay separates detail batches.
	DefaultDetailBatchDelay = 500 * time.Millisecond
	// DefaultPageDelay is the wait the provider requires before a page token becomes valid.
	DefaultPageDelay = 2 * time.Second
	// DefaultMaxPages caps pages fetched per query.
	DefaultMaxPages = 3

	limiterKey = "places"
)

// DefaultDetailFields is the field mask requested for each place.
var DefaultDetailFields = []string{
	"place_id", "name", "formatted_address", "geometry",
	"formatted_phone_number", "international_phone_number",
	"website", "rating", "price_level", "types",
	"opening_hours", "photos",
}

// Waiter throttles provider calls. A nil Waiter disables throttling.
type Waiter interface {
	WaitKey(ctx context.Context, key string) error
}

// Config tunes pagination and detail batching.
type Config struct {
	DetailBatchSize  int
	DetailBatchDelay time.Duration
	PageDelay        time.Duration
	MaxPages         int
	DetailFields     []string
	// SummaryFallback builds a coarse record from the search hit when the detail call fails.
	SummaryFallback bool
}

func (c Config) withDefaults() Config {
	if c.DetailBatchSize <= 0 {
		c.DetailBatchSize = DefaultDetailBatchSize
	}
	if c.DetailBatchDelay < 0 {
		c.DetailBatchDelay = DefaultDetailBatchDelay
	}
	if c.PageDelay < 0 {
		c.PageDelay = DefaultPageDelay
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if len(c.DetailFields) == 0 {
		c.DetailFields = DefaultDetailFields
	}
	return c
}

// DefaultConfig returns the production pacing.
func DefaultConfig() Config {
	return Config{
		DetailBatchSize:  DefaultDetailBatchSize,
		DetailBatchDelay: DefaultDetailBatchDelay,
		PageDelay:        DefaultPageDelay,
		MaxPages:         DefaultMaxPages,
		DetailFields:     DefaultDetailFields,
	}
}

// SearchStats summarizes one zone pass.
type SearchStats struct {
	Queries       int
	FailedQueries int
	Candidates    int
	DetailErrors  int
	Rejected      int
	Records       int
}

// Client searches a single zone. Safe for concurrent use across zones.
type Client struct {
	provider scraper.PlacesProvider
	limiter  Waiter
	clock    scraper.Clock
	cfg      Config
	logger   *zap.Logger
	chain    []strategy.Strategy[detailInput, scraper.RestaurantRecord]
}

type detailInput struct {
	candidate scraper.CandidatePlace
	zone      scraper.Zone
}

// New builds a Client.
func New(provider scraper.PlacesProvider, limiter Waiter, clock scraper.Clock, cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		provider: provider,
		limiter:  limiter,
		clock:    clock,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
	c.chain = []strategy.Strategy[detailInput, scraper.RestaurantRecord]{
		{Name: "details", Run: c.fromDetails},
	}
	if c.cfg.SummaryFallback {
		c.chain = append(c.chain, strategy.Strategy[detailInput, scraper.RestaurantRecord]{
			Name: "summary", Run: fromSummary,
		})
	}
	return c
}

// SearchZone runs every query of cfg, deduplicates by place id, fetches details and returns the
// records that pass the zone's rules. Provider failures are logged and skipped; only context
// cancellation is returned as an error.
func (c *Client) SearchZone(ctx context.Context, cfg *scraper.SearchConfig) ([]scraper.RestaurantRecord, SearchStats, error) {
	candidates, stats, err := c.Search(ctx, cfg)
	if err != nil {
		return nil, stats, err
	}
	records, detailErrs, err := c.fetchDetails(ctx, cfg, candidates)
	stats.DetailErrors = detailErrs
	if err != nil {
		return nil, stats, err
	}

	valid := make([]scraper.RestaurantRecord, 0, len(records))
	for _, rec := range records {
		if failed := Validate(rec, cfg.Rules); failed != "" {
			stats.Rejected++
			c.logger.Debug("restaurant rejected",
				zap.String("zone_id", cfg.Zone.ID),
				zap.String("place_id", rec.PlaceID),
				zap.String("rule", failed),
			)
			continue
		}
		valid = append(valid, rec)
	}
	stats.Records = len(valid)

	c.logger.Info("zone search completed",
		zap.String("zone_id", cfg.Zone.ID),
		zap.Int("queries", stats.Queries),
		zap.Int("failed_queries", stats.FailedQueries),
		zap.Int("candidates", stats.Candidates),
		zap.Int("records", stats.Records),
		zap.Int("rejected", stats.Rejected),
	)
	return valid, stats, nil
}

// Search runs the zone's queries sequentially and returns unique candidates in first-seen order.
func (c *Client) Search(ctx context.Context, cfg *scraper.SearchConfig) ([]scraper.CandidatePlace, SearchStats, error) {
	var stats SearchStats
	seen := make(map[string]struct{})
	var unique []scraper.CandidatePlace

	merge := func(page []scraper.CandidatePlace) int {
		added := 0
		for _, p := range page {
			if p.PlaceID == "" || !cfg.AllowsPrice(p.PriceLevel) {
				continue
			}
			if _, dup := seen[p.PlaceID]; dup {
				continue
			}
			seen[p.PlaceID] = struct{}{}
			unique = append(unique, p)
			added++
		}
		return added
	}

	for _, q := range cfg.Queries {
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("search zone %s: %w", cfg.Zone.ID, err)
		}
		stats.Queries++
		added, err := c.runQuery(ctx, cfg, q, merge, func() bool { return len(unique) < cfg.MaxResults })
		if err != nil {
			if ctx.Err() != nil {
				return nil, stats, fmt.Errorf("search zone %s: %w", cfg.Zone.ID, ctx.Err())
			}
			stats.FailedQueries++
			c.logger.Warn("search query failed",
				zap.String("zone_id", cfg.Zone.ID),
				zap.String("keyword", q.Keyword),
				zap.String("type", q.Type),
				zap.Error(err),
			)
			continue
		}
		c.logger.Debug("search query completed",
			zap.String("zone_id", cfg.Zone.ID),
			zap.String("keyword", q.Keyword),
			zap.String("type", q.Type),
			zap.Int("new_results", added),
			zap.Int("total_unique", len(unique)),
		)
	}
	stats.Candidates = len(unique)
	return unique, stats, nil
}

// runQuery fetches up to MaxPages pages for one query. Pages already merged are kept when a
// later page fails.
func (c *Client) runQuery(
	ctx context.Context,
	cfg *scraper.SearchConfig,
	q scraper.SearchQuery,
	merge func([]scraper.CandidatePlace) int,
	wantMore func() bool,
) (int, error) {
	req := scraper.NearbyRequest{
		Location:     [2]float64{cfg.Location.Lat(), cfg.Location.Lon()},
		RadiusMeters: cfg.RadiusMeters,
		Keyword:      q.Keyword,
		Type:         q.Type,
	}
	added := 0
	for page := 1; ; page++ {
		resp, err := c.nearby(ctx, req)
		if err != nil {
			return added, err
		}
		added += merge(resp.Candidates)
		if resp.NextPageToken == "" || page >= c.cfg.MaxPages || !wantMore() {
			return added, nil
		}
		if err := c.clock.Sleep(ctx, c.cfg.PageDelay); err != nil {
			return added, err
		}
		req.PageToken = resp.NextPageToken
	}
}

func (c *Client) nearby(ctx context.Context, req scraper.NearbyRequest) (scraper.NearbyResponse, error) {
	if err := c.wait(ctx); err != nil {
		return scraper.NearbyResponse{}, err
	}
	start := time.Now()
	resp, err := c.provider.NearbySearch(ctx, req)
	metrics.ObservePlacesRequest("nearby", status(err), time.Since(start))
	if err != nil {
		return scraper.NearbyResponse{}, fmt.Errorf("nearby search: %w", err)
	}
	return resp, nil
}

// fetchDetails enriches candidates in bounded batches. Records are appended in completion order
// within each batch.
func (c *Client) fetchDetails(
	ctx context.Context,
	cfg *scraper.SearchConfig,
	candidates []scraper.CandidatePlace,
) ([]scraper.RestaurantRecord, int, error) {
	var (
		mu      sync.Mutex
		records = make([]scraper.RestaurantRecord, 0, len(candidates))
		failed  int
	)
	size := c.cfg.DetailBatchSize
	for start := 0; start < len(candidates); start += size {
		end := min(start+size, len(candidates))
		var g errgroup.Group
		for _, cand := range candidates[start:end] {
			g.Go(func() error {
				res := strategy.Run(ctx, detailInput{candidate: cand, zone: cfg.Zone}, c.chain)
				mu.Lock()
				defer mu.Unlock()
				if !res.Found {
					failed++
					for _, a := range res.Attempts {
						c.logger.Warn("place detail failed",
							zap.String("zone_id", cfg.Zone.ID),
							zap.String("place_id", cand.PlaceID),
							zap.String("strategy", a.Strategy),
							zap.Error(a.Err),
						)
					}
					return nil
				}
				records = append(records, res.Value)
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, failed, fmt.Errorf("place details: %w", err)
		}
		if end < len(candidates) {
			if err := c.clock.Sleep(ctx, c.cfg.DetailBatchDelay); err != nil {
				return nil, failed, fmt.Errorf("place details: %w", err)
			}
		}
	}
	return records, failed, nil
}

func (c *Client) fromDetails(ctx context.Context, in detailInput) (scraper.RestaurantRecord, bool, error) {
	if err := c.wait(ctx); err != nil {
		return scraper.RestaurantRecord{}, false, err
	}
	start := time.Now()
	d, err := c.provider.PlaceDetails(ctx, in.candidate.PlaceID, c.cfg.DetailFields)
	metrics.ObservePlacesRequest("details", status(err), time.Since(start))
	if err != nil {
		return scraper.RestaurantRecord{}, false, err
	}
	if d.PlaceID == "" {
		d.PlaceID = in.candidate.PlaceID
	}
	return TransformDetails(d, in.zone), true, nil
}

func fromSummary(_ context.Context, in detailInput) (scraper.RestaurantRecord, bool, error) {
	return TransformCandidate(in.candidate, in.zone), true, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.WaitKey(ctx, limiterKey)
}

// Validate returns the name of the first rule rec fails, or "" when all pass.
func Validate(rec scraper.RestaurantRecord, rules []scraper.Rule) string {
	for _, r := range rules {
		if !r.Check(rec) {
			return r.Name
		}
	}
	return ""
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
