// Package zoneconfig derives a zone's effective search and scraping configuration and caches it per zone.
package zoneconfig

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/zone-scraper/internal/metrics"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

// DefaultTTL is how long a resolved config is served from cache.
const DefaultTTL = 5 * time.Minute

// Options tunes derivation and caching.
type Options struct {
	TTL                  time.Duration
	BaseMaxResults       int
	UserAgents           []string
	RequireBusinessHours bool
}

// CacheStats describes the resolver cache.
type CacheStats struct {
	Size    int           `json:"size"`
	Entries []string      `json:"entries"`
	TTL     time.Duration `json:"ttl"`
}

type cacheEntry struct {
	cfg     *scraper.SearchConfig
	expires time.Time
}

// Resolver turns zone ids into SearchConfigs. Safe for concurrent use.
type Resolver struct {
	zones  scraper.ZoneStore
	clock  scraper.Clock
	opts   Options
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewResolver builds a Resolver over the zone store.
func NewResolver(zones scraper.ZoneStore, clock scraper.Clock, opts Options, logger *zap.Logger) *Resolver {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.BaseMaxResults <= 0 {
		opts.BaseMaxResults = DefaultBaseMaxResults
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		zones:  zones,
		clock:  clock,
		opts:   opts,
		logger: logger,
		cache:  make(map[string]cacheEntry),
	}
}

// Resolve returns the cached config for zoneID or derives a fresh one. Within the TTL the same
// pointer is returned.
func (r *Resolver) Resolve(ctx context.Context, zoneID string) (*scraper.SearchConfig, error) {
	now := r.clock.Now()
	if cfg, ok := r.lookup(zoneID, now); ok {
		metrics.ObserveZoneConfigCache(true)
		return cfg, nil
	}
	metrics.ObserveZoneConfigCache(false)

	zone, err := r.zones.GetZone(ctx, zoneID)
	if err != nil {
		return nil, fmt.Errorf("get zone %s: %w", zoneID, err)
	}
	zone, err = ApplyTemplate(zone)
	if err != nil {
		return nil, err
	}
	if err := zone.Validate(); err != nil {
		return nil, err
	}
	cfg := Derive(zone, r.opts, now)

	r.mu.Lock()
	defer r.mu.Unlock()
	// A concurrent resolve may have stored an entry first; keep it so callers share one config.
	if existing, ok := r.cache[zoneID]; ok && now.Before(existing.expires) {
		return existing.cfg, nil
	}
	r.cache[zoneID] = cacheEntry{cfg: cfg, expires: now.Add(r.opts.TTL)}
	r.logger.Debug("zone config resolved",
		zap.String("zone_id", zoneID),
		zap.Int("queries", len(cfg.Queries)),
		zap.Int("max_results", cfg.MaxResults),
		zap.Ints("price_levels", cfg.PriceLevels),
	)
	return cfg, nil
}

func (r *Resolver) lookup(zoneID string, now time.Time) (*scraper.SearchConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[zoneID]
	if !ok || !now.Before(entry.expires) {
		return nil, false
	}
	return entry.cfg, true
}

// Invalidate drops the cached config for one zone.
func (r *Resolver) Invalidate(zoneID string) {
	r.mu.Lock()
	delete(r.cache, zoneID)
	r.mu.Unlock()
	r.logger.Info("zone config invalidated", zap.String("zone_id", zoneID))
}

// InvalidateAll empties the cache.
func (r *Resolver) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[string]cacheEntry)
	r.mu.Unlock()
	r.logger.Info("zone config cache cleared")
}

// Stats reports the cached zone ids.
func (r *Resolver) Stats() CacheStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]string, 0, len(r.cache))
	for id := range r.cache {
		entries = append(entries, id)
	}
	sort.Strings(entries)
	return CacheStats{Size: len(entries), Entries: entries, TTL: r.opts.TTL}
}
