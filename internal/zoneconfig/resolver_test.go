package zoneconfig

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

func TestResolveCachesWithinTTL(t *testing.T) {
	t.Parallel()

	store := newFakeZoneStore(testZone("z1"))
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	r := NewResolver(store, clock, Options{TTL: time.Minute}, zap.NewNop())

	first, err := r.Resolve(context.Background(), "z1")
	require.NoError(t, err)
	clock.advance(30 * time.Second)
	second, err := r.Resolve(context.Background(), "z1")
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, store.callCount("z1"))
}

func TestResolveReflectsChangesAfterInvalidation(t *testing.T) {
	t.Parallel()

	store := newFakeZoneStore(testZone("z1"))
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	r := NewResolver(store, clock, Options{}, zap.NewNop())

	first, err := r.Resolve(context.Background(), "z1")
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3, 4}, first.PriceLevels)

	updated := testZone("z1")
	updated.Notes = "Upscale waterfront district"
	store.put(updated)

	cached, err := r.Resolve(context.Background(), "z1")
	require.NoError(t, err)
	require.Same(t, first, cached)

	r.Invalidate("z1")
	fresh, err := r.Resolve(context.Background(), "z1")
	require.NoError(t, err)
	require.NotSame(t, first, fresh)
	require.Equal(t, []int{2, 3, 4}, fresh.PriceLevels)
}

func TestResolveExpires(t *testing.T) {
	t.Parallel()

	store := newFakeZoneStore(testZone("z1"))
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	r := NewResolver(store, clock, Options{}, zap.NewNop())

	first, err := r.Resolve(context.Background(), "z1")
	require.NoError(t, err)
	clock.advance(DefaultTTL)
	second, err := r.Resolve(context.Background(), "z1")
	require.NoError(t, err)

	require.NotSame(t, first, second)
	require.Equal(t, 2, store.callCount("z1"))
}

func TestInvalidateAllAndStats(t *testing.T) {
	t.Parallel()

	store := newFakeZoneStore(testZone("z1"), testZone("z2"))
	r := NewResolver(store, &fakeClock{now: time.Unix(0, 0)}, Options{}, nil)

	_, err := r.Resolve(context.Background(), "z2")
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "z1")
	require.NoError(t, err)

	stats := r.Stats()
	require.Equal(t, 2, stats.Size)
	require.Equal(t, []string{"z1", "z2"}, stats.Entries)
	require.Equal(t, DefaultTTL, stats.TTL)

	r.InvalidateAll()
	require.Zero(t, r.Stats().Size)
}

func TestResolveUnknownZone(t *testing.T) {
	t.Parallel()

	r := NewResolver(newFakeZoneStore(), &fakeClock{}, Options{}, nil)
	_, err := r.Resolve(context.Background(), "missing")
	require.ErrorIs(t, err, scraper.ErrZoneNotFound)
	require.Zero(t, r.Stats().Size)
}

func TestResolveInvalidCoordinates(t *testing.T) {
	t.Parallel()

	bad := testZone("z1")
	bad.Latitude = 123
	r := NewResolver(newFakeZoneStore(bad), &fakeClock{}, Options{}, nil)

	_, err := r.Resolve(context.Background(), "z1")
	require.ErrorIs(t, err, scraper.ErrInvalidZone)
}

func TestResolveAppliesTemplate(t *testing.T) {
	t.Parallel()

	z := scraper.Zone{ID: "k1", Latitude: 40.6, Longitude: -73.9, Template: "kosher"}
	r := NewResolver(newFakeZoneStore(z), &fakeClock{}, Options{}, nil)

	cfg, err := r.Resolve(context.Background(), "k1")
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.RadiusMeters)
	require.Equal(t, "kosher restaurant", cfg.Queries[0].Keyword)
	require.Contains(t, ruleNames(cfg.Rules), "kosher")
	require.Equal(t, orb.Point{-73.9, 40.6}, cfg.Location)
}

func ruleNames(rules []scraper.Rule) []string {
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		names = append(names, r.Name)
	}
	return names
}

func testZone(id string) scraper.Zone {
	return scraper.Zone{
		ID:           id,
		Code:         "NYC-" + id,
		DisplayName:  "Zone " + id,
		Latitude:     40.7128,
		Longitude:    -74.0060,
		RadiusMeters: 5000,
		Priority:     2,
		SearchTerms:  []string{"pizza"},
		CuisineFocus: []string{"italian"},
		Active:       true,
	}
}

type fakeZoneStore struct {
	mu    sync.Mutex
	zones map[string]scraper.Zone
	calls map[string]int
}

func newFakeZoneStore(zones ...scraper.Zone) *fakeZoneStore {
	s := &fakeZoneStore{zones: map[string]scraper.Zone{}, calls: map[string]int{}}
	for _, z := range zones {
		s.zones[z.ID] = z
	}
	return s
}

func (s *fakeZoneStore) GetZone(_ context.Context, id string) (scraper.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[id]++
	z, ok := s.zones[id]
	if !ok {
		return scraper.Zone{}, fmt.Errorf("zone %s: %w", id, scraper.ErrZoneNotFound)
	}
	return z, nil
}

func (s *fakeZoneStore) put(z scraper.Zone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[z.ID] = z
}

func (s *fakeZoneStore) callCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(context.Context, time.Duration) error { return nil }

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
