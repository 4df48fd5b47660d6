package email

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	visits []string
	agents []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeFetcher) Fetch(_ context.Context, req scraper.FetchRequest) (scraper.FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visits = append(f.visits, req.URL)
	f.agents = append(f.agents, req.UserAgent)
	if err := f.errs[req.URL]; err != nil {
		return scraper.FetchResponse{}, err
	}
	body, ok := f.pages[req.URL]
	if !ok {
		return scraper.FetchResponse{}, fmt.Errorf("%s: not found", req.URL)
	}
	return scraper.FetchResponse{URL: req.URL, StatusCode: 200, Body: []byte(body)}, nil
}

func (f *fakeFetcher) visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.visits...)
}

type nopClock struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *nopClock) Now() time.Time { return time.Unix(0, 0) }

func (c *nopClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

func newPipeline(plain, browser scraper.Fetcher) *Pipeline {
	return New(plain, browser, nil, nil, &nopClock{}, Config{UserAgents: []string{"test-agent"}}, zap.NewNop())
}

func TestScoringPrefersSiteDomainBusinessAddress(t *testing.T) {
	t.Parallel()

	plain := newFakeFetcher()
	plain.pages["https://example.com"] = `<p>sales@othersite.com</p><p>info@example.com</p>`

	got, ok := newPipeline(plain, nil).Discover(context.Background(), "https://example.com")
	require.True(t, ok)
	require.Equal(t, "info@example.com", got.Address)
	require.Equal(t, StrategyHTTP, got.Strategy)
	require.Equal(t, 160, got.Score)
}

func TestScore(t *testing.T) {
	t.Parallel()

	require.Equal(t, 160, Score("info@luigis.com", "luigis.com"))
	require.Equal(t, 10, Score("sales@othersite.com", "luigis.com"))
	require.Equal(t, 40, Score("contact@gmail.com", "luigis.com"))
	require.Equal(t, 5, Score("sam42@othersite.com", "luigis.com"))
	require.Equal(t, 0, Score("a-very-long-personal-address@othersite.com", "luigis.com"))
}

func TestBestTieKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	addr, _, ok := Best([]string{"sam@a.com", "kim@b.com"}, "")
	require.True(t, ok)
	require.Equal(t, "sam@a.com", addr)

	_, _, ok = Best(nil, "")
	require.False(t, ok)
}

func TestExtractFilters(t *testing.T) {
	t.Parallel()

	page := []byte(`
		<html><body>
		<p>Write to Info@Luigis.com or info@luigis.com</p>
		<p>noreply@luigis.com postmaster@luigis.com test@luigis.com admin@luigis.com</p>
		<p>john@example.com</p>
		<img src="logo@2x.png">
		<a href="mailto:reservations%40luigis.com?subject=Table">Book</a>
		</body></html>`)

	got := Extract(page, "luigis.com")
	require.Equal(t, []string{"info@luigis.com", "reservations@luigis.com"}, got)

	require.Equal(t, []string{"info@example.com"}, Extract([]byte("info@example.com"), "example.com"))
	require.Empty(t, Extract([]byte("info@example.com"), "luigis.com"))
	require.True(t, Acceptable("admin@luigis.org", "luigis.org"))
}

func TestSiteDomain(t *testing.T) {
	t.Parallel()

	require.Equal(t, "luigis.com", SiteDomain("https://www.Luigis.com/menu"))
	require.Equal(t, "", SiteDomain("::"))
}

func TestDiscoverFallsThroughStrategies(t *testing.T) {
	t.Parallel()

	plain := newFakeFetcher()
	plain.errs["https://luigis.com"] = fmt.Errorf("wrapped: %w", scraper.ErrFetchBlocked)
	plain.pages["https://luigis.com/contact"] = `<p>nothing here</p>`
	plain.pages["https://luigis.com/about"] = `<p>hello@luigis.com</p>`

	browser := newFakeFetcher()
	browser.pages["https://luigis.com"] = `<p>no emails rendered</p>`

	got, ok := newPipeline(plain, browser).Discover(context.Background(), "https://luigis.com")
	require.True(t, ok)
	require.Equal(t, "hello@luigis.com", got.Address)
	require.Equal(t, StrategyContactPage, got.Strategy)
	require.Equal(t, "https://luigis.com/about", got.SourceURL)

	require.Equal(t, []string{
		"https://luigis.com",
		"https://luigis.com/contact",
		"https://luigis.com/contact-us",
		"https://luigis.com/about",
	}, plain.visited())
	require.Equal(t, []string{"https://luigis.com"}, browser.visited())
}

func TestDiscoverBrowserStrategy(t *testing.T) {
	t.Parallel()

	plain := newFakeFetcher()
	plain.pages["https://luigis.com"] = `<div id="app"></div>`
	browser := newFakeFetcher()
	browser.pages["https://luigis.com"] = `<div id="app"><a href="mailto:office@luigis.com">Mail</a></div>`

	got, ok := newPipeline(plain, browser).Discover(context.Background(), "https://luigis.com")
	require.True(t, ok)
	require.Equal(t, StrategyBrowser, got.Strategy)
	require.Equal(t, "office@luigis.com", got.Address)
}

func TestDiscoverExhaustedChain(t *testing.T) {
	t.Parallel()

	plain := newFakeFetcher()
	_, ok := newPipeline(plain, nil).Discover(context.Background(), "https://luigis.com")
	require.False(t, ok)
	require.Len(t, plain.visited(), 1+len(DefaultContactPaths))

	_, ok = newPipeline(plain, nil).Discover(context.Background(), "not a url")
	require.False(t, ok)
}

func TestDiscoverSkipsBlockedDomains(t *testing.T) {
	t.Parallel()

	plain := newFakeFetcher()
	plain.pages["https://www.facebook.com/luigis"] = `<a href="mailto:luigi@gmail.com">mail</a>`
	p := New(plain, nil, nil, nil, &nopClock{}, Config{SkipDomains: DefaultSkipDomains}, zap.NewNop())

	_, ok := p.Discover(context.Background(), "https://www.facebook.com/luigis")
	require.False(t, ok)
	require.Empty(t, plain.visited())
}

func TestDiscoverUsesConfiguredAgents(t *testing.T) {
	t.Parallel()

	plain := newFakeFetcher()
	plain.pages["https://luigis.com"] = `info@luigis.com`
	_, ok := newPipeline(plain, nil).Discover(context.Background(), "https://luigis.com")
	require.True(t, ok)
	require.Equal(t, []string{"test-agent"}, plain.agents)
}

type fakeMX map[string]bool

func (f fakeMX) HasMX(_ context.Context, domain string) (bool, error) {
	ok, known := f[domain]
	if !known {
		return false, errors.New("timeout")
	}
	return ok, nil
}

func TestDiscoverVerifiesMX(t *testing.T) {
	t.Parallel()

	plain := newFakeFetcher()
	plain.pages["https://luigis.com"] = `info@luigis.com contact@dead-domain.com owner@unknown.com`

	p := New(plain, nil, fakeMX{"luigis.com": false, "dead-domain.com": false}, nil, &nopClock{},
		Config{VerifyMX: true}, nil)
	got, ok := p.Discover(context.Background(), "https://luigis.com")
	require.True(t, ok)
	require.Equal(t, "owner@unknown.com", got.Address)
}

func TestDiscoverBatch(t *testing.T) {
	t.Parallel()

	plain := newFakeFetcher()
	plain.pages["https://a.com"] = `info@a.com`
	plain.pages["https://c.com"] = `info@c.com`

	clock := &nopClock{}
	p := New(plain, nil, nil, nil, clock, Config{ContactPaths: []string{"/contact"}}, nil)

	targets := []Target{
		{PlaceID: "a", Website: "https://a.com"},
		{PlaceID: "b", Website: "https://b.com"},
		{PlaceID: "c", Website: "https://c.com"},
		{PlaceID: "d"},
	}

	var (
		mu    sync.Mutex
		seen  []int
		total int
	)
	out := p.DiscoverBatch(context.Background(), targets, BatchOptions{Concurrency: 2, Delay: time.Second},
		func(processed, n int, _ Outcome) {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, processed)
			total = n
		})

	require.Len(t, out, 4)
	require.True(t, out[0].Found)
	require.False(t, out[1].Found)
	require.True(t, out[2].Found)
	require.False(t, out[3].Found)
	require.Equal(t, "info@c.com", out[2].Candidate.Address)

	sort.Ints(seen)
	require.Equal(t, []int{1, 2, 3, 4}, seen)
	require.Equal(t, 4, total)
	require.Equal(t, []time.Duration{time.Second}, clock.sleeps)
}

func TestDiscoverBatchCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(newFakeFetcher(), nil, nil, nil, &nopClock{}, Config{}, nil)
	out := p.DiscoverBatch(ctx, []Target{{Website: "https://a.com"}}, BatchOptions{}, nil)
	require.Empty(t, out)
}
