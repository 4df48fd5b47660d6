// Package email discovers a restaurant's public contact address from its website by trying a
// chain of fetch strategies and scoring the addresses found.
package email

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/zone-scraper/internal/metrics"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
	"github.com/JakeFAU/zone-scraper/internal/strategy"
)

// Strategy names recorded on discovered candidates.
const (
	StrategyHTTP        = "http"
	StrategyBrowser     = "browser"
	StrategyContactPage = "contact_page"
)

const (
	defaultTimeout          = 30 * time.Second
	defaultBatchConcurrency = 3
)

// DefaultContactPaths are probed relative to the site root.
var DefaultContactPaths = []string{
	"/contact", "/contact-us", "/about", "/about-us", "/info",
	"/location", "/locations", "/hours", "/contact.html", "/contact.php",
}

// DefaultUserAgents rotate across requests.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/119.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

var pageHeaders = http.Header{
	"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
	"Accept-Language": {"en-US,en;q=0.5"},
}

// MXChecker reports whether a domain accepts mail.
type MXChecker interface {
	HasMX(ctx context.Context, domain string) (bool, error)
}

// Waiter applies per-site politeness before each fetch.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config tunes the pipeline.
type Config struct {
	Timeout      time.Duration
	UserAgents   []string
	ContactPaths []string
	VerifyMX     bool
	// SkipDomains lists website hosts that are never fetched. See DefaultSkipDomains.
	SkipDomains []string
}

// Target is one restaurant to enrich.
type Target struct {
	PlaceID string
	Name    string
	Website string
}

// Outcome is the result for one Target.
type Outcome struct {
	Target    Target
	Candidate scraper.EmailCandidate
	Found     bool
}

// BatchOptions bound batch discovery.
type BatchOptions struct {
	Concurrency int
	Delay       time.Duration
}

// ProgressFunc is called after each target completes.
type ProgressFunc func(processed, total int, outcome Outcome)

type site struct {
	root   *url.URL
	domain string
}

// Pipeline runs the discovery chain. Safe for concurrent use.
type Pipeline struct {
	plain   scraper.Fetcher
	browser scraper.Fetcher
	mx      MXChecker
	limiter Waiter
	clock   scraper.Clock
	cfg     Config
	skip    *domainBlocklist
	logger  *zap.Logger
	chain   []strategy.Strategy[site, scraper.EmailCandidate]
}

// New builds a Pipeline. mx and limiter may be nil.
func New(
	plain scraper.Fetcher,
	browser scraper.Fetcher,
	mx MXChecker,
	limiter Waiter,
	clock scraper.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = DefaultUserAgents
	}
	if len(cfg.ContactPaths) == 0 {
		cfg.ContactPaths = DefaultContactPaths
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		plain:   plain,
		browser: browser,
		mx:      mx,
		limiter: limiter,
		clock:   clock,
		cfg:     cfg,
		skip:    newDomainBlocklist(cfg.SkipDomains),
		logger:  logger,
	}
	p.chain = []strategy.Strategy[site, scraper.EmailCandidate]{
		{Name: StrategyHTTP, Run: p.runPlain},
		{Name: StrategyBrowser, Run: p.runBrowser},
		{Name: StrategyContactPage, Run: p.runContactPages},
	}
	return p
}

// Discover returns the best address for website. Fetch failures advance the chain and are never
// returned; an exhausted chain reports false.
func (p *Pipeline) Discover(ctx context.Context, website string) (scraper.EmailCandidate, bool) {
	root, err := parseRoot(website)
	if err != nil {
		p.logger.Debug("skipping unusable website", zap.String("website", website), zap.Error(err))
		metrics.ObserveEmailDiscovery("none")
		return scraper.EmailCandidate{}, false
	}
	if p.skip.Blocked(root.Hostname()) {
		p.logger.Debug("skipping blocked website", zap.String("website", website))
		metrics.ObserveEmailDiscovery("skipped")
		return scraper.EmailCandidate{}, false
	}
	s := site{root: root, domain: SiteDomain(root.String())}

	res := strategy.Run(ctx, s, p.chain)
	for _, a := range res.Attempts {
		if a.Err != nil {
			p.logger.Debug("email strategy failed",
				zap.String("website", website),
				zap.String("strategy", a.Strategy),
				zap.Error(a.Err),
			)
		}
	}
	if !res.Found {
		metrics.ObserveEmailDiscovery("none")
		return scraper.EmailCandidate{}, false
	}
	metrics.ObserveEmailDiscovery(res.Strategy)
	p.logger.Info("email found",
		zap.String("website", website),
		zap.String("email", res.Value.Address),
		zap.String("strategy", res.Strategy),
	)
	return res.Value, true
}

// DiscoverBatch processes targets in batches of opts.Concurrency with opts.Delay between batches.
// Outcomes keep the input order. A cancelled context stops before the next batch and returns the
// outcomes completed so far.
func (p *Pipeline) DiscoverBatch(ctx context.Context, targets []Target, opts BatchOptions, progress ProgressFunc) []Outcome {
	size := opts.Concurrency
	if size <= 0 {
		size = defaultBatchConcurrency
	}
	out := make([]Outcome, len(targets))
	var (
		mu        sync.Mutex
		processed int
	)
	done := 0
	for start := 0; start < len(targets); start += size {
		if ctx.Err() != nil {
			break
		}
		end := min(start+size, len(targets))
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				t := targets[i]
				o := Outcome{Target: t}
				if t.Website != "" {
					o.Candidate, o.Found = p.Discover(ctx, t.Website)
				}
				out[i] = o
				mu.Lock()
				processed++
				n := processed
				if progress != nil {
					progress(n, len(targets), o)
				}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
		done = end

		if end < len(targets) && opts.Delay > 0 {
			if err := p.clock.Sleep(ctx, opts.Delay); err != nil {
				break
			}
		}
	}

	found := 0
	for _, o := range out[:done] {
		if o.Found {
			found++
		}
	}
	p.logger.Info("email batch completed",
		zap.Int("total", len(targets)),
		zap.Int("processed", done),
		zap.Int("found", found),
	)
	return out[:done]
}

func (p *Pipeline) runPlain(ctx context.Context, s site) (scraper.EmailCandidate, bool, error) {
	return p.fetchAndPick(ctx, p.plain, s.root.String(), StrategyHTTP, s)
}

func (p *Pipeline) runBrowser(ctx context.Context, s site) (scraper.EmailCandidate, bool, error) {
	if p.browser == nil {
		return scraper.EmailCandidate{}, false, scraper.ErrFetcherDisabled
	}
	return p.fetchAndPick(ctx, p.browser, s.root.String(), StrategyBrowser, s)
}

func (p *Pipeline) runContactPages(ctx context.Context, s site) (scraper.EmailCandidate, bool, error) {
	var errs []error
	for _, path := range p.cfg.ContactPaths {
		if ctx.Err() != nil {
			return scraper.EmailCandidate{}, false, ctx.Err()
		}
		ref, err := url.Parse(path)
		if err != nil {
			continue
		}
		target := s.root.ResolveReference(ref).String()
		cand, ok, err := p.fetchAndPick(ctx, p.plain, target, StrategyContactPage, s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return cand, true, nil
		}
	}
	return scraper.EmailCandidate{}, false, errors.Join(errs...)
}

func (p *Pipeline) fetchAndPick(
	ctx context.Context,
	fetcher scraper.Fetcher,
	target string,
	strategyName string,
	s site,
) (scraper.EmailCandidate, bool, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, target); err != nil {
			return scraper.EmailCandidate{}, false, err
		}
	}
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	resp, err := fetcher.Fetch(fetchCtx, scraper.FetchRequest{
		URL:       target,
		UserAgent: p.userAgent(),
		Headers:   pageHeaders.Clone(),
	})
	if err != nil {
		return scraper.EmailCandidate{}, false, fmt.Errorf("%s %s: %w", strategyName, target, err)
	}

	addrs := p.verified(ctx, Extract(resp.Body, s.domain))
	addr, score, ok := Best(addrs, s.domain)
	if !ok {
		return scraper.EmailCandidate{}, false, nil
	}
	return scraper.EmailCandidate{
		Address:   addr,
		Strategy:  strategyName,
		Score:     score,
		SourceURL: target,
	}, true, nil
}

// verified drops addresses whose domain has no MX record. Lookup errors keep the address.
func (p *Pipeline) verified(ctx context.Context, addrs []string) []string {
	if !p.cfg.VerifyMX || p.mx == nil || len(addrs) == 0 {
		return addrs
	}
	kept := addrs[:0]
	for _, addr := range addrs {
		_, domain, _ := strings.Cut(addr, "@")
		ok, err := p.mx.HasMX(ctx, domain)
		if err != nil {
			p.logger.Debug("mx lookup failed", zap.String("domain", domain), zap.Error(err))
			kept = append(kept, addr)
			continue
		}
		if ok {
			kept = append(kept, addr)
		}
	}
	return kept
}

func (p *Pipeline) userAgent() string {
	return p.cfg.UserAgents[rand.IntN(len(p.cfg.UserAgents))]
}

func parseRoot(website string) (*url.URL, error) {
	website = strings.TrimSpace(website)
	if website == "" {
		return nil, errors.New("empty website")
	}
	u, err := url.Parse(website)
	if err != nil {
		return nil, fmt.Errorf("parse website: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("website %q is not absolute", website)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}, nil
}
