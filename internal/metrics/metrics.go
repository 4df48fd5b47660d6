// Package metrics exposes Prometheus collectors for the zone scraper.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	jobsTotal                  *prometheus.CounterVec
	activeJobs                 prometheus.Gauge
	zonesTotal                 *prometheus.CounterVec
	restaurantsTotal           *prometheus.CounterVec
	placesRequestsTotal        *prometheus.CounterVec
	placesRequestDuration      *prometheus.HistogramVec
	zoneConfigCacheTotal       *prometheus.CounterVec
	emailDiscoveriesTotal      *prometheus.CounterVec
	emailWorkTotal             *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call multiple times and is called lazily by
// every Observe helper.
func Init() {
	once.Do(func() {
		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonescraper_jobs_total",
				Help: "Scraping jobs reaching a lifecycle status.",
			},
			[]string{"status"},
		)

		activeJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "zonescraper_active_jobs",
				Help: "Scraping jobs currently iterating zones.",
			},
		)

		zonesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonescraper_zones_total",
				Help: "Zone passes, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		restaurantsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonescraper_restaurants_total",
				Help: "Restaurant upserts, labeled by result.",
			},
			[]string{"result"},
		)

		placesRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonescraper_places_requests_total",
				Help: "Places provider calls, labeled by call and status.",
			},
			[]string{"call", "status"},
		)

		placesRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zonescraper_places_request_duration_seconds",
				Help:    "Latency of places provider calls.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"call"},
		)

		zoneConfigCacheTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonescraper_zone_config_cache_total",
				Help: "Zone config lookups, labeled hit or miss.",
			},
			[]string{"result"},
		)

		emailDiscoveriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonescraper_email_discoveries_total",
				Help: "Email discovery outcomes, labeled by the winning strategy or none.",
			},
			[]string{"strategy"},
		)

		emailWorkTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zonescraper_email_work_total",
				Help: "Email work hand-offs from the zone loop, labeled by result.",
			},
			[]string{"result"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zonescraper_fetch_duration_seconds",
				Help:    "Website fetch latency, labeled by fetcher.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"fetcher"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "zonescraper_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"scope"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from a URL, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// IncActiveJobs increments the running jobs gauge.
func IncActiveJobs() {
	Init()
	activeJobs.Inc()
}

// DecActiveJobs decrements the running jobs gauge.
func DecActiveJobs() {
	Init()
	activeJobs.Dec()
}

// ObserveZone counts a zone pass outcome (processed, skipped, error).
func ObserveZone(outcome string) {
	Init()
	zonesTotal.WithLabelValues(outcome).Inc()
}

// ObserveRestaurant counts an upsert result (inserted, duplicate, error).
func ObserveRestaurant(result string) {
	Init()
	restaurantsTotal.WithLabelValues(result).Inc()
}

// ObservePlacesRequest records one provider call.
func ObservePlacesRequest(call, status string, duration time.Duration) {
	Init()
	placesRequestsTotal.WithLabelValues(call, status).Inc()
	placesRequestDuration.WithLabelValues(call).Observe(duration.Seconds())
}

// ObserveZoneConfigCache counts resolver cache hits and misses.
func ObserveZoneConfigCache(hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	zoneConfigCacheTotal.WithLabelValues(result).Inc()
}

// ObserveEmailDiscovery counts which strategy found an email. Use "none" when nothing was found.
func ObserveEmailDiscovery(strategy string) {
	Init()
	emailDiscoveriesTotal.WithLabelValues(strategy).Inc()
}

// ObserveEmailWork counts email work hand-offs by result.
func ObserveEmailWork(result string) {
	Init()
	emailWorkTotal.WithLabelValues(result).Inc()
}

// ObserveFetch records website fetch latency.
func ObserveFetch(fetcher string, duration time.Duration) {
	Init()
	fetchDurationSeconds.WithLabelValues(fetcher).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(scope string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(scope).Observe(duration.Seconds())
}
