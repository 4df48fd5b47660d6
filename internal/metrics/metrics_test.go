package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveHelpersInitLazily(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(jobsTotal.WithLabelValues("completed"))
	ObserveJob("completed")
	if got := testutil.ToFloat64(jobsTotal.WithLabelValues("completed")); got != before+1 {
		t.Errorf("expected jobs_total to grow by 1, got %f -> %f", before, got)
	}

	hitsBefore := testutil.ToFloat64(zoneConfigCacheTotal.WithLabelValues("hit"))
	ObserveZoneConfigCache(true)
	if got := testutil.ToFloat64(zoneConfigCacheTotal.WithLabelValues("hit")); got != hitsBefore+1 {
		t.Errorf("expected cache hits to grow by 1, got %f", got)
	}

	ObservePlacesRequest("nearby", "ok", 120*time.Millisecond)
	if val := testutil.CollectAndCount(placesRequestDuration); val <= 0 {
		t.Errorf("expected places latency to be observed, got %d", val)
	}

	IncActiveJobs()
	DecActiveJobs()
	if got := testutil.ToFloat64(activeJobs); got != 0 {
		t.Errorf("expected active jobs gauge back at 0, got %f", got)
	}
}

func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
