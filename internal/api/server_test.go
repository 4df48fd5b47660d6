package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/zone-scraper/internal/orchestrator"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
	"github.com/JakeFAU/zone-scraper/internal/zoneconfig"
)

type fakeJobs struct {
	mu        sync.Mutex
	startErr  error
	started   []scraper.JobOptions
	zones     [][]string
	jobs      map[string]scraper.Job
	active    []scraper.Job
	history   []scraper.Job
	lastLimit int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]scraper.Job{}}
}

func (f *fakeJobs) DefaultOptions() scraper.JobOptions {
	return scraper.JobOptions{InterZoneDelay: 2 * time.Second, MaxResultsPerZone: 100, ExtractEmails: true}
}

func (f *fakeJobs) StartJob(_ context.Context, zoneIDs []string, opts scraper.JobOptions) (scraper.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return scraper.Job{}, f.startErr
	}
	f.started = append(f.started, opts)
	f.zones = append(f.zones, zoneIDs)
	job := scraper.Job{
		ID:        fmt.Sprintf("job-%d", len(f.started)),
		ZoneIDs:   zoneIDs,
		Options:   opts,
		Status:    scraper.JobStatusStarting,
		Total:     len(zoneIDs),
		StartedAt: time.Unix(100, 0).UTC(),
	}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) JobStatus(_ context.Context, id string) (scraper.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return scraper.Job{}, scraper.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeJobs) ListActive(context.Context) ([]scraper.Job, error) {
	return f.active, nil
}

func (f *fakeJobs) ListHistory(_ context.Context, limit int) ([]scraper.Job, error) {
	f.mu.Lock()
	f.lastLimit = limit
	f.mu.Unlock()
	return f.history, nil
}

type fakeZoneCache struct {
	mu          sync.Mutex
	invalidated []string
	cleared     int
}

func (f *fakeZoneCache) Invalidate(zoneID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, zoneID)
}

func (f *fakeZoneCache) InvalidateAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
}

func (f *fakeZoneCache) Stats() zoneconfig.CacheStats {
	return zoneconfig.CacheStats{Size: 1, Entries: []string{"z1"}, TTL: 5 * time.Minute}
}

type hijackableRecorder struct {
	*httptest.ResponseRecorder
	client net.Conn
}

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	server, client := net.Pipe()
	h.client = client
	return server, bufio.NewReadWriter(bufio.NewReader(client), bufio.NewWriter(client)), nil
}

func (h *hijackableRecorder) CloseClient() error {
	if h.client != nil {
		if err := h.client.Close(); err != nil {
			return fmt.Errorf("close hijacker client: %w", err)
		}
	}
	return nil
}

func newTestServer(jobs *fakeJobs, zones *fakeZoneCache, opts Options) *Server {
	return NewServer(jobs, zones, opts, zap.NewNop())
}

func do(t *testing.T, s *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStartJobAppliesDefaultsAndOverrides(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobs()
	s := newTestServer(jobs, &fakeZoneCache{}, Options{})

	rec := do(t, s, http.MethodPost, "/v1/jobs", `{"zones":["z1","z2"]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "/v1/jobs/job-1", rec.Header().Get("Location"))

	var dto jobDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	require.Equal(t, "job-1", dto.ID)
	require.Equal(t, "starting", dto.Status)
	require.Equal(t, 2, dto.Total)
	require.Equal(t, int64(2000), dto.DelayMS)
	require.Equal(t, 100, dto.MaxResults)
	require.True(t, dto.ExtractEmails)

	rec = do(t, s, http.MethodPost, "/v1/jobs", `{"zones":["z3"],"delay_ms":0,"max_results":10,"extract_emails":false}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, scraper.JobOptions{MaxResultsPerZone: 10}, jobs.started[1])
	require.Equal(t, []string{"z3"}, jobs.zones[1])
}

func TestStartJobValidation(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		body string
		want string
	}{
		"bad json":     {`{`, "invalid JSON body"},
		"no zones":     {`{"zones":[]}`, "at least one zone required"},
		"negative":     {`{"zones":["z1"],"delay_ms":-5}`, "delay_ms must be >= 0"},
		"zero results": {`{"zones":["z1"],"max_results":0}`, "max_results must be > 0"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(newFakeJobs(), &fakeZoneCache{}, Options{})
			rec := do(t, s, http.MethodPost, "/v1/jobs", tc.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tc.want), rec.Body.String())
		})
	}
}

func TestStartJobErrorMapping(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		err  error
		code int
	}{
		"busy":     {fmt.Errorf("zone z1: %w", scraper.ErrZoneBusy), http.StatusConflict},
		"closed":   {orchestrator.ErrClosed, http.StatusServiceUnavailable},
		"no zones": {scraper.ErrNoZones, http.StatusBadRequest},
		"internal": {errors.New("boom"), http.StatusInternalServerError},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			jobs := newFakeJobs()
			jobs.startErr = tc.err
			s := newTestServer(jobs, &fakeZoneCache{}, Options{})
			rec := do(t, s, http.MethodPost, "/v1/jobs", `{"zones":["z1"]}`)
			require.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestGetJob(t *testing.T) {
	t.Parallel()

	jobs := newFakeJobs()
	s := newTestServer(jobs, &fakeZoneCache{}, Options{})
	require.Equal(t, http.StatusAccepted, do(t, s, http.MethodPost, "/v1/jobs", `{"zones":["z1"]}`).Code)

	rec := do(t, s, http.MethodGet, "/v1/jobs/job-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var dto jobDTO
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))
	require.Equal(t, []string{"z1"}, dto.Zones)

	rec = do(t, s, http.MethodGet, "/v1/jobs/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListJobs(t *testing.T) {
	t.Parallel()

	ended := time.Unix(200, 0).UTC()
	jobs := newFakeJobs()
	jobs.active = []scraper.Job{{ID: "a", Status: scraper.JobStatusRunning, CurrentZone: "Midtown"}}
	jobs.history = []scraper.Job{{ID: "h", Status: scraper.JobStatusCompleted, EndedAt: &ended}}
	s := newTestServer(jobs, &fakeZoneCache{}, Options{RecentLimit: 5})

	rec := do(t, s, http.MethodGet, "/v1/jobs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list jobListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	require.Equal(t, "Midtown", list.Jobs[0].CurrentZone)

	rec = do(t, s, http.MethodGet, "/v1/jobs/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, jobs.lastLimit)

	rec = do(t, s, http.MethodGet, "/v1/jobs/history?limit=10000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, maxHistoryLimit, jobs.lastLimit)

	rec = do(t, s, http.MethodGet, "/v1/jobs/history?limit=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestZoneConfigRoutes(t *testing.T) {
	t.Parallel()

	zones := &fakeZoneCache{}
	s := newTestServer(newFakeJobs(), zones, Options{})

	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/v1/zones/z1/config", "").Code)
	require.Equal(t, []string{"z1"}, zones.invalidated)

	require.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, "/v1/zones/config", "").Code)
	require.Equal(t, 1, zones.cleared)

	rec := do(t, s, http.MethodGet, "/v1/zones/config/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"size":1,"entries":["z1"],"ttl_seconds":300}`, rec.Body.String())
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeJobs(), &fakeZoneCache{}, Options{APIKey: "secret"})

	rec := do(t, s, http.MethodGet, "/v1/jobs", "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/jobs?api_key=secret", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// probes stay open for the kubelet
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz", "").Code)
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	healthy := newTestServer(newFakeJobs(), &fakeZoneCache{}, Options{
		ReadyChecks: map[string]ReadyCheck{"store": func(context.Context) error { return nil }},
	})
	require.Equal(t, http.StatusOK, do(t, healthy, http.MethodGet, "/readyz", "").Code)

	failing := newTestServer(newFakeJobs(), &fakeZoneCache{}, Options{
		ReadyChecks: map[string]ReadyCheck{"store": func(context.Context) error { return errors.New("db down") }},
	})
	rec := do(t, failing, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "db down")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeJobs(), &fakeZoneCache{}, Options{})
	do(t, s, http.MethodGet, "/healthz", "")
	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	s := newTestServer(newFakeJobs(), &fakeZoneCache{}, Options{})
	rec := do(t, s, http.MethodGet, "/healthz", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, "caller-id", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestResponseWriterHijackBehavior(t *testing.T) {
	t.Parallel()

	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	_, _, err := rw.Hijack()
	require.EqualError(t, err, "hijacker not supported")

	h := &hijackableRecorder{ResponseRecorder: httptest.NewRecorder()}
	rw = &responseWriter{ResponseWriter: h}
	conn, buf, err := rw.Hijack()
	require.NoError(t, err)
	require.NotNil(t, buf)
	require.NoError(t, conn.Close())
	require.NoError(t, h.CloseClient())
}
