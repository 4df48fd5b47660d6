package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func routeSamples(t *testing.T, method, route string) uint64 {
	t.Helper()
	metric, ok := httpRequestDurationSeconds.WithLabelValues(method, route).(prometheus.Metric)
	require.True(t, ok)
	var out dto.Metric
	require.NoError(t, metric.Write(&out))
	return out.GetHistogram().GetSampleCount()
}

func TestMiddlewareLabelsChiRoutePattern(t *testing.T) {
	Init()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Patch("/zones/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Patch("/jobs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	teapotBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPatch, "418"))
	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPatch, "200"))
	zonesBefore := routeSamples(t, http.MethodPatch, "/zones/{id}")
	jobsBefore := routeSamples(t, http.MethodPatch, "/jobs/{id}")

	for _, path := range []string{"/zones/z1", "/zones/z2", "/jobs/j1"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, path, nil))
	}

	require.InDelta(t, teapotBefore+2, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPatch, "418")), 0)
	require.InDelta(t, okBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPatch, "200")), 0)
	require.Equal(t, zonesBefore+2, routeSamples(t, http.MethodPatch, "/zones/{id}"))
	require.Equal(t, jobsBefore+1, routeSamples(t, http.MethodPatch, "/jobs/{id}"))
}

func TestMiddlewareWithoutRouteContextUsesUnknown(t *testing.T) {
	Init()

	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	codeBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPut, "503"))
	unknownBefore := routeSamples(t, http.MethodPut, "unknown")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/anything", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.InDelta(t, codeBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPut, "503")), 0)
	require.Equal(t, unknownBefore+1, routeSamples(t, http.MethodPut, "unknown"))
}
