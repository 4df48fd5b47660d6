package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/zone-scraper/internal/config"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Places.APIKey = "test-key"
	cfg.Zones.Seed = []scraper.Zone{{
		ID:           "z1",
		Code:         "NYC-MID",
		Latitude:     40.754,
		Longitude:    -73.984,
		RadiusMeters: 2000,
		Priority:     1,
		Active:       true,
	}}
	return cfg
}

func TestBuildInMemory(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	app, err := Build(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	require.NotNil(t, app.dispatch)
	require.Nil(t, app.pool)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	stores, err := setupStores(context.Background(), &App{cfg: &cfg, logger: zap.NewNop()})
	require.NoError(t, err)
	zone, err := stores.Zones.GetZone(context.Background(), "z1")
	require.NoError(t, err)
	require.Equal(t, "NYC-MID", zone.Code)
}

func TestBuildEmailDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Email.Enabled = false
	app, err := Build(context.Background(), &cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	require.Nil(t, app.dispatch)
	require.Nil(t, app.queue)
	require.False(t, app.orchestrator.DefaultOptions().ExtractEmails)
}

func TestBuildRequiresPlacesKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Places.APIKey = ""
	_, err := Build(context.Background(), &cfg, zap.NewNop())
	require.EqualError(t, err, "places.api_key is required")
}

func TestSetupStorageBackends(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	app := &App{cfg: &cfg, logger: zap.NewNop()}

	cfg.Storage.Backend = config.StorageNone
	blobs, err := setupStorage(context.Background(), app)
	require.NoError(t, err)
	require.Nil(t, blobs)

	cfg.Storage.Backend = config.StorageLocal
	cfg.Storage.Local.BaseDir = filepath.Join(t.TempDir(), "exports")
	blobs, err = setupStorage(context.Background(), app)
	require.NoError(t, err)
	uri, err := blobs.PutObject(context.Background(), "a.json", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(uri, "file://"))

	cfg.Storage.Backend = config.StorageMemory
	blobs, err = setupStorage(context.Background(), app)
	require.NoError(t, err)
	require.NotNil(t, blobs)
}

func TestSetupStoresRejectsBadSeedTemplate(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Zones.Seed = []scraper.Zone{{ID: "z9", Template: "no-such-template"}}
	_, err := setupStores(context.Background(), &App{cfg: &cfg, logger: zap.NewNop()})
	require.ErrorContains(t, err, "seed zone z9")
}
