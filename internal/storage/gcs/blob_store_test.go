package gcs_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/JakeFAU/zone-scraper/internal/storage/gcs"
)

func newTestStore(t *testing.T, cfg gcs.Config, handler http.Handler) *gcs.BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(), option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := gcs.New(client, cfg)
	require.NoError(t, err)
	return store
}

func TestPutObjectUploadsUnderPrefix(t *testing.T) {
	t.Parallel()

	payload := `{"zone_code":"NYC-MID"}`
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/exports-bucket/o")
		assert.Equal(t, "zones/NYC-MID_restaurants.json", r.URL.Query().Get("name"))
		assert.Equal(t, "multipart", r.URL.Query().Get("uploadType"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), payload)
		assert.Contains(t, string(body), "application/json")

		fmt.Fprintln(w, `{"name":"zones/NYC-MID_restaurants.json","bucket":"exports-bucket"}`)
	})

	store := newTestStore(t, gcs.Config{Bucket: "exports-bucket", Prefix: "/zones/"}, handler)
	uri, err := store.PutObject(context.Background(), "NYC-MID_restaurants.json", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "gs://exports-bucket/zones/NYC-MID_restaurants.json", uri)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	store := newTestStore(t, gcs.Config{Bucket: "exports-bucket"}, handler)

	_, err := store.PutObject(context.Background(), "x.json", "", strings.NewReader("{}"))
	require.Error(t, err)
}

func TestNewAndPathValidation(t *testing.T) {
	t.Parallel()

	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = gcs.New(client, gcs.Config{})
	require.Error(t, err)

	store, err := gcs.New(client, gcs.Config{Bucket: "b"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " ", "", strings.NewReader("{}"))
	require.Error(t, err)
}
