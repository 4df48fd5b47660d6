// Package main hosts the zone scraper service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, job control and zone config cache endpoints. A job
//     request names zones; the orchestrator accepts it immediately and runs the zones in order on its own goroutine.
//   - Zone pass: each zone id is resolved into a derived search configuration (cached with a TTL), searched through
//     the Places provider with paginated nearby search and batched detail calls, filtered by the zone rules and
//     upserted by place id. Persisted records are exported as JSON to the configured BlobStore (memory/local/GCS).
//   - Email discovery: records with a website are queued on a bounded in-memory queue and fanned out to a fixed
//     worker pool sized by config.Jobs.Workers. Each worker runs the discovery chain (homepage, contact pages,
//     optional headless render, domain patterns) and writes the best address back to the store.
//   - Persistence & fanout: zones and restaurants live in Postgres when a DSN is configured and in memory otherwise.
//     Job lifecycle events are published to Pub/Sub when a topic is configured.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the metrics middleware and /metrics handler.
//
// Operational notes:
//   - Pacing: Places calls share a token bucket; website fetches are limited per host. Zones within a job are separated
//     by the job's inter-zone delay.
//   - Busy zones: a job naming a zone that another active job holds is rejected with 409 unless
//     jobs.reject_busy_zones is false.
//   - Cloud Run: the HTTP server listens on the configured port (overridable via PORT). The process reacts to SIGTERM
//     by failing running jobs, draining workers and closing clients.
//
// Quick checklist:
//   - Configure env vars: SCRAPER_PLACES_API_KEY (required), SCRAPER_SERVER_PORT or PORT, SCRAPER_DATABASE_DSN,
//     SCRAPER_STORAGE_BACKEND, SCRAPER_PUBSUB_PROJECT_ID and SCRAPER_PUBSUB_TOPIC_NAME.
//   - Run locally: go run ./cmd/zonescraper -config config.yaml (or rely solely on env overrides).
package main
