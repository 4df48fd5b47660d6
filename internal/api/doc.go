// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/jobs to start a scraping job over a list of zones.
//   - GET /v1/jobs, /v1/jobs/history and /v1/jobs/{job_id} for progress.
//   - DELETE /v1/zones/{zone_id}/config and /v1/zones/config to drop cached zone configs.
package api
