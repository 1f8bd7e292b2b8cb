// Package api hosts the HTTP server, middleware, and handlers for the studio.
// Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/state for the full studio snapshot.
//   - POST /v1/transcriptions and /v1/content/... to start work.
//   - GET /v1/notifications for the incremental notification feed.
//   - GET /v1/live upgrades to a WebSocket carrying live audio frames.
package api
