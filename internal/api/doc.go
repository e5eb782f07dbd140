// Package api hosts the operator HTTP surface for long crawls. Routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/crawl for a live snapshot of the running crawl's counters.
package api
