// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /start_crawling, GET /crawling_status, and POST /crawling/cancel
//     to drive the single background crawl run.
//   - GET /api/data, /api/data/sample, /api/data/field/{field}, and
//     /api/statistics plus GET /download_json over the stored corpus.
package api
