// Package api serves the loaded quotes over a read-only HTTP interface.
// Routes:
//   - GET /healthz and /readyz for liveness and store readiness.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/quotes, optionally filtered by ?author= or ?tag= substring.
//   - GET /v1/authors for every stored author.
//   - GET /v1/stats/authors, /v1/stats/tags?limit=N and /v1/stats/totals.
//   - GET /v1/export for the full snapshot document.
package api
