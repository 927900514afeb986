// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Run submission, cancellation and resume
//   - Run state and summary queries
//   - Health checks
//   - Prometheus metrics
package http
