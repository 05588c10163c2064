// Package http provides the HTTP REST API implementation.
//
// The HTTP server exposes endpoints for:
//   - Job submission, listing, status and cancellation
//   - Loading and reading the shared graph as record sets
//   - Listing the registered stages
//   - Health checks reflecting the worker pool
//   - Prometheus metrics
package http
