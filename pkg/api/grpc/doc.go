// Package grpc serves the standard grpc.health.v1 service. The serving
// status follows the worker pool health and is refreshed on an interval.
package grpc
