// Package metrics provides MetricsCollector implementations.
//
// Implementations:
//   - prometheus: counters, gauges and histograms on a prometheus.Registerer
//   - nop: discards everything
package metrics
