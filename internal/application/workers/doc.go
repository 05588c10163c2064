// Package workers runs batches in parallel.
//
// It provides:
//   - Pool: a fixed number of goroutines draining an unbounded FIFO queue
//   - Future: the handle of a submitted task, cancellable before and during
//     execution
//   - Worker: runs a workflow against one batch on a private working copy
//   - Failures: the append-only failure list shared by a job's workers
//
// The health monitor tracks worker status and reports it as metrics.
package workers
