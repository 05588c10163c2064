// Package orchestrator runs workflows over batches of a shared graph.
//
// The Orchestrator executes one job synchronously:
//   - Validating arguments and the workflow
//   - Batching a read snapshot of the store
//   - Running one Worker per batch with bounded concurrency
//   - Merging results back one transaction at a time, in completion order
//   - Finalizing the store once and reporting a JobOutcome
//
// The Manager wraps it for asynchronous use: it stores job states, publishes
// events and supports cancellation by job id.
package orchestrator
