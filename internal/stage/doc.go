// Package stage defines the unit of work run by a workflow.
//
// A stage moves through a fixed lifecycle against one working copy:
//   - READ: extract a record set without mutating the graph
//   - VALIDATE: optional checks before COMPUTE and before APPLY
//   - COMPUTE: produce a result record set, supervised so the caller can
//     walk away on cancellation even if the stage ignores its context
//   - APPLY: the only phase allowed to mutate the working copy
//
// Stages are resolved by id through a Resolver; Registry is the in-process
// implementation.
package stage
