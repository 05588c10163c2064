// Package graph provides the node/relation graph used by the workflow engine.
//
// Two types carry the model:
//   - Graph: an unsynchronized graph with typed attributes, used directly as a
//     worker's private working copy
//   - Store: the shared, single-writer graph owned by the application session,
//     exposing read snapshots and exclusive write transactions
//
// Merge translates a working copy back into a Store inside a write
// transaction, and Finalize completes the schema and validates keys once per job.
package graph
