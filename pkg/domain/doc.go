// Package domain holds the types shared by the engine, its adapters and its
// APIs:
//   - Workflow: the stage chain a job runs
//   - JobSpec and JobState: what was submitted and how far it got
//   - Event: progress notifications published on the event bus
package domain
