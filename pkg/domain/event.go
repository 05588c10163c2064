package domain

import "time"

// TopicJobEvents is the event bus topic all job events are published on
const TopicJobEvents = "job.events"

// EventType identifies a job event
type EventType string

const (
	EventTypeJobSubmitted   EventType = "job.submitted"
	EventTypeJobStarted     EventType = "job.started"
	EventTypeJobCompleted   EventType = "job.completed"
	EventTypeJobFailed      EventType = "job.failed"
	EventTypeJobCancelled   EventType = "job.cancelled"
	EventTypeBatchStarted   EventType = "batch.started"
	EventTypeBatchCompleted EventType = "batch.completed"
	EventTypeBatchFailed    EventType = "batch.failed"
	EventTypeBatchMerged    EventType = "batch.merged"
)

// Event is a progress notification for one job
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	JobID     string         `json:"job_id"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}
