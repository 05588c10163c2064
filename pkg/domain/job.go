package domain

import (
	"errors"
	"time"
)

// ErrJobNotFound is returned when no state exists for a job id
var ErrJobNotFound = errors.New("job not found")

// ExecutionStatus is the lifecycle status of a job
type ExecutionStatus string

const (
	ExecutionStatusSubmitted ExecutionStatus = "submitted"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status is final
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	}
	return false
}

// JobProgress counts batches by lifecycle step
type JobProgress struct {
	Total     int64 `json:"total"`
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Merged    int64 `json:"merged"`
}

// JobState is the stored view of a job
type JobState struct {
	JobID       string          `json:"job_id"`
	Spec        JobSpec         `json:"spec"`
	Status      ExecutionStatus `json:"status"`
	Progress    JobProgress     `json:"progress"`
	Failures    []string        `json:"failures,omitempty"`
	Messages    []string        `json:"messages,omitempty"`
	Error       string          `json:"error,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}
