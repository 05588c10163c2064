package orchestrator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aescanero/batchflow/pkg/domain"
	"github.com/aescanero/batchflow/pkg/graph"
)

// ErrInvalidArgument is returned for a batch size or concurrency below one
var ErrInvalidArgument = errors.New("invalid argument")

// JobOutcome summarizes a finished job
type JobOutcome struct {
	JobID    string
	Status   domain.ExecutionStatus
	Batches  int
	Merged   int
	Failed   int
	Failures []error
	Finalize graph.FinalizeReport
	Messages []string
	Duration time.Duration
}

// Succeeded reports whether every batch ran without failure
func (o *JobOutcome) Succeeded() bool {
	return o.Status == domain.ExecutionStatusCompleted && len(o.Failures) == 0
}

func (o *JobOutcome) FailureCount() int {
	return len(o.Failures)
}

// Message is a human-readable summary of the outcome
func (o *JobOutcome) Message() string {
	switch {
	case o.Status == domain.ExecutionStatusCancelled:
		return fmt.Sprintf("job cancelled after merging %d of %d batches", o.Merged, o.Batches)
	case len(o.Failures) > 0:
		return compositeMessage(o.Failures)
	default:
		return fmt.Sprintf("%d batches processed, %d merged", o.Batches, o.Merged)
	}
}

// CompositeJobError is returned when at least one batch failed. The store
// keeps every batch that was merged.
type CompositeJobError struct {
	Errors []error
}

func (e *CompositeJobError) Error() string {
	return compositeMessage(e.Errors)
}

func (e *CompositeJobError) Unwrap() []error {
	return e.Errors
}

func compositeMessage(errs []error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d workers failed.", len(errs))
	for _, err := range errs {
		b.WriteString("\n")
		b.WriteString(err.Error())
	}
	return b.String()
}

// CancellationError is returned when the caller cancelled the job. Batches
// merged before cancellation stay in the store.
type CancellationError struct {
	JobID  string
	Merged int
	Cause  error
}

func (e *CancellationError) Error() string {
	return fmt.Sprintf("job %s cancelled after %d merged batches: %v", e.JobID, e.Merged, e.Cause)
}

func (e *CancellationError) Unwrap() error {
	return e.Cause
}
