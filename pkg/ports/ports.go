// Package ports declares the interfaces the application layer depends on.
// Implementations live under pkg/adapters.
package ports

import (
	"context"
	"time"

	"github.com/aescanero/batchflow/pkg/domain"
)

// EventHandler processes one event
type EventHandler func(ctx context.Context, event domain.Event) error

// EventBus publishes job events and delivers them to every subscriber
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	// Subscribe registers handler until ctx is done
	Subscribe(ctx context.Context, topic string, handler EventHandler) error
	Unsubscribe(ctx context.Context, topic string) error
	Close() error
}

// StateStorage persists job states
type StateStorage interface {
	SaveState(ctx context.Context, state *domain.JobState) error
	// GetState returns an error wrapping domain.ErrJobNotFound for unknown ids
	GetState(ctx context.Context, jobID string) (*domain.JobState, error)
	DeleteState(ctx context.Context, jobID string) error
	ListStates(ctx context.Context) ([]*domain.JobState, error)
	SetTTL(ctx context.Context, jobID string, ttl time.Duration) error
}

// MetricsCollector records engine metrics
type MetricsCollector interface {
	RecordJobSubmitted(status string)
	RecordJobCompleted(status string, duration time.Duration)
	RecordBatchExecuted(status string, duration time.Duration)
	RecordStageFailed(stage string)
	RecordMerge(duration time.Duration)
	SetActiveJobs(count int)
	SetQueueDepth(depth int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
}
