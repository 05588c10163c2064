package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aescanero/batchflow/pkg/domain"
)

// InMemoryStateStorage implements StateStorage using an in-memory map.
// States are copied on the way in and out. TTLs are ignored.
type InMemoryStateStorage struct {
	states map[string]*domain.JobState
	mu     sync.RWMutex
}

// NewInMemoryStateStorage creates a new in-memory state storage
func NewInMemoryStateStorage() *InMemoryStateStorage {
	return &InMemoryStateStorage{
		states: make(map[string]*domain.JobState),
	}
}

// SaveState stores a copy of state
func (s *InMemoryStateStorage) SaveState(ctx context.Context, state *domain.JobState) error {
	if state == nil || state.JobID == "" {
		return fmt.Errorf("invalid state: job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[state.JobID] = copyState(state)
	return nil
}

// GetState returns a copy of the stored state
func (s *InMemoryStateStorage) GetState(ctx context.Context, jobID string) (*domain.JobState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	return copyState(state), nil
}

// DeleteState removes a job state
func (s *InMemoryStateStorage) DeleteState(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.states, jobID)
	return nil
}

// ListStates returns every state, oldest submission first
func (s *InMemoryStateStorage) ListStates(ctx context.Context) ([]*domain.JobState, error) {
	s.mu.RLock()
	out := make([]*domain.JobState, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, copyState(st))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

// SetTTL is a no-op for in-memory storage
func (s *InMemoryStateStorage) SetTTL(ctx context.Context, jobID string, ttl time.Duration) error {
	return nil
}

func copyState(st *domain.JobState) *domain.JobState {
	c := *st
	c.Failures = append([]string(nil), st.Failures...)
	c.Messages = append([]string(nil), st.Messages...)
	c.Spec.Workflow.Stages = append([]string(nil), st.Spec.Workflow.Stages...)
	c.Spec.Selection.IDs = append([]int(nil), st.Spec.Selection.IDs...)
	return &c
}
