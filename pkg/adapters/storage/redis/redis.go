package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aescanero/batchflow/pkg/domain"
)

const keyPrefix = "batchflow:job:"

// StateStorage implements StateStorage using Redis
type StateStorage struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStateStorage creates a new Redis state storage. States expire after ttl;
// zero keeps them forever.
func NewStateStorage(client *redis.Client, ttl time.Duration, logger *zap.Logger) *StateStorage {
	return &StateStorage{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SaveState saves a job state with the configured TTL
func (s *StateStorage) SaveState(ctx context.Context, state *domain.JobState) error {
	if state == nil || state.JobID == "" {
		return fmt.Errorf("invalid state: job id is required")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.client.Set(ctx, getStateKey(state.JobID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	s.logger.Debug("state saved",
		zap.String("job_id", state.JobID),
		zap.String("status", string(state.Status)))

	return nil
}

// GetState retrieves a job state
func (s *StateStorage) GetState(ctx context.Context, jobID string) (*domain.JobState, error) {
	data, err := s.client.Get(ctx, getStateKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	return decodeState(data)
}

// DeleteState deletes a job state
func (s *StateStorage) DeleteState(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, getStateKey(jobID)).Err(); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}

	s.logger.Debug("state deleted", zap.String("job_id", jobID))
	return nil
}

// ListStates returns every stored job state, oldest submission first
func (s *StateStorage) ListStates(ctx context.Context) ([]*domain.JobState, error) {
	var cursor uint64
	var keys []string

	for {
		batch, next, err := s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	states := make([]*domain.JobState, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			// expired between SCAN and GET
			continue
		}
		st, err := decodeState(data)
		if err != nil {
			s.logger.Warn("skipping unreadable state",
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		states = append(states, st)
	}

	sort.Slice(states, func(i, j int) bool { return states[i].SubmittedAt.Before(states[j].SubmittedAt) })
	return states, nil
}

// SetTTL sets a time-to-live for a job state
func (s *StateStorage) SetTTL(ctx context.Context, jobID string, ttl time.Duration) error {
	if err := s.client.Expire(ctx, getStateKey(jobID), ttl).Err(); err != nil {
		return fmt.Errorf("failed to set TTL: %w", err)
	}
	return nil
}

func decodeState(data []byte) (*domain.JobState, error) {
	var st domain.JobState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &st, nil
}

func getStateKey(jobID string) string {
	return keyPrefix + jobID
}
