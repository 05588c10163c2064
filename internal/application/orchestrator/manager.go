package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aescanero/batchflow/internal/batch"
	"github.com/aescanero/batchflow/internal/diag"
	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/internal/stage"
	"github.com/aescanero/batchflow/pkg/adapters/metrics/nop"
	"github.com/aescanero/batchflow/pkg/domain"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/ports"
)

// ErrJobTerminal is returned when cancelling a job that already finished
var ErrJobTerminal = errors.New("job already in terminal state")

// Defaults fill the batch size and concurrency of submissions that leave
// them unset
type Defaults struct {
	BatchSize      int
	MaxConcurrency int
}

// Manager runs jobs asynchronously against one shared store
type Manager struct {
	store     *graph.Store
	resolver  stage.Resolver
	executor  Executor
	eventBus  ports.EventBus
	storage   ports.StateStorage
	metrics   ports.MetricsCollector
	validator *Validator
	logger    *zap.Logger

	// Track active executions
	executions sync.Map // map[string]*executionContext
	active     atomic.Int64
	wg         sync.WaitGroup

	jobTimeout time.Duration
	defaults   Defaults
}

// executionContext holds state for a single running job
type executionContext struct {
	jobID      string
	startedAt  time.Time
	report     *diag.Report
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// NewManager creates a manager. A nil executor gives every job its own pool;
// a nil metrics collector discards metrics.
func NewManager(
	store *graph.Store,
	resolver stage.Resolver,
	executor Executor,
	eventBus ports.EventBus,
	storage ports.StateStorage,
	metrics ports.MetricsCollector,
	validator *Validator,
	logger *zap.Logger,
	jobTimeout time.Duration,
	defaults Defaults,
) *Manager {
	if validator == nil {
		validator = NewValidator(resolver)
	}
	if metrics == nil {
		metrics = nop.Collector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:      store,
		resolver:   resolver,
		executor:   executor,
		eventBus:   eventBus,
		storage:    storage,
		metrics:    metrics,
		validator:  validator,
		logger:     logger,
		jobTimeout: jobTimeout,
		defaults:   defaults,
	}
}

// Store returns the graph the manager runs jobs against
func (m *Manager) Store() *graph.Store {
	return m.store
}

// SubmitJob validates spec and starts it in the background
func (m *Manager) SubmitJob(ctx context.Context, spec domain.JobSpec) (string, error) {
	if spec.BatchSize == 0 {
		spec.BatchSize = m.defaults.BatchSize
	}
	if spec.MaxConcurrency == 0 {
		spec.MaxConcurrency = m.defaults.MaxConcurrency
	}
	if spec.BatchSize < 1 || spec.MaxConcurrency < 1 {
		m.metrics.RecordJobSubmitted("rejected")
		return "", fmt.Errorf("%w: batch size and max concurrency must be at least 1", ErrInvalidArgument)
	}
	if err := m.validator.ValidateJob(&spec); err != nil {
		m.logger.Warn("job validation failed", zap.Error(err))
		m.metrics.RecordJobSubmitted("rejected")
		return "", fmt.Errorf("validation failed: %w", err)
	}

	jobID := uuid.New().String()
	state := &domain.JobState{
		JobID:       jobID,
		Spec:        spec,
		Status:      domain.ExecutionStatusSubmitted,
		SubmittedAt: time.Now(),
	}

	if err := m.storage.SaveState(ctx, state); err != nil {
		m.logger.Error("failed to save initial state",
			zap.String("job_id", jobID),
			zap.Error(err))
		return "", fmt.Errorf("failed to save state: %w", err)
	}

	m.publish(ctx, jobID, domain.EventTypeJobSubmitted, map[string]any{
		"stages":     spec.Workflow.Stages,
		"batch_size": spec.BatchSize,
	})

	var execCtx context.Context
	var cancel context.CancelFunc
	if m.jobTimeout > 0 {
		execCtx, cancel = context.WithTimeout(context.Background(), m.jobTimeout)
	} else {
		execCtx, cancel = context.WithCancel(context.Background())
	}
	exec := &executionContext{
		jobID:      jobID,
		startedAt:  time.Now(),
		report:     diag.NewReport(jobID, m.logger),
		cancelFunc: cancel,
		done:       make(chan struct{}),
	}
	m.executions.Store(jobID, exec)

	m.metrics.RecordJobSubmitted(string(domain.ExecutionStatusSubmitted))
	m.logger.Info("job submitted",
		zap.String("job_id", jobID),
		zap.Strings("stages", spec.Workflow.Stages))

	m.wg.Add(1)
	go m.run(execCtx, exec, state)

	return jobID, nil
}

// run executes a submitted job and records its outcome
func (m *Manager) run(ctx context.Context, exec *executionContext, state *domain.JobState) {
	defer m.wg.Done()
	defer close(exec.done)
	defer exec.cancelFunc()
	defer m.executions.Delete(exec.jobID)

	m.metrics.SetActiveJobs(int(m.active.Add(1)))
	defer func() { m.metrics.SetActiveJobs(int(m.active.Add(-1))) }()

	started := time.Now()
	state.Status = domain.ExecutionStatusRunning
	state.StartedAt = &started
	m.saveState(state)
	m.publish(ctx, exec.jobID, domain.EventTypeJobStarted, nil)

	spec := state.Spec
	orch := New(
		JobContext{
			ID:         exec.jobID,
			Executor:   m.executor,
			Report:     exec.report,
			Parameters: params.FromMap(spec.Workflow.Parameters),
		},
		m.resolver,
		WithValidator(m.validator),
		WithEventBus(m.eventBus),
		WithMetrics(m.metrics),
	)
	outcome, err := orch.Execute(ctx, m.store, SelectionFor(spec.Selection), spec.Workflow, spec.BatchSize, spec.MaxConcurrency)

	completed := time.Now()
	state.CompletedAt = &completed
	state.Status = outcome.Status
	state.Progress = progressOf(exec.report)
	state.Messages = outcome.Messages
	state.Failures = make([]string, 0, len(outcome.Failures))
	for _, f := range outcome.Failures {
		state.Failures = append(state.Failures, f.Error())
	}
	if err != nil {
		state.Error = err.Error()
	}

	eventType := domain.EventTypeJobCompleted
	var cancelled *CancellationError
	switch {
	case errors.As(err, &cancelled) && errors.Is(err, context.DeadlineExceeded):
		m.logger.Warn("job timed out", zap.String("job_id", exec.jobID))
		state.Status = domain.ExecutionStatusFailed
		state.Error = "execution timeout"
		eventType = domain.EventTypeJobFailed
	case state.Status == domain.ExecutionStatusCancelled:
		eventType = domain.EventTypeJobCancelled
	case state.Status == domain.ExecutionStatusFailed:
		eventType = domain.EventTypeJobFailed
	}

	m.saveState(state)
	m.publish(context.Background(), exec.jobID, eventType, map[string]any{
		"merged":   outcome.Merged,
		"failed":   outcome.Failed,
		"batches":  outcome.Batches,
		"message":  outcome.Message(),
		"duration": outcome.Duration.String(),
	})
	m.metrics.RecordJobCompleted(string(state.Status), time.Since(exec.startedAt))

	m.logger.Info("job finished",
		zap.String("job_id", exec.jobID),
		zap.String("status", string(state.Status)),
		zap.Int("merged", outcome.Merged),
		zap.Int("failures", len(outcome.Failures)))
}

// GetStatus returns the state of a job, with live progress while it runs
func (m *Manager) GetStatus(ctx context.Context, jobID string) (*domain.JobState, error) {
	state, err := m.storage.GetState(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get state: %w", err)
	}
	if val, ok := m.executions.Load(jobID); ok && !state.Status.IsTerminal() {
		exec := val.(*executionContext)
		state.Progress = progressOf(exec.report)
		state.Messages = exec.report.Messages()
	}
	return state, nil
}

// ListJobs returns every stored job
func (m *Manager) ListJobs(ctx context.Context) ([]*domain.JobState, error) {
	states, err := m.storage.ListStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	return states, nil
}

// CancelJob cancels a running job. The job records its cancelled state when
// its orchestrator returns; use Wait to observe it.
func (m *Manager) CancelJob(ctx context.Context, jobID string) error {
	val, ok := m.executions.Load(jobID)
	if !ok {
		state, err := m.storage.GetState(ctx, jobID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrJobTerminal, state.Status)
	}

	val.(*executionContext).cancelFunc()
	m.logger.Info("job cancellation requested", zap.String("job_id", jobID))
	return nil
}

// Wait blocks until the job finishes or ctx is done and returns its state
func (m *Manager) Wait(ctx context.Context, jobID string) (*domain.JobState, error) {
	if val, ok := m.executions.Load(jobID); ok {
		select {
		case <-val.(*executionContext).done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.GetStatus(ctx, jobID)
}

// Shutdown cancels every running job and waits for them to record their state
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")

	m.executions.Range(func(key, value interface{}) bool {
		value.(*executionContext).cancelFunc()
		return true
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("orchestrator manager shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("manager shutdown: %w", ctx.Err())
	}
}

func (m *Manager) saveState(state *domain.JobState) {
	if err := m.storage.SaveState(context.Background(), state); err != nil {
		m.logger.Error("failed to save state",
			zap.String("job_id", state.JobID),
			zap.String("status", string(state.Status)),
			zap.Error(err))
	}
}

func (m *Manager) publish(ctx context.Context, jobID string, t domain.EventType, data map[string]any) {
	event := domain.Event{
		ID:        uuid.New().String(),
		Type:      t,
		JobID:     jobID,
		Timestamp: time.Now(),
		Data:      data,
	}
	if err := m.eventBus.Publish(context.WithoutCancel(ctx), domain.TopicJobEvents, event); err != nil {
		m.logger.Error("failed to publish event",
			zap.String("job_id", jobID),
			zap.String("event_type", string(t)),
			zap.Error(err))
	}
}

// SelectionFor converts a selection spec into a batch selection
func SelectionFor(spec domain.SelectionSpec) batch.Selection {
	switch {
	case spec.All:
		return batch.All()
	case len(spec.IDs) > 0:
		return batch.IDs(spec.IDs...)
	default:
		return batch.SelectedAttribute(spec.Attribute)
	}
}

func progressOf(r *diag.Report) domain.JobProgress {
	p := r.Progress()
	return domain.JobProgress{
		Total:     p.Total,
		Started:   p.Started,
		Completed: p.Completed,
		Failed:    p.Failed,
		Merged:    p.Merged,
	}
}
