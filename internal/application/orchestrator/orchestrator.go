package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/aescanero/batchflow/internal/application/workers"
	"github.com/aescanero/batchflow/internal/batch"
	"github.com/aescanero/batchflow/internal/diag"
	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/internal/stage"
	"github.com/aescanero/batchflow/pkg/domain"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/ports"
)

// Executor runs tasks; workers.Pool is the standard implementation
type Executor interface {
	Submit(ctx context.Context, task workers.Task) (*workers.Future, error)
}

// JobContext carries everything that identifies one job run. A nil Executor
// gives the job a dedicated pool; a nil Report is created from ID.
type JobContext struct {
	ID         string
	Executor   Executor
	Report     *diag.Report
	Parameters *params.Params
}

// Orchestrator executes a workflow over batches of a store
type Orchestrator struct {
	job       JobContext
	resolver  stage.Resolver
	validator *Validator
	eventBus  ports.EventBus
	metrics   ports.MetricsCollector
	policy    batch.EmptySelectionPolicy
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

func WithValidator(v *Validator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

// WithEventBus publishes batch events on domain.TopicJobEvents
func WithEventBus(bus ports.EventBus) Option {
	return func(o *Orchestrator) { o.eventBus = bus }
}

func WithMetrics(m ports.MetricsCollector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithEmptySelectionPolicy overrides batch.RunOnce
func WithEmptySelectionPolicy(p batch.EmptySelectionPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// New creates an orchestrator for one job
func New(job JobContext, resolver stage.Resolver, opts ...Option) *Orchestrator {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Report == nil {
		job.Report = diag.NewReport(job.ID, nil)
	}
	o := &Orchestrator{job: job, resolver: resolver}
	for _, opt := range opts {
		opt(o)
	}
	if o.validator == nil {
		o.validator = NewValidator(resolver)
	}
	return o
}

// JobID returns the id of the job this orchestrator runs
func (o *Orchestrator) JobID() string {
	return o.job.ID
}

type completion struct {
	index  int
	future *workers.Future
	err    error
}

// Execute runs wf over the elements of store matched by selection. It
// blocks until every batch is merged or failed, or ctx is done. The outcome
// is always returned; the error is nil, *CompositeJobError,
// *CancellationError or wraps ErrInvalidArgument.
func (o *Orchestrator) Execute(ctx context.Context, store *graph.Store, selection batch.Selection, wf domain.Workflow, batchSize, maxConcurrency int) (*JobOutcome, error) {
	start := time.Now()
	report := o.job.Report
	logger := report.Logger()
	outcome := &JobOutcome{JobID: o.job.ID, Status: domain.ExecutionStatusRunning}
	defer func() { outcome.Duration = time.Since(start) }()

	if err := o.validate(store, &wf, batchSize, maxConcurrency); err != nil {
		outcome.Status = domain.ExecutionStatusFailed
		return outcome, err
	}

	batcher, err := batch.New(wf.RecordKind.ElementKind(), batchSize, batch.WithEmptySelectionPolicy(o.policy))
	if err != nil {
		outcome.Status = domain.ExecutionStatusFailed
		return outcome, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	snapshot := store.Snapshot()
	seq := batcher.Sequence(snapshot, selection)
	outcome.Batches = seq.Len()
	report.SetTotal(outcome.Batches)
	version := store.Version()

	logger.Info("job started",
		zap.Int("selected", seq.Selected()),
		zap.Int("batches", outcome.Batches),
		zap.Int("batch_size", batchSize),
		zap.Int("max_concurrency", maxConcurrency))

	executor := o.job.Executor
	if executor == nil {
		pool, err := workers.NewPool(maxConcurrency, o.metrics, logger, 0)
		if err != nil {
			outcome.Status = domain.ExecutionStatusFailed
			return outcome, err
		}
		if err := pool.Start(); err != nil {
			outcome.Status = domain.ExecutionStatusFailed
			return outcome, err
		}
		defer pool.Close()
		executor = pool
	}

	jobCtx, cancelJob := context.WithCancel(ctx)
	defer cancelJob()

	var (
		failures workers.Failures
		mu       sync.Mutex
		futures  []*workers.Future
	)
	completions := make(chan completion, outcome.Batches)
	sem := semaphore.NewWeighted(int64(maxConcurrency))
	worker := workers.NewWorker(o.resolver)

	go func() {
		for {
			b, ok := seq.Next()
			if !ok {
				return
			}
			if err := sem.Acquire(jobCtx, 1); err != nil {
				return
			}
			if jobCtx.Err() != nil {
				sem.Release(1)
				return
			}
			task := workers.BatchTask{
				Batch:    b,
				Template: snapshot,
				Workflow: wf,
				Global:   o.job.Parameters,
				Report:   report,
				Failures: &failures,
			}
			f, err := executor.Submit(jobCtx, func(ctx context.Context) (any, error) {
				o.publish(ctx, domain.EventTypeBatchStarted, map[string]any{"batch": task.Batch.Index})
				return worker.Execute(ctx, task)
			})
			if err != nil {
				sem.Release(1)
				completions <- completion{index: b.Index, err: err}
				continue
			}
			mu.Lock()
			futures = append(futures, f)
			mu.Unlock()
			go func(index int) {
				<-f.Done()
				sem.Release(1)
				completions <- completion{index: index, future: f}
			}(b.Index)
		}
	}()

	cancel := func() (*JobOutcome, error) {
		cancelJob()
		mu.Lock()
		for _, f := range futures {
			f.Cancel()
		}
		mu.Unlock()
		return o.cancelled(ctx, store, outcome, &failures)
	}

	for received := 0; received < outcome.Batches; received++ {
		var c completion
		select {
		case <-ctx.Done():
			return cancel()
		case c = <-completions:
		}
		if ctx.Err() != nil {
			return cancel()
		}

		res, err := c.result()
		if err != nil {
			logger.Warn("batch did not run", zap.Int("batch", c.index), zap.Error(err))
			failures.Record(c.index, fmt.Errorf("batch %d: %w", c.index, err))
			outcome.Failed++
			o.publish(ctx, domain.EventTypeBatchFailed, map[string]any{"batch": c.index, "error": err.Error()})
			continue
		}

		status := domain.ExecutionStatusCompleted
		if res.Failed {
			status = domain.ExecutionStatusFailed
			outcome.Failed++
			o.publish(ctx, domain.EventTypeBatchFailed, map[string]any{"batch": res.Batch})
		} else {
			o.publish(ctx, domain.EventTypeBatchCompleted, map[string]any{"batch": res.Batch})
		}
		if o.metrics != nil {
			o.metrics.RecordBatchExecuted(string(status), res.Elapsed)
		}

		if res.Forward == nil {
			continue
		}
		mergeStart := time.Now()
		stats, err := mergeBack(ctx, store, res)
		if err != nil {
			if ctx.Err() != nil {
				return cancel()
			}
			logger.Error("merge failed", zap.Int("batch", res.Batch), zap.Error(err))
			failures.Record(res.Batch, err)
			if !res.Failed {
				outcome.Failed++
			}
			continue
		}
		if o.metrics != nil {
			o.metrics.RecordMerge(time.Since(mergeStart))
		}
		outcome.Merged++
		report.BatchMerged()
		o.publish(ctx, domain.EventTypeBatchMerged, map[string]any{
			"batch":             res.Batch,
			"nodes_created":     stats.NodesCreated,
			"nodes_updated":     stats.NodesUpdated,
			"relations_created": stats.RelationsCreated,
			"relations_updated": stats.RelationsUpdated,
		})
	}

	if store.Version() != version {
		fr, err := store.Finalize(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return cancel()
			}
			failures.Add(fmt.Errorf("finalize: %w", err))
		}
		outcome.Finalize = fr
	}

	outcome.Failures = failures.Errors()
	outcome.Messages = report.Messages()
	if len(outcome.Failures) > 0 {
		outcome.Status = domain.ExecutionStatusFailed
		logger.Warn("job finished with failures",
			zap.Int("failures", len(outcome.Failures)),
			zap.Int("merged", outcome.Merged))
		return outcome, &CompositeJobError{Errors: outcome.Failures}
	}

	outcome.Status = domain.ExecutionStatusCompleted
	logger.Info("job completed",
		zap.Int("batches", outcome.Batches),
		zap.Int("merged", outcome.Merged),
		zap.Duration("duration", time.Since(start)))
	return outcome, nil
}

// cancelled finalizes what was merged before cancellation and reports it
func (o *Orchestrator) cancelled(ctx context.Context, store *graph.Store, outcome *JobOutcome, failures *workers.Failures) (*JobOutcome, error) {
	if outcome.Merged > 0 {
		fr, err := store.Finalize(context.WithoutCancel(ctx))
		if err != nil {
			failures.Add(fmt.Errorf("finalize: %w", err))
		}
		outcome.Finalize = fr
	}
	outcome.Status = domain.ExecutionStatusCancelled
	outcome.Failures = failures.Errors()
	outcome.Messages = o.job.Report.Messages()

	o.job.Report.Logger().Warn("job cancelled",
		zap.Int("merged", outcome.Merged),
		zap.Int("batches", outcome.Batches),
		zap.Error(ctx.Err()))
	return outcome, &CancellationError{JobID: o.job.ID, Merged: outcome.Merged, Cause: ctx.Err()}
}

func (o *Orchestrator) validate(store *graph.Store, wf *domain.Workflow, batchSize, maxConcurrency int) error {
	if store == nil {
		return fmt.Errorf("%w: store is nil", ErrInvalidArgument)
	}
	if batchSize < 1 {
		return fmt.Errorf("%w: batch size must be at least 1, got %d", ErrInvalidArgument, batchSize)
	}
	if maxConcurrency < 1 {
		return fmt.Errorf("%w: max concurrency must be at least 1, got %d", ErrInvalidArgument, maxConcurrency)
	}
	if err := o.validator.Validate(wf); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, t domain.EventType, data map[string]any) {
	if o.eventBus == nil {
		return
	}
	ev := domain.Event{
		ID:        uuid.NewString(),
		Type:      t,
		JobID:     o.job.ID,
		Timestamp: time.Now(),
		Data:      data,
	}
	if err := o.eventBus.Publish(context.WithoutCancel(ctx), domain.TopicJobEvents, ev); err != nil {
		o.job.Report.Logger().Debug("failed to publish event",
			zap.String("event_type", string(t)),
			zap.Error(err))
	}
}

func (c completion) result() (*workers.Result, error) {
	if c.err != nil {
		return nil, c.err
	}
	v, err := c.future.Result()
	if err != nil {
		return nil, err
	}
	res, ok := v.(*workers.Result)
	if !ok || res == nil {
		return nil, errors.New("worker returned no result")
	}
	return res, nil
}
