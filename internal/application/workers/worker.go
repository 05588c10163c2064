package workers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/batchflow/internal/batch"
	"github.com/aescanero/batchflow/internal/diag"
	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/internal/stage"
	"github.com/aescanero/batchflow/pkg/domain"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

// stage name used for failures while loading a batch into its working copy
const materializeStage = "materialize"

// BatchTask is everything a Worker needs to process one batch
type BatchTask struct {
	Batch *batch.Batch
	// Template provides the schema of the working copy
	Template *graph.Graph
	Workflow domain.Workflow
	Global   *params.Params
	Report   *diag.Report
	Failures *Failures
}

// Result is what a Worker forwards to merge-back
type Result struct {
	Batch int
	// Forward is the working copy to merge, nil when nothing changed
	Forward *graph.Graph
	// Base is the working copy as loaded, before any stage ran
	Base *graph.Graph
	Maps    *record.IDMaps
	Failed  bool
	Elapsed time.Duration
}

// Worker executes a workflow against one batch in isolation
type Worker struct {
	resolver stage.Resolver
}

// NewWorker creates a worker resolving stages through resolver
func NewWorker(resolver stage.Resolver) *Worker {
	return &Worker{resolver: resolver}
}

// Execute runs t. A failed batch records exactly one entry in t.Failures,
// joining the error stage's failure when it fails too, and sets
// Result.Failed. A batch that cannot be loaded runs the error stage on an
// empty copy. The returned error is only set when ctx was cancelled, in
// which case nothing is forwarded.
func (w *Worker) Execute(ctx context.Context, t BatchTask) (*Result, error) {
	start := time.Now()
	report := t.Report
	if report == nil {
		report = diag.FromContext(ctx)
	}
	ctx = diag.WithReport(ctx, report)
	logger := report.ForBatch(t.Batch.Index)

	report.BatchStarted()
	res := &Result{Batch: t.Batch.Index, Maps: t.Batch.Maps}
	defer func() { res.Elapsed = time.Since(start) }()

	wc := t.Template.NewLike()
	var failure error
	if _, err := record.AddToGraph(wc, t.Batch.Records, t.Batch.Maps); err != nil {
		logger.Warn("batch could not be loaded", zap.Error(err))
		failure = &stage.StageError{Stage: materializeStage, Phase: stage.PhaseRead, Batch: t.Batch.Index, Err: err}
		wc = t.Template.NewLike()
		res.Maps = record.NewIDMaps()
	}
	baseline := wc.Mutations()
	base := wc.Clone()

	if failure == nil {
		for _, id := range t.Workflow.Stages {
			err := w.runStage(ctx, wc, id, t)
			if ctx.Err() != nil {
				logger.Debug("batch abandoned", zap.String("stage", id))
				return nil, ctx.Err()
			}
			if err != nil {
				logger.Warn("stage failed", zap.String("stage", id), zap.Error(err))
				failure = err
				break
			}
		}
	}

	forward := wc
	if failure != nil {
		report.BatchFailed()
		res.Failed = true

		if !t.Workflow.KeepPartialResultsOnError {
			forward = base.Clone()
		}
		if t.Workflow.ErrorStage != "" {
			err := w.runStage(ctx, forward, t.Workflow.ErrorStage, t)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err != nil {
				logger.Warn("error stage failed", zap.String("stage", t.Workflow.ErrorStage), zap.Error(err))
				failure = errors.Join(failure, err)
			}
		}
		t.Failures.Record(t.Batch.Index, failure)
	}

	report.BatchDone()
	if forward.Mutations() != baseline {
		res.Forward = forward
		res.Base = base
	}
	return res, nil
}

func (w *Worker) runStage(ctx context.Context, wc *graph.Graph, id string, t BatchTask) error {
	s, err := w.resolver.Resolve(id)
	if err != nil {
		return &stage.StageError{Stage: id, Phase: stage.PhaseResolve, Batch: t.Batch.Index, Err: err}
	}
	p := params.Merge(stage.DefaultsOf(s), t.Global)
	return stage.Run(ctx, s, wc, p, t.Batch.Index)
}
