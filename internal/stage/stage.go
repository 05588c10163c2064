package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

var (
	// ErrAbandoned is returned when the caller stopped waiting for a compute
	// phase. The computation may still be running.
	ErrAbandoned = errors.New("compute abandoned")
	// ErrUnknownStage is returned when a stage id cannot be resolved
	ErrUnknownStage = errors.New("unknown stage")
)

// Stage is a resolvable read/compute/apply unit
type Stage interface {
	Name() string
	Read(ctx context.Context, view graph.ReadView, p *params.Params) (*record.RecordSet, error)
	Compute(ctx context.Context, rs *record.RecordSet, p *params.Params) (*record.RecordSet, error)
	Apply(ctx context.Context, rs *record.RecordSet, w graph.WriteView, p *params.Params) error
}

// Defaulter is implemented by stages that declare default parameters
type Defaulter interface {
	Defaults() *params.Params
}

// Validating is implemented by stages that check their input before COMPUTE
// and their result before APPLY
type Validating interface {
	ValidateCompute(ctx context.Context, rs *record.RecordSet, p *params.Params) error
	ValidateApply(ctx context.Context, rs *record.RecordSet, view graph.ReadView, p *params.Params) error
}

// Phase names a lifecycle step
type Phase string

const (
	PhaseRead     Phase = "read"
	PhaseValidate Phase = "validate"
	PhaseCompute  Phase = "compute"
	PhaseApply    Phase = "apply"
	PhaseResolve  Phase = "resolve"
)

// StageError attributes a failure to one stage of one batch
type StageError struct {
	Stage string
	Phase Phase
	Batch int
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("batch %d: stage %s failed during %s: %v", e.Batch, e.Stage, e.Phase, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Run drives s through its lifecycle against wc. Failures, panics included,
// are returned as *StageError. When ctx is cancelled Run returns an error
// matching ctx.Err() that is not a StageError.
func Run(ctx context.Context, s Stage, wc graph.WriteView, p *params.Params, batch int) error {
	fail := func(phase Phase, err error) error {
		return &StageError{Stage: s.Name(), Phase: phase, Batch: batch, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	rs, err := call(func() (*record.RecordSet, error) { return s.Read(ctx, wc, p) })
	if err != nil {
		return fail(PhaseRead, err)
	}

	v, validating := s.(Validating)
	if validating {
		if _, err := call(func() (*record.RecordSet, error) { return nil, v.ValidateCompute(ctx, rs, p) }); err != nil {
			return fail(PhaseValidate, err)
		}
	}

	result, err := Supervise(ctx, func(ctx context.Context) (*record.RecordSet, error) {
		return s.Compute(ctx, rs, p)
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return fail(PhaseCompute, err)
	}

	if validating {
		if _, err := call(func() (*record.RecordSet, error) { return nil, v.ValidateApply(ctx, result, wc, p) }); err != nil {
			return fail(PhaseValidate, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := call(func() (*record.RecordSet, error) { return nil, s.Apply(ctx, result, wc, p) }); err != nil {
		return fail(PhaseApply, err)
	}
	return nil
}

func call(fn func() (*record.RecordSet, error)) (rs *record.RecordSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Supervise runs fn on its own goroutine and waits for it or for ctx. On
// cancellation it returns at once with an error wrapping ErrAbandoned and
// ctx.Err(); fn keeps running until it returns on its own and its result is
// dropped.
func Supervise[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		var o outcome
		defer func() {
			if r := recover(); r != nil {
				o.err = fmt.Errorf("panic: %v", r)
			}
			done <- o
		}()
		o.v, o.err = fn(ctx)
	}()

	select {
	case o := <-done:
		return o.v, o.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", ErrAbandoned, ctx.Err())
	}
}
