package stage

import (
	"context"

	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

// Func adapts plain functions to Stage. A nil ReadFn yields an empty record
// set, a nil ComputeFn passes its input through and a nil ApplyFn does nothing.
type Func struct {
	ID        string
	ReadFn    func(ctx context.Context, view graph.ReadView, p *params.Params) (*record.RecordSet, error)
	ComputeFn func(ctx context.Context, rs *record.RecordSet, p *params.Params) (*record.RecordSet, error)
	ApplyFn   func(ctx context.Context, rs *record.RecordSet, w graph.WriteView, p *params.Params) error
	Params    *params.Params
}

func (f *Func) Name() string { return f.ID }

func (f *Func) Read(ctx context.Context, view graph.ReadView, p *params.Params) (*record.RecordSet, error) {
	if f.ReadFn == nil {
		return record.NewRecordSet(), nil
	}
	return f.ReadFn(ctx, view, p)
}

func (f *Func) Compute(ctx context.Context, rs *record.RecordSet, p *params.Params) (*record.RecordSet, error) {
	if f.ComputeFn == nil {
		return rs, nil
	}
	return f.ComputeFn(ctx, rs, p)
}

func (f *Func) Apply(ctx context.Context, rs *record.RecordSet, w graph.WriteView, p *params.Params) error {
	if f.ApplyFn == nil {
		return nil
	}
	return f.ApplyFn(ctx, rs, w, p)
}

func (f *Func) Defaults() *params.Params {
	return f.Params
}
