package stages

import (
	"context"
	"errors"

	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/internal/stage"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

// Fail returns an error in the phase named by the "phase" parameter. With
// "when_attribute" set it only fails batches holding a node that has it.
type Fail struct {
	armed bool
}

func (f *Fail) Name() string { return FailID }

func (f *Fail) Defaults() *params.Params {
	return params.New("phase", string(stage.PhaseCompute), "message", "stage failed on purpose", "when_attribute", "")
}

func (f *Fail) Read(_ context.Context, view graph.ReadView, p *params.Params) (*record.RecordSet, error) {
	f.armed = true
	if attr := p.String("when_attribute", ""); attr != "" {
		f.armed = false
		for _, id := range view.NodeIDs() {
			if _, ok := view.Value(graph.KindNode, id, attr); ok {
				f.armed = true
				break
			}
		}
	}
	return record.Nodes(view, view.NodeIDs()), f.failIn(stage.PhaseRead, p)
}

func (f *Fail) Compute(_ context.Context, rs *record.RecordSet, p *params.Params) (*record.RecordSet, error) {
	if err := f.failIn(stage.PhaseCompute, p); err != nil {
		return nil, err
	}
	return rs, nil
}

func (f *Fail) Apply(_ context.Context, _ *record.RecordSet, _ graph.WriteView, p *params.Params) error {
	return f.failIn(stage.PhaseApply, p)
}

func (f *Fail) failIn(phase stage.Phase, p *params.Params) error {
	if !f.armed || stage.Phase(p.String("phase", "")) != phase {
		return nil
	}
	return errors.New(p.String("message", "stage failed on purpose"))
}
