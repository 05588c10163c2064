package stages

import (
	"context"
	"errors"
	"strconv"

	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

// Tag sets attribute to value on every node of the working copy
type Tag struct{}

func (t *Tag) Name() string { return TagID }

func (t *Tag) Defaults() *params.Params {
	return params.New("attribute", "tag", "value", "tagged")
}

func (t *Tag) Read(_ context.Context, view graph.ReadView, _ *params.Params) (*record.RecordSet, error) {
	return record.Nodes(view, view.NodeIDs()), nil
}

func (t *Tag) ValidateCompute(_ context.Context, _ *record.RecordSet, p *params.Params) error {
	if p.String("attribute", "") == "" {
		return errors.New("attribute must not be empty")
	}
	return nil
}

func (t *Tag) Compute(_ context.Context, rs *record.RecordSet, p *params.Params) (*record.RecordSet, error) {
	key := record.Key(record.Source, p.String("attribute", ""))
	value := p.String("value", "")

	out := record.NewRecordSet()
	for _, row := range rs.Rows() {
		id, ok := row.Get(record.Key(record.Source, record.ID))
		if !ok {
			continue
		}
		out.Add()
		i := out.Len() - 1
		out.Set(i, record.Key(record.Source, record.ID), id)
		out.Set(i, key, value)
	}
	return out, nil
}

func (t *Tag) ValidateApply(_ context.Context, rs *record.RecordSet, view graph.ReadView, _ *params.Params) error {
	for _, row := range rs.Rows() {
		id, _ := row.Get(record.Key(record.Source, record.ID))
		n, err := strconv.Atoi(id)
		if err != nil || !view.HasNode(n) {
			return errors.New("tag result names a node outside the batch")
		}
	}
	return nil
}

func (t *Tag) Apply(_ context.Context, rs *record.RecordSet, w graph.WriteView, _ *params.Params) error {
	_, err := record.AddToGraph(w, rs, record.IdentityMaps(w))
	return err
}
