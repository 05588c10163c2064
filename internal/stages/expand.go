package stages

import (
	"context"
	"fmt"

	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

// Expand links count new children from every node. Children are named
// after their parent and the relation carries type=relation_type.
type Expand struct{}

func (e *Expand) Name() string { return ExpandID }

func (e *Expand) Defaults() *params.Params {
	return params.New("count", 1, "name_attribute", "name", "relation_type", "expansion")
}

func (e *Expand) Read(_ context.Context, view graph.ReadView, _ *params.Params) (*record.RecordSet, error) {
	return record.Nodes(view, view.NodeIDs()), nil
}

func (e *Expand) Compute(ctx context.Context, rs *record.RecordSet, p *params.Params) (*record.RecordSet, error) {
	count, err := p.Int("count", 1)
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", count)
	}
	nameAttr := p.String("name_attribute", "name")
	relType := p.String("relation_type", "expansion")

	out := record.NewRecordSet()
	for _, row := range rs.Rows() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, ok := row.Get(record.Key(record.Source, record.ID))
		if !ok {
			continue
		}
		parent := id
		if v, ok := row.Get(record.TypedKey(record.Source, nameAttr, graph.TypeString)); ok {
			parent = v
		}
		for k := 1; k <= count; k++ {
			out.Add()
			i := out.Len() - 1
			out.Set(i, record.Key(record.Source, record.ID), id)
			out.Set(i, record.TypedKey(record.Destination, nameAttr, graph.TypeString), fmt.Sprintf("%s/%d", parent, k))
			out.Set(i, record.TypedKey(record.Relation, "type", graph.TypeString), relType)
		}
	}
	return out, nil
}

func (e *Expand) Apply(_ context.Context, rs *record.RecordSet, w graph.WriteView, _ *params.Params) error {
	_, err := record.AddToGraph(w, rs, record.IdentityMaps(w))
	return err
}
