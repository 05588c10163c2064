package stages

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aescanero/batchflow/internal/diag"
	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

// Notify adds a message to the job report. With "attribute" set it counts
// the nodes whose attribute equals "value" and reports when none match.
type Notify struct{}

func (n *Notify) Name() string { return NotifyID }

func (n *Notify) Defaults() *params.Params {
	return params.New("message", "", "attribute", "", "value", "")
}

func (n *Notify) Read(_ context.Context, view graph.ReadView, p *params.Params) (*record.RecordSet, error) {
	attr := p.String("attribute", "")
	if attr == "" {
		return record.NewRecordSet(), nil
	}
	want := p.String("value", "")

	var matched []int
	for _, id := range view.NodeIDs() {
		v, ok := view.Value(graph.KindNode, id, attr)
		if ok && graph.FormatValue(v) == want {
			matched = append(matched, id)
		}
	}
	return record.Nodes(view, matched), nil
}

func (n *Notify) Compute(ctx context.Context, rs *record.RecordSet, p *params.Params) (*record.RecordSet, error) {
	report := diag.FromContext(ctx)
	if msg := p.String("message", ""); msg != "" {
		report.Note(msg)
	}
	if attr := p.String("attribute", ""); attr != "" && rs.Len() == 0 {
		report.Note(fmt.Sprintf("no matches for %s=%s", attr, p.String("value", "")),
			zap.String("stage", NotifyID))
	}
	return rs, nil
}

func (n *Notify) Apply(context.Context, *record.RecordSet, graph.WriteView, *params.Params) error {
	return nil
}
