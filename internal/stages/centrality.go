package stages

import (
	"context"
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

// Centrality stores the PageRank of every node, computed over the nodes and
// relations of the batch. Undirected relations count in both directions.
type Centrality struct{}

func (c *Centrality) Name() string { return CentralityID }

func (c *Centrality) Defaults() *params.Params {
	return params.New("attribute", "pagerank", "damping", 0.85, "tolerance", 1e-6)
}

func (c *Centrality) Read(_ context.Context, view graph.ReadView, _ *params.Params) (*record.RecordSet, error) {
	return record.All(view), nil
}

func (c *Centrality) ValidateCompute(_ context.Context, _ *record.RecordSet, p *params.Params) error {
	d, err := p.Float("damping", 0.85)
	if err != nil {
		return err
	}
	if d <= 0 || d >= 1 {
		return fmt.Errorf("damping must be in (0, 1), got %v", d)
	}
	tol, err := p.Float("tolerance", 1e-6)
	if err != nil {
		return err
	}
	if tol <= 0 {
		return fmt.Errorf("tolerance must be positive, got %v", tol)
	}
	return nil
}

func (c *Centrality) Compute(_ context.Context, rs *record.RecordSet, p *params.Params) (*record.RecordSet, error) {
	damping, err := p.Float("damping", 0.85)
	if err != nil {
		return nil, err
	}
	tolerance, err := p.Float("tolerance", 1e-6)
	if err != nil {
		return nil, err
	}

	g := simple.NewDirectedGraph()
	ensure := func(id string) (int64, error) {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("node id %q: %w", id, err)
		}
		if g.Node(n) == nil {
			g.AddNode(simple.Node(n))
		}
		return n, nil
	}
	srcKey := record.Key(record.Source, record.ID)
	dstKey := record.Key(record.Destination, record.ID)

	for _, row := range rs.Rows() {
		src, ok := row.Get(srcKey)
		if !ok {
			continue
		}
		from, err := ensure(src)
		if err != nil {
			return nil, err
		}
		dst, ok := row.Get(dstKey)
		if !ok {
			continue
		}
		to, err := ensure(dst)
		if err != nil {
			return nil, err
		}
		// simple graphs reject self loops
		if from == to {
			continue
		}
		g.SetEdge(g.NewEdge(g.Node(from), g.Node(to)))
		if v, _ := row.Get(record.Key(record.Relation, record.Directed)); v == "false" {
			g.SetEdge(g.NewEdge(g.Node(to), g.Node(from)))
		}
	}

	out := record.NewRecordSet()
	if g.Nodes().Len() == 0 {
		return out, nil
	}
	key := record.TypedKey(record.Source, p.String("attribute", "pagerank"), graph.TypeFloat)
	for id, score := range network.PageRank(g, damping, tolerance) {
		out.Add()
		i := out.Len() - 1
		out.Set(i, srcKey, strconv.FormatInt(id, 10))
		out.Set(i, key, strconv.FormatFloat(score, 'g', -1, 64))
	}
	return out, nil
}

func (c *Centrality) ValidateApply(context.Context, *record.RecordSet, graph.ReadView, *params.Params) error {
	return nil
}

func (c *Centrality) Apply(_ context.Context, rs *record.RecordSet, w graph.WriteView, _ *params.Params) error {
	_, err := record.AddToGraph(w, rs, record.IdentityMaps(w))
	return err
}
