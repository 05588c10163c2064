package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

func drain(seq *Sequence) []*Batch {
	var out []*Batch
	for {
		b, ok := seq.Next()
		if !ok {
			return out
		}
		out = append(out, b)
	}
}

func TestNew_RejectsInvalidSize(t *testing.T) {
	_, err := New(graph.KindNode, 0)
	require.ErrorIs(t, err, ErrInvalidSize)

	_, err = New("edge", 1)
	require.Error(t, err)
}

func TestSequence_EmptySelection(t *testing.T) {
	g := graph.New(nil)
	g.AddNode()

	b, err := New(graph.KindNode, 10)
	require.NoError(t, err)
	batches := drain(b.Sequence(g, IDs()))
	require.Len(t, batches, 1)
	assert.True(t, batches[0].Empty())
	assert.Equal(t, 0, batches[0].Records.Len())

	skip, err := New(graph.KindNode, 10, WithEmptySelectionPolicy(Skip))
	require.NoError(t, err)
	assert.Empty(t, drain(skip.Sequence(g, IDs())))
}

func TestSequence_ResetRestarts(t *testing.T) {
	g := graph.New(nil)
	for i := 0; i < 5; i++ {
		g.AddNode()
	}
	b, err := New(graph.KindNode, 2)
	require.NoError(t, err)

	seq := b.Sequence(g, All())
	first := drain(seq)
	require.Len(t, first, 3)
	assert.Equal(t, 3, seq.Len())

	seq.Reset()
	second := drain(seq)
	require.Len(t, second, 3)
	for i := range first {
		assert.Equal(t, first[i].Elements, second[i].Elements)
		assert.NotSame(t, first[i].Maps, second[i].Maps)
	}
}

func TestSequence_RelationBatchesCarryEndpoints(t *testing.T) {
	g := graph.New(nil)
	a, c := g.AddNode(), g.AddNode()
	require.NoError(t, g.SetValue(graph.KindNode, a, "name", "a"))
	require.NoError(t, g.SetValue(graph.KindNode, c, "name", "c"))
	_, err := g.AddRelation(a, c, true)
	require.NoError(t, err)

	b, err := New(graph.KindRelation, 5)
	require.NoError(t, err)
	batches := drain(b.Sequence(g, All()))
	require.Len(t, batches, 1)

	row := batches[0].Records.Row(0)
	assert.Equal(t, "a", row["source.name<string>"])
	assert.Equal(t, "c", row["destination.name<string>"])
}

func TestSelectedAttribute(t *testing.T) {
	g := graph.New(nil)
	for i := 0; i < 4; i++ {
		id := g.AddNode()
		require.NoError(t, g.SetValue(graph.KindNode, id, DefaultSelectedAttribute, i%2 == 0))
	}
	b, err := New(graph.KindNode, 10)
	require.NoError(t, err)

	seq := b.Sequence(g, SelectedAttribute(""))
	assert.Equal(t, 2, seq.Selected())
	batches := drain(seq)
	require.Len(t, batches, 1)
	assert.Equal(t, []int{0, 2}, batches[0].Elements)
}

func TestSequence_Completeness(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := graph.New(nil)
		n := rapid.IntRange(0, 60).Draw(t, "nodes")
		for i := 0; i < n; i++ {
			g.AddNode()
		}
		if n > 0 {
			rels := rapid.IntRange(0, 80).Draw(t, "relations")
			for i := 0; i < rels; i++ {
				src := rapid.IntRange(0, n-1).Draw(t, "src")
				dst := rapid.IntRange(0, n-1).Draw(t, "dst")
				if _, err := g.AddRelation(src, dst, true); err != nil {
					t.Fatalf("add relation: %v", err)
				}
			}
		}
		kind := rapid.SampledFrom([]graph.ElementKind{graph.KindNode, graph.KindRelation}).Draw(t, "kind")
		size := rapid.IntRange(1, 25).Draw(t, "size")

		var candidates []int
		if kind == graph.KindNode {
			candidates = g.NodeIDs()
		} else {
			candidates = g.RelationIDs()
		}
		want := map[int]bool{}
		var picked []int
		for _, id := range candidates {
			if rapid.Bool().Draw(t, "pick") {
				want[id] = true
				picked = append(picked, id)
			}
		}

		b, err := New(kind, size)
		if err != nil {
			t.Fatal(err)
		}
		batches := drain(b.Sequence(g, IDs(picked...)))

		if len(picked) == 0 {
			if len(batches) != 1 || !batches[0].Empty() {
				t.Fatalf("empty selection must yield one empty batch, got %d", len(batches))
			}
			return
		}

		seen := map[int]bool{}
		for i, bt := range batches {
			if bt.Index != i {
				t.Fatalf("batch %d has index %d", i, bt.Index)
			}
			if bt.Empty() {
				t.Fatalf("batch %d is empty", i)
			}
			if len(bt.Elements) > size || bt.Records.Len() > size {
				t.Fatalf("batch %d exceeds size %d", i, size)
			}
			if bt.Records.Len() != len(bt.Elements) {
				t.Fatalf("batch %d: %d records for %d elements", i, bt.Records.Len(), len(bt.Elements))
			}
			for _, id := range bt.Elements {
				if seen[id] {
					t.Fatalf("element %d appears in two batches", id)
				}
				if !want[id] {
					t.Fatalf("element %d was not selected", id)
				}
				seen[id] = true
			}
			if kind == graph.KindRelation {
				for _, row := range bt.Records.Rows() {
					if row[record.Source+record.ID] == "" || row[record.Destination+record.ID] == "" {
						t.Fatalf("relation record without endpoints: %v", row)
					}
				}
			}
		}
		if len(seen) != len(want) {
			t.Fatalf("batches cover %d of %d selected elements", len(seen), len(want))
		}
	})
}
