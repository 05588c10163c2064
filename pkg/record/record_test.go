package record

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/batchflow/pkg/graph"
)

func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(nil)
	a := g.AddNode()
	b := g.AddNode()
	require.NoError(t, g.SetValue(graph.KindNode, a, "name", "alice"))
	require.NoError(t, g.SetValue(graph.KindNode, b, "name", "bob"))
	require.NoError(t, g.SetValue(graph.KindNode, b, "age", int64(41)))
	r, err := g.AddRelation(a, b, false)
	require.NoError(t, err)
	require.NoError(t, g.SetValue(graph.KindRelation, r, "weight", 0.5))
	return g
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key       string
		prefix    string
		attribute string
		typ       graph.AttrType
		typed     bool
		ok        bool
	}{
		{"source.name<string>", Source, "name", graph.TypeString, true, true},
		{"destination.age<int>", Destination, "age", graph.TypeInt, true, true},
		{"relation.[id]", Relation, ID, "", false, true},
		{"source.plain", Source, "plain", "", false, true},
		{"unknown.name", "", "", "", false, false},
		{"source.", "", "", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			prefix, attr, typ, typed, ok := SplitKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.prefix, prefix)
			assert.Equal(t, tt.attribute, attr)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.typed, typed)
		})
	}
}

func TestNodes_ExtractsTypedValues(t *testing.T) {
	g := sampleGraph(t)

	rs := Nodes(g, []int{1, 0, 99})
	require.Equal(t, 2, rs.Len())

	row := rs.Row(0)
	assert.Equal(t, "1", row[Source+ID])
	assert.Equal(t, "bob", row["source.name<string>"])
	assert.Equal(t, "41", row["source.age<int>"])
	assert.NotContains(t, rs.Row(1), "source.age<int>")
}

func TestRelations_CarryEndpoints(t *testing.T) {
	g := sampleGraph(t)

	rs := Relations(g, g.RelationIDs())
	require.Equal(t, 1, rs.Len())

	row := rs.Row(0)
	assert.Equal(t, "0", row[Relation+ID])
	assert.Equal(t, "alice", row["source.name<string>"])
	assert.Equal(t, "bob", row["destination.name<string>"])
	assert.Equal(t, "false", row[Relation+Directed])
	assert.Equal(t, "0.5", row["relation.weight<float>"])
}

func TestAddToGraph_RoundTrip(t *testing.T) {
	g := sampleGraph(t)
	rs := Relations(g, g.RelationIDs())

	wc := g.NewLike()
	maps := NewIDMaps()
	created, err := AddToGraph(wc, rs, maps)
	require.NoError(t, err)

	assert.Len(t, created, 2)
	assert.Equal(t, 2, wc.NodeCount())
	assert.Equal(t, 1, wc.RelationCount())
	require.Contains(t, maps.Nodes, "0")
	require.Contains(t, maps.Nodes, "1")
	require.Contains(t, maps.Relations, "0")

	v, ok := wc.Value(graph.KindNode, maps.Nodes["1"], "age")
	require.True(t, ok)
	assert.Equal(t, 41, v)

	_, _, directed, ok := wc.Endpoints(maps.Relations["0"])
	require.True(t, ok)
	assert.False(t, directed)
}

func TestAddToGraph_ReusesMappedIDs(t *testing.T) {
	wc := graph.New(nil)
	maps := NewIDMaps()

	rs := NewRecordSet()
	rs.Append(Record{Source + ID: "7", "source.name<string>": "x"})
	rs.Append(Record{Source + ID: "7", "source.colour": "red"})
	rs.Append(Record{"source.name<string>": "anonymous"})

	created, err := AddToGraph(wc, rs, maps)
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Equal(t, 2, wc.NodeCount())

	v, _ := wc.Value(graph.KindNode, maps.Nodes["7"], "colour")
	assert.Equal(t, "red", v)
}

func TestAddToGraph_RejectsBadValue(t *testing.T) {
	rs := NewRecordSet()
	rs.Append(Record{"source.age<int>": "old"})

	_, err := AddToGraph(graph.New(nil), rs, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 0")
}

func TestAnchors(t *testing.T) {
	store := sampleGraph(t)
	maps := &IDMaps{
		Nodes:     IDMap{"0": 10, "1": 11, "new-a": 12, "42": 13},
		Relations: IDMap{"0": 20},
	}

	nodes, rels := Anchors(maps, store)
	assert.Equal(t, map[int]int{10: 0, 11: 1}, nodes)
	assert.Equal(t, map[int]int{20: 0}, rels)
}

func TestIdentityMaps(t *testing.T) {
	g := sampleGraph(t)
	m := IdentityMaps(g)
	assert.Equal(t, IDMap{"0": 0, "1": 1}, m.Nodes)
	assert.Equal(t, IDMap{"0": 0}, m.Relations)
}

func TestCodec(t *testing.T) {
	rs := All(sampleGraph(t))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, rs))

	decoded, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, rs.Len(), decoded.Len())
	assert.ElementsMatch(t, rs.Keys(), decoded.Keys())
	assert.Equal(t, rs.Rows(), decoded.Rows())
}

func TestCodec_EmptySet(t *testing.T) {
	data, err := NewRecordSet().MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"keys":[],"rows":[]}`, string(data))
}

func TestSlice(t *testing.T) {
	rs := NewRecordSet()
	for _, v := range []string{"a", "b", "c", "d"} {
		rs.Add()
		rs.Set(rs.Len()-1, Key(Source, "name"), v)
	}

	page := rs.Slice(1, 2)
	require.Equal(t, 2, page.Len())
	assert.Equal(t, "b", page.Row(0)[Key(Source, "name")])
	assert.Equal(t, []string{Key(Source, "name")}, page.Keys())

	assert.Equal(t, 3, rs.Slice(1, 0).Len())
	assert.Equal(t, 0, rs.Slice(10, 2).Len())
}

func TestLoad(t *testing.T) {
	store := graph.NewStore(nil)
	rs := Relations(sampleGraph(t), []int{0})

	res, err := Load(context.Background(), store, rs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NodesCreated)

	snap := store.Snapshot()
	assert.Equal(t, 2, snap.NodeCount())
	assert.Equal(t, 1, snap.RelationCount())

	// loading the extracted rows again updates in place
	again := Nodes(snap, snap.NodeIDs())
	again.Set(0, Key(Source, "name"), "alicia")
	res, err = Load(context.Background(), store, again)
	require.NoError(t, err)
	assert.Equal(t, 0, res.NodesCreated)
	assert.Equal(t, 2, store.Snapshot().NodeCount())
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, graph.NewStore(nil), NewRecordSet())
	assert.ErrorIs(t, err, context.Canceled)
}
