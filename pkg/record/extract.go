package record

import (
	"strconv"

	"github.com/aescanero/batchflow/pkg/graph"
)

// Nodes builds one source row per node id, in the given order
func Nodes(view graph.ReadView, ids []int) *RecordSet {
	rs := NewRecordSet()
	attrs := view.Attributes(graph.KindNode)
	for _, id := range ids {
		if !view.HasNode(id) {
			continue
		}
		rs.Add()
		i := rs.Len() - 1
		setElement(rs, i, view, graph.KindNode, Source, attrs, id)
	}
	return rs
}

// Relations builds one row per relation id carrying the relation and both
// endpoint nodes, so the row is self-contained.
func Relations(view graph.ReadView, ids []int) *RecordSet {
	rs := NewRecordSet()
	nodeAttrs := view.Attributes(graph.KindNode)
	relAttrs := view.Attributes(graph.KindRelation)
	for _, id := range ids {
		src, dst, directed, ok := view.Endpoints(id)
		if !ok {
			continue
		}
		rs.Add()
		i := rs.Len() - 1
		setElement(rs, i, view, graph.KindRelation, Relation, relAttrs, id)
		setElement(rs, i, view, graph.KindNode, Source, nodeAttrs, src)
		setElement(rs, i, view, graph.KindNode, Destination, nodeAttrs, dst)
		if !directed {
			rs.Set(i, Relation+Directed, "false")
		}
	}
	return rs
}

// All returns every node followed by every relation of view
func All(view graph.ReadView) *RecordSet {
	rs := Nodes(view, view.NodeIDs())
	for _, r := range Relations(view, view.RelationIDs()).Rows() {
		rs.Append(r)
	}
	return rs
}

func setElement(rs *RecordSet, row int, view graph.ReadView, kind graph.ElementKind, prefix string, attrs []graph.Attribute, id int) {
	for _, a := range attrs {
		v, ok := view.Value(kind, id, a.Name)
		if !ok {
			continue
		}
		rs.Set(row, TypedKey(prefix, a.Name, a.Type), graph.FormatValue(v))
	}
	rs.Set(row, prefix+ID, strconv.Itoa(id))
}
