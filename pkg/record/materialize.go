package record

import (
	"fmt"
	"strconv"

	"github.com/aescanero/batchflow/pkg/graph"
)

// IDMap maps a record id to a graph element id
type IDMap map[string]int

// IDMaps holds the node and relation translations filled by AddToGraph
type IDMaps struct {
	Nodes     IDMap
	Relations IDMap
}

// NewIDMaps creates empty id maps
func NewIDMaps() *IDMaps {
	return &IDMaps{Nodes: IDMap{}, Relations: IDMap{}}
}

// IdentityMaps maps every element of view to itself, for rows that were
// extracted from the same graph they are written back into.
func IdentityMaps(view graph.ReadView) *IDMaps {
	m := NewIDMaps()
	for _, id := range view.NodeIDs() {
		m.Nodes[strconv.Itoa(id)] = id
	}
	for _, id := range view.RelationIDs() {
		m.Relations[strconv.Itoa(id)] = id
	}
	return m
}

// Anchors resolves the record ids of maps against dst. Record ids are the
// decimal element ids of the graph the records were read from; those that
// name an existing element of dst pin the mapped element to it.
func Anchors(maps *IDMaps, dst graph.ReadView) (nodes, relations map[int]int) {
	nodes = make(map[int]int)
	relations = make(map[int]int)
	if maps == nil {
		return nodes, relations
	}
	for rid, local := range maps.Nodes {
		if id, err := strconv.Atoi(rid); err == nil && dst.HasNode(id) {
			nodes[local] = id
		}
	}
	for rid, local := range maps.Relations {
		if id, err := strconv.Atoi(rid); err == nil && dst.HasRelation(id) {
			relations[local] = id
		}
	}
	return nodes, relations
}

type fields map[string]field

type field struct {
	value string
	typ   graph.AttrType
	typed bool
}

// AddToGraph writes every row of rs into w. Rows whose [id] is already in
// maps update the mapped element; other rows create elements and record
// them in maps. It returns the ids of the nodes it created.
func AddToGraph(w graph.WriteView, rs *RecordSet, maps *IDMaps) ([]int, error) {
	if maps == nil {
		maps = NewIDMaps()
	}
	var created []int

	for i, row := range rs.Rows() {
		src, dst, rel := fields{}, fields{}, fields{}
		for key, value := range row {
			prefix, attr, t, typed, ok := SplitKey(key)
			if !ok {
				continue
			}
			f := field{value: value, typ: t, typed: typed}
			switch prefix {
			case Source:
				src[attr] = f
			case Destination:
				dst[attr] = f
			case Relation:
				rel[attr] = f
			}
		}

		switch {
		case len(src) == 0 && len(dst) == 0:
			if _, ok := rel[ID]; ok {
				if err := updateRelation(w, rel, maps); err != nil {
					return created, fmt.Errorf("row %d: %w", i, err)
				}
			}
		case len(src) > 0 && len(dst) > 0:
			s, err := addNode(w, src, maps, &created)
			if err != nil {
				return created, fmt.Errorf("row %d source: %w", i, err)
			}
			d, err := addNode(w, dst, maps, &created)
			if err != nil {
				return created, fmt.Errorf("row %d destination: %w", i, err)
			}
			if err := addRelation(w, s, d, rel, maps); err != nil {
				return created, fmt.Errorf("row %d relation: %w", i, err)
			}
		case len(src) > 0:
			if _, err := addNode(w, src, maps, &created); err != nil {
				return created, fmt.Errorf("row %d source: %w", i, err)
			}
		default:
			if _, err := addNode(w, dst, maps, &created); err != nil {
				return created, fmt.Errorf("row %d destination: %w", i, err)
			}
		}
	}
	return created, nil
}

func addNode(w graph.WriteView, f fields, maps *IDMaps, created *[]int) (int, error) {
	rid := f[ID].value
	id, ok := maps.Nodes[rid]
	if rid == "" || !ok || !w.HasNode(id) {
		id = w.AddNode()
		*created = append(*created, id)
		if rid != "" {
			maps.Nodes[rid] = id
		}
	}
	return id, setFields(w, graph.KindNode, id, f)
}

func addRelation(w graph.WriteView, src, dst int, f fields, maps *IDMaps) error {
	rid := f[ID].value
	id, ok := maps.Relations[rid]
	if rid == "" || !ok || !w.HasRelation(id) {
		var err error
		id, err = w.AddRelation(src, dst, f[Directed].value != "false")
		if err != nil {
			return err
		}
		if rid != "" {
			maps.Relations[rid] = id
		}
	}
	return setFields(w, graph.KindRelation, id, f)
}

func updateRelation(w graph.WriteView, f fields, maps *IDMaps) error {
	id, ok := maps.Relations[f[ID].value]
	if !ok || !w.HasRelation(id) {
		return nil
	}
	return setFields(w, graph.KindRelation, id, f)
}

func setFields(w graph.WriteView, kind graph.ElementKind, id int, f fields) error {
	for name, fv := range f {
		if name == ID || name == Directed {
			continue
		}
		t := fv.typ
		if !fv.typed {
			t = graph.TypeString
			for _, a := range w.Attributes(kind) {
				if a.Name == name {
					t = a.Type
					break
				}
			}
		}
		if fv.value == "" && t != graph.TypeString {
			continue
		}
		if err := w.EnsureAttribute(kind, graph.Attribute{Name: name, Type: t}); err != nil {
			return err
		}
		v, err := graph.ParseValue(t, fv.value)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", name, err)
		}
		if err := w.SetValue(kind, id, name, v); err != nil {
			return err
		}
	}
	return nil
}
