package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound is returned when an element id does not exist
var ErrNotFound = errors.New("element not found")

// ReadView is the read-only surface of a graph
type ReadView interface {
	NodeCount() int
	RelationCount() int
	NodeIDs() []int
	RelationIDs() []int
	HasNode(id int) bool
	HasRelation(id int) bool
	Endpoints(relation int) (src, dst int, directed bool, ok bool)
	Neighbours(node int) []int
	Relations(node int) []int
	Value(kind ElementKind, id int, name string) (any, bool)
	Values(kind ElementKind, id int) map[string]any
	Attributes(kind ElementKind) []Attribute
}

// WriteView is the mutating surface of a graph
type WriteView interface {
	ReadView
	AddNode() int
	AddRelation(src, dst int, directed bool) (int, error)
	SetValue(kind ElementKind, id int, name string, v any) error
	EnsureAttribute(kind ElementKind, attr Attribute) error
	RemoveNode(id int) error
	RemoveRelation(id int) error
}

type relation struct {
	src, dst int
	directed bool
	attrs    map[string]any
}

// Graph is an in-memory graph. It is not safe for concurrent use; the shared
// instance is guarded by Store.
type Graph struct {
	schema    *Schema
	nodes     map[int]map[string]any
	relations map[int]*relation
	incident  map[int]map[int]struct{}

	nextNode     int
	nextRelation int
	mutations    uint64

	// undo is non-nil while a Store transaction is open
	undo []func()
}

// New creates an empty graph with the given schema
func New(schema *Schema) *Graph {
	if schema == nil {
		schema = NewSchema()
	}
	return &Graph{
		schema:    schema,
		nodes:     make(map[int]map[string]any),
		relations: make(map[int]*relation),
		incident:  make(map[int]map[int]struct{}),
	}
}

// NewLike creates an empty graph whose schema is a copy of g's
func (g *Graph) NewLike() *Graph {
	return New(g.schema.Clone())
}

// Clone returns a deep copy of g, ids included
func (g *Graph) Clone() *Graph {
	c := New(g.schema.Clone())
	for id, attrs := range g.nodes {
		c.nodes[id] = copyAttrs(attrs)
		c.incident[id] = make(map[int]struct{}, len(g.incident[id]))
		for r := range g.incident[id] {
			c.incident[id][r] = struct{}{}
		}
	}
	for id, r := range g.relations {
		c.relations[id] = &relation{src: r.src, dst: r.dst, directed: r.directed, attrs: copyAttrs(r.attrs)}
	}
	c.nextNode = g.nextNode
	c.nextRelation = g.nextRelation
	c.mutations = g.mutations
	return c
}

// Schema returns the graph schema
func (g *Graph) Schema() *Schema {
	return g.schema
}

// Mutations returns the number of effective changes applied to g
func (g *Graph) Mutations() uint64 {
	return g.mutations
}

func (g *Graph) NodeCount() int     { return len(g.nodes) }
func (g *Graph) RelationCount() int { return len(g.relations) }

// NodeIDs returns node ids in ascending order
func (g *Graph) NodeIDs() []int {
	ids := make([]int, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// RelationIDs returns relation ids in ascending order
func (g *Graph) RelationIDs() []int {
	ids := make([]int, 0, len(g.relations))
	for id := range g.relations {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (g *Graph) HasNode(id int) bool {
	_, ok := g.nodes[id]
	return ok
}

func (g *Graph) HasRelation(id int) bool {
	_, ok := g.relations[id]
	return ok
}

func (g *Graph) Endpoints(id int) (int, int, bool, bool) {
	r, ok := g.relations[id]
	if !ok {
		return 0, 0, false, false
	}
	return r.src, r.dst, r.directed, true
}

// Relations returns the ids of relations incident to node, ascending
func (g *Graph) Relations(node int) []int {
	ids := make([]int, 0, len(g.incident[node]))
	for r := range g.incident[node] {
		ids = append(ids, r)
	}
	sort.Ints(ids)
	return ids
}

// Neighbours returns the distinct nodes adjacent to node, ascending
func (g *Graph) Neighbours(node int) []int {
	seen := make(map[int]struct{})
	for rid := range g.incident[node] {
		r := g.relations[rid]
		other := r.dst
		if other == node {
			other = r.src
		}
		seen[other] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

func (g *Graph) Value(kind ElementKind, id int, name string) (any, bool) {
	attrs := g.attrs(kind, id)
	if attrs == nil {
		return nil, false
	}
	v, ok := attrs[name]
	return v, ok
}

// Values returns a copy of the attribute values of an element
func (g *Graph) Values(kind ElementKind, id int) map[string]any {
	return copyAttrs(g.attrs(kind, id))
}

func (g *Graph) Attributes(kind ElementKind) []Attribute {
	return g.schema.Attributes(kind)
}

// AddNode creates a node and returns its id
func (g *Graph) AddNode() int {
	id := g.nextNode
	g.nextNode++
	g.nodes[id] = make(map[string]any)
	g.incident[id] = make(map[int]struct{})
	g.mutations++
	g.journal(func() {
		delete(g.nodes, id)
		delete(g.incident, id)
		g.nextNode = id
		g.mutations--
	})
	return id
}

// AddRelation creates a relation between two existing nodes
func (g *Graph) AddRelation(src, dst int, directed bool) (int, error) {
	if !g.HasNode(src) {
		return 0, fmt.Errorf("relation source %d: %w", src, ErrNotFound)
	}
	if !g.HasNode(dst) {
		return 0, fmt.Errorf("relation destination %d: %w", dst, ErrNotFound)
	}
	id := g.nextRelation
	g.nextRelation++
	g.relations[id] = &relation{src: src, dst: dst, directed: directed, attrs: make(map[string]any)}
	g.incident[src][id] = struct{}{}
	g.incident[dst][id] = struct{}{}
	g.mutations++
	g.journal(func() {
		g.unlinkRelation(id)
		g.nextRelation = id
		g.mutations--
	})
	return id, nil
}

// EnsureAttribute registers attr in the schema if it is not present yet
func (g *Graph) EnsureAttribute(kind ElementKind, attr Attribute) error {
	if _, ok := g.schema.Lookup(kind, attr.Name); ok {
		return g.schema.Add(kind, attr)
	}
	if err := g.schema.Add(kind, attr); err != nil {
		return err
	}
	g.journal(func() { g.schema.remove(kind, attr.Name) })
	return nil
}

// SetValue sets an attribute value, registering the attribute with the
// value's inferred type when the schema does not know it. Values are coerced
// to the registered type. Setting an equal value is not a mutation.
func (g *Graph) SetValue(kind ElementKind, id int, name string, v any) error {
	attrs := g.attrs(kind, id)
	if attrs == nil {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	attr, ok := g.schema.Lookup(kind, name)
	if !ok {
		attr = Attribute{Name: name, Type: TypeOf(v)}
		if err := g.EnsureAttribute(kind, attr); err != nil {
			return err
		}
	}
	if v != nil {
		cv, err := Coerce(attr.Type, v)
		if err != nil {
			return fmt.Errorf("%s %d attribute %s: %w", kind, id, name, err)
		}
		v = cv
	}
	old, had := attrs[name]
	if had && old == v {
		return nil
	}
	if v == nil {
		if !had {
			return nil
		}
		delete(attrs, name)
	} else {
		attrs[name] = v
	}
	g.mutations++
	g.journal(func() {
		if had {
			attrs[name] = old
		} else {
			delete(attrs, name)
		}
		g.mutations--
	})
	return nil
}

// RemoveRelation deletes a relation
func (g *Graph) RemoveRelation(id int) error {
	r, ok := g.relations[id]
	if !ok {
		return fmt.Errorf("relation %d: %w", id, ErrNotFound)
	}
	g.unlinkRelation(id)
	g.mutations++
	g.journal(func() {
		g.relations[id] = r
		g.incident[r.src][id] = struct{}{}
		g.incident[r.dst][id] = struct{}{}
		g.mutations--
	})
	return nil
}

// RemoveNode deletes a node and its incident relations
func (g *Graph) RemoveNode(id int) error {
	attrs, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	for _, rid := range g.Relations(id) {
		if err := g.RemoveRelation(rid); err != nil {
			return err
		}
	}
	delete(g.nodes, id)
	delete(g.incident, id)
	g.mutations++
	g.journal(func() {
		g.nodes[id] = attrs
		g.incident[id] = make(map[int]struct{})
		g.mutations--
	})
	return nil
}

// redirect moves one endpoint of a relation from node from to node to
func (g *Graph) redirect(rid, from, to int) {
	r := g.relations[rid]
	oldSrc, oldDst := r.src, r.dst
	delete(g.incident[from], rid)
	if r.src == from {
		r.src = to
	}
	if r.dst == from {
		r.dst = to
	}
	g.incident[to][rid] = struct{}{}
	g.mutations++
	g.journal(func() {
		delete(g.incident[to], rid)
		r.src, r.dst = oldSrc, oldDst
		g.incident[oldSrc][rid] = struct{}{}
		g.incident[oldDst][rid] = struct{}{}
		g.mutations--
	})
}

func (g *Graph) unlinkRelation(id int) {
	r := g.relations[id]
	if r == nil {
		return
	}
	delete(g.incident[r.src], id)
	delete(g.incident[r.dst], id)
	delete(g.relations, id)
}

func (g *Graph) attrs(kind ElementKind, id int) map[string]any {
	switch kind {
	case KindNode:
		return g.nodes[id]
	case KindRelation:
		if r, ok := g.relations[id]; ok {
			return r.attrs
		}
	}
	return nil
}

func (g *Graph) journal(undo func()) {
	if g.undo != nil {
		g.undo = append(g.undo, undo)
	}
}

func (g *Graph) begin() {
	g.undo = make([]func(), 0, 16)
}

func (g *Graph) commit() {
	g.undo = nil
}

func (g *Graph) rollback() {
	undo := g.undo
	g.undo = nil
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

func copyAttrs(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	c := make(map[string]any, len(attrs))
	for k, v := range attrs {
		c[k] = v
	}
	return c
}
