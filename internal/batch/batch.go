// Package batch partitions a selection of graph elements into fixed-size,
// self-contained batches of records.
package batch

import (
	"errors"
	"fmt"

	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

// ErrInvalidSize is returned for a batch size below one
var ErrInvalidSize = errors.New("batch size must be at least 1")

// DefaultSelectedAttribute marks selected elements
const DefaultSelectedAttribute = "selected"

// EmptySelectionPolicy decides what a selection with no elements produces
type EmptySelectionPolicy int

const (
	// RunOnce yields a single empty batch so the workflow still runs once,
	// e.g. to report that nothing matched.
	RunOnce EmptySelectionPolicy = iota
	// Skip yields no batches.
	Skip
)

func (p EmptySelectionPolicy) String() string {
	if p == Skip {
		return "skip"
	}
	return "run_once"
}

// Batch is one unit of work handed to a worker
type Batch struct {
	Index int
	Kind  graph.ElementKind
	// Elements are the store ids of the selected elements in this batch
	Elements []int
	Records  *record.RecordSet
	// Maps start empty and are filled when Records are materialized
	Maps *record.IDMaps
}

// Empty reports whether the batch holds no elements
func (b *Batch) Empty() bool {
	return len(b.Elements) == 0
}

// Batcher splits selections into batches of at most Size elements
type Batcher struct {
	kind   graph.ElementKind
	size   int
	policy EmptySelectionPolicy
}

// Option configures a Batcher
type Option func(*Batcher)

// WithEmptySelectionPolicy overrides the RunOnce default
func WithEmptySelectionPolicy(p EmptySelectionPolicy) Option {
	return func(b *Batcher) { b.policy = p }
}

// New creates a Batcher for node or relation batches
func New(kind graph.ElementKind, size int, opts ...Option) (*Batcher, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}
	if kind != graph.KindNode && kind != graph.KindRelation {
		return nil, fmt.Errorf("unsupported element kind %q", kind)
	}
	b := &Batcher{kind: kind, size: size}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Batcher) Size() int                    { return b.size }
func (b *Batcher) Kind() graph.ElementKind      { return b.kind }
func (b *Batcher) Policy() EmptySelectionPolicy { return b.policy }

// Sequence evaluates sel against view and returns the batches lazily.
// Records are only extracted when a batch is requested, so view must stay
// unchanged while the sequence is in use; pass a snapshot.
func (b *Batcher) Sequence(view graph.ReadView, sel Selection) *Sequence {
	if sel == nil {
		sel = All()
	}
	var candidates []int
	if b.kind == graph.KindNode {
		candidates = view.NodeIDs()
	} else {
		candidates = view.RelationIDs()
	}
	selected := make([]int, 0, len(candidates))
	for _, id := range candidates {
		if sel(view, b.kind, id) {
			selected = append(selected, id)
		}
	}
	return &Sequence{batcher: b, view: view, selected: selected}
}

// Sequence is a finite, restartable iterator over batches
type Sequence struct {
	batcher  *Batcher
	view     graph.ReadView
	selected []int
	next     int
	index    int
}

// Selected returns the number of selected elements
func (s *Sequence) Selected() int {
	return len(s.selected)
}

// Len returns the number of batches the sequence yields
func (s *Sequence) Len() int {
	if len(s.selected) == 0 {
		if s.batcher.policy == RunOnce {
			return 1
		}
		return 0
	}
	return (len(s.selected) + s.batcher.size - 1) / s.batcher.size
}

// Next returns the next batch, or false when the sequence is exhausted
func (s *Sequence) Next() (*Batch, bool) {
	if s.index >= s.Len() {
		return nil, false
	}
	end := s.next + s.batcher.size
	if end > len(s.selected) {
		end = len(s.selected)
	}
	ids := append([]int(nil), s.selected[s.next:end]...)

	var rs *record.RecordSet
	if s.batcher.kind == graph.KindNode {
		rs = record.Nodes(s.view, ids)
	} else {
		rs = record.Relations(s.view, ids)
	}

	b := &Batch{
		Index:    s.index,
		Kind:     s.batcher.kind,
		Elements: ids,
		Records:  rs,
		Maps:     record.NewIDMaps(),
	}
	s.next = end
	s.index++
	return b, true
}

// Reset rewinds the sequence to its first batch
func (s *Sequence) Reset() {
	s.next = 0
	s.index = 0
}
