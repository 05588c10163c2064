package graph

import (
	"context"
	"fmt"
	"sync"
)

// Store is the shared session graph. Readers share a lock; writers are
// exclusive and transactional.
type Store struct {
	mu sync.RWMutex
	g  *Graph
}

// NewStore wraps g in a Store. A nil graph starts empty.
func NewStore(g *Graph) *Store {
	if g == nil {
		g = New(nil)
	}
	return &Store{g: g}
}

// Read runs fn against the live graph under the shared lock. fn must not
// retain the view after returning.
func (s *Store) Read(fn func(ReadView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.g)
}

// Snapshot returns a consistent private copy of the graph
func (s *Store) Snapshot() *Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g.Clone()
}

// Write runs fn as an exclusive transaction. If fn returns an error every
// change it made is rolled back.
func (s *Store) Write(ctx context.Context, fn func(WriteView) error) error {
	return s.transact(ctx, func(g *Graph) error { return fn(g) })
}

// Finalize completes the schema and validates node keys in one transaction
func (s *Store) Finalize(ctx context.Context) (FinalizeReport, error) {
	var report FinalizeReport
	err := s.transact(ctx, func(g *Graph) error {
		var err error
		report, err = g.Finalize()
		return err
	})
	return report, err
}

// Version returns the number of effective mutations applied to the store
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.g.mutations
}

func (s *Store) transact(ctx context.Context, fn func(*Graph) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.g.begin()
	defer func() {
		if r := recover(); r != nil {
			s.g.rollback()
			err = fmt.Errorf("write transaction panicked: %v", r)
			return
		}
		if err != nil {
			s.g.rollback()
			return
		}
		s.g.commit()
	}()

	return fn(s.g)
}
