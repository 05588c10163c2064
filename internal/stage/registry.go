package stage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/batchflow/internal/params"
)

// Resolver maps a stage id to a fresh Stage
type Resolver interface {
	Resolve(id string) (Stage, error)
}

// Factory creates a new stage instance
type Factory func() Stage

// Info describes a registered stage
type Info struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Defaults    map[string]any `json:"defaults,omitempty"`
}

type entry struct {
	factory     Factory
	description string
}

// Registry is an explicit id to factory table
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a factory under id
func (r *Registry) Register(id, description string, f Factory) error {
	if id == "" || f == nil {
		return fmt.Errorf("stage id and factory are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return fmt.Errorf("stage %s already registered", id)
	}
	r.entries[id] = entry{factory: f, description: description}
	return nil
}

// MustRegister is Register that panics on error, for init-time tables
func (r *Registry) MustRegister(id, description string, f Factory) {
	if err := r.Register(id, description, f); err != nil {
		panic(err)
	}
}

// Resolve returns a new instance of the stage registered under id
func (r *Registry) Resolve(id string) (Stage, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, id)
	}
	return e.factory(), nil
}

// Has reports whether id is registered
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Defaults returns the declared parameters of the stage registered under id
func (r *Registry) Defaults(id string) (*params.Params, error) {
	s, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}
	return DefaultsOf(s), nil
}

// List describes every registered stage, sorted by id
func (r *Registry) List() []Info {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		r.mu.RLock()
		e := r.entries[id]
		r.mu.RUnlock()
		out = append(out, Info{ID: id, Description: e.description, Defaults: DefaultsOf(e.factory()).Map()})
	}
	return out
}

// DefaultsOf returns the declared defaults of s, or empty parameters
func DefaultsOf(s Stage) *params.Params {
	if d, ok := s.(Defaulter); ok {
		if p := d.Defaults(); p != nil {
			return p.Clone()
		}
	}
	return &params.Params{}
}
