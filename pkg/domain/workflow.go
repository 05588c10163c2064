package domain

import "github.com/aescanero/batchflow/pkg/graph"

// RecordKind selects whether batches are built from nodes or relations
type RecordKind string

const (
	RecordKindNodes     RecordKind = "nodes"
	RecordKindRelations RecordKind = "relations"
)

// ElementKind maps the record kind to the graph element it batches
func (k RecordKind) ElementKind() graph.ElementKind {
	if k == RecordKindRelations {
		return graph.KindRelation
	}
	return graph.KindNode
}

// Workflow is an ordered chain of stage ids with an optional error stage
type Workflow struct {
	Name                      string         `json:"name,omitempty" yaml:"name"`
	Stages                    []string       `json:"stages" yaml:"stages" validate:"dive,required"`
	ErrorStage                string         `json:"error_stage,omitempty" yaml:"error_stage"`
	KeepPartialResultsOnError bool           `json:"keep_partial_results_on_error" yaml:"keep_partial_results_on_error"`
	RecordKind                RecordKind     `json:"record_kind,omitempty" yaml:"record_kind" validate:"omitempty,oneof=nodes relations"`
	Parameters                map[string]any `json:"parameters,omitempty" yaml:"parameters"`
}

// SelectionSpec describes which elements a job processes. With no field set
// the boolean "selected" attribute is used.
type SelectionSpec struct {
	All       bool   `json:"all,omitempty" yaml:"all"`
	IDs       []int  `json:"ids,omitempty" yaml:"ids" validate:"omitempty,dive,gte=0"`
	Attribute string `json:"attribute,omitempty" yaml:"attribute"`
}

// JobSpec is a complete job submission
type JobSpec struct {
	Workflow       Workflow      `json:"workflow" yaml:"workflow" validate:"required"`
	Selection      SelectionSpec `json:"selection" yaml:"selection"`
	BatchSize      int           `json:"batch_size,omitempty" yaml:"batch_size" validate:"gte=0"`
	MaxConcurrency int           `json:"max_concurrency,omitempty" yaml:"max_concurrency" validate:"gte=0"`
}
