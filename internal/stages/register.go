package stages

import (
	"github.com/aescanero/batchflow/internal/stage"
)

const (
	TagID        = "tag"
	ExpandID     = "expand"
	CentralityID = "centrality"
	FailID       = "fail"
	NotifyID     = "notify"
)

// Register adds every built-in stage to r
func Register(r *stage.Registry) error {
	builtins := []struct {
		id          string
		description string
		factory     stage.Factory
	}{
		{TagID, "Set an attribute to a fixed value on every node", func() stage.Stage { return &Tag{} }},
		{ExpandID, "Create child nodes linked from every node", func() stage.Stage { return &Expand{} }},
		{CentralityID, "Score nodes with PageRank over the batch", func() stage.Stage { return &Centrality{} }},
		{FailID, "Fail in the configured phase", func() stage.Stage { return &Fail{} }},
		{NotifyID, "Record a message on the job report", func() stage.Stage { return &Notify{} }},
	}
	for _, b := range builtins {
		if err := r.Register(b.id, b.description, b.factory); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in stages
func NewRegistry() *stage.Registry {
	r := stage.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}
