package record

import (
	"context"
	"fmt"

	"github.com/aescanero/batchflow/pkg/graph"
)

// LoadResult summarizes a Load
type LoadResult struct {
	NodesCreated int                  `json:"nodes_created"`
	Finalize     graph.FinalizeReport `json:"finalize"`
}

// Load writes rs into store in one transaction and finalizes it. Record ids
// naming an existing element update it; other ids are local to rs and only
// link the rows that share them.
func Load(ctx context.Context, store *graph.Store, rs *RecordSet) (LoadResult, error) {
	var res LoadResult
	err := store.Write(ctx, func(w graph.WriteView) error {
		created, err := AddToGraph(w, rs, IdentityMaps(w))
		res.NodesCreated = len(created)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("load records: %w", err)
	}
	if res.Finalize, err = store.Finalize(ctx); err != nil {
		return res, fmt.Errorf("finalize: %w", err)
	}
	return res, nil
}
