package orchestrator

import (
	"context"
	"fmt"

	"github.com/aescanero/batchflow/internal/application/workers"
	"github.com/aescanero/batchflow/pkg/graph"
	"github.com/aescanero/batchflow/pkg/record"
)

// mergeBack applies a worker's forwarded copy to the store in one exclusive
// transaction. Working-copy elements loaded from the store are translated
// back through the batch id maps and only receive the values the workflow
// changed; everything else is created.
func mergeBack(ctx context.Context, store *graph.Store, res *workers.Result) (graph.MergeStats, error) {
	var stats graph.MergeStats
	err := store.Write(ctx, func(w graph.WriteView) error {
		nodes, relations := record.Anchors(res.Maps, w)
		var err error
		stats, err = graph.Merge(w, res.Forward, res.Base, nodes, relations)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("merge batch %d: %w", res.Batch, err)
	}
	return stats, nil
}
