package diag

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReport_ConcurrentCounters(t *testing.T) {
	r := NewReport("job-1", zap.NewNop())
	r.SetTotal(50)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.BatchStarted()
			r.BatchDone()
			r.Note("done")
		}()
	}
	wg.Wait()

	p := r.Progress()
	assert.Equal(t, int64(50), p.Total)
	assert.Equal(t, int64(50), p.Started)
	assert.Equal(t, int64(50), p.Completed)
	assert.Len(t, r.Messages(), 50)
}

func TestReport_LoggerCarriesJobAndBatch(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := NewReport("job-7", zap.New(core))

	r.ForBatch(3).Info("hello")

	entries := logs.All()
	assert.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "job-7", fields["job_id"])
	assert.Equal(t, int64(3), fields["batch"])
}

func TestFromContext(t *testing.T) {
	r := NewReport("job-2", nil)
	ctx := WithReport(context.Background(), r)
	assert.Same(t, r, FromContext(ctx))

	detached := FromContext(context.Background())
	assert.NotNil(t, detached)
	assert.Equal(t, "", detached.JobID())
}
