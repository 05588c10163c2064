package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aescanero/batchflow/internal/params"
	"github.com/aescanero/batchflow/internal/stage"
	eventsmemory "github.com/aescanero/batchflow/pkg/adapters/events/memory"
	"github.com/aescanero/batchflow/pkg/adapters/metrics/nop"
	storagememory "github.com/aescanero/batchflow/pkg/adapters/storage/memory"
	"github.com/aescanero/batchflow/pkg/domain"
	"github.com/aescanero/batchflow/pkg/graph"
)

func newManager(t *testing.T, store *graph.Store, r stage.Resolver, timeout time.Duration) (*Manager, *eventsmemory.InMemoryEventBus) {
	t.Helper()
	bus := eventsmemory.NewInMemoryEventBus()
	m := NewManager(
		store,
		r,
		nil,
		bus,
		storagememory.NewInMemoryStateStorage(),
		nop.Collector{},
		nil,
		zaptest.NewLogger(t),
		timeout,
		Defaults{BatchSize: 2, MaxConcurrency: 2},
	)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	})
	return m, bus
}

func waitFor(t *testing.T, m *Manager, id string) *domain.JobState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := m.Wait(ctx, id)
	require.NoError(t, err)
	return state
}

func TestManager_SubmitAndComplete(t *testing.T) {
	store := newStore(t, 5)
	m, bus := newManager(t, store, testRegistry(t), 0)

	events := make(chan domain.EventType, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, bus.Subscribe(ctx, domain.TopicJobEvents, func(_ context.Context, ev domain.Event) error {
		if ev.Type == domain.EventTypeJobSubmitted || ev.Type == domain.EventTypeJobStarted || ev.Type == domain.EventTypeJobCompleted {
			events <- ev.Type
		}
		return nil
	}))

	id, err := m.SubmitJob(context.Background(), domain.JobSpec{
		Workflow:  domain.Workflow{Stages: []string{"mark"}},
		Selection: domain.SelectionSpec{All: true},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	state := waitFor(t, m, id)
	assert.Equal(t, domain.ExecutionStatusCompleted, state.Status)
	assert.Equal(t, 2, state.Spec.BatchSize)
	assert.Equal(t, 2, state.Spec.MaxConcurrency)
	assert.Equal(t, int64(3), state.Progress.Total)
	assert.Equal(t, int64(3), state.Progress.Merged)
	assert.Empty(t, state.Failures)
	require.NotNil(t, state.StartedAt)
	require.NotNil(t, state.CompletedAt)

	assert.Equal(t, domain.EventTypeJobSubmitted, <-events)
	assert.Equal(t, domain.EventTypeJobStarted, <-events)
	assert.Equal(t, domain.EventTypeJobCompleted, <-events)

	assert.Equal(t, "done", statusOf(t, store, 4))

	jobs, err := m.ListJobs(context.Background())
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestManager_FailedJobRecordsFailures(t *testing.T) {
	m, _ := newManager(t, newStore(t, 6), testRegistry(t), 0)

	id, err := m.SubmitJob(context.Background(), domain.JobSpec{
		Workflow:  domain.Workflow{Stages: []string{"poisoned"}},
		Selection: domain.SelectionSpec{All: true},
		BatchSize: 3,
	})
	require.NoError(t, err)

	state := waitFor(t, m, id)
	assert.Equal(t, domain.ExecutionStatusFailed, state.Status)
	require.Len(t, state.Failures, 1)
	assert.Contains(t, state.Failures[0], "poisoned batch")
	assert.Contains(t, state.Error, "1 workers failed.")
}

func TestManager_RejectsInvalidJobs(t *testing.T) {
	m, _ := newManager(t, newStore(t, 1), testRegistry(t), 0)

	_, err := m.SubmitJob(context.Background(), domain.JobSpec{Workflow: domain.Workflow{Stages: []string{"nope"}}})
	assert.ErrorIs(t, err, stage.ErrUnknownStage)

	_, err = m.SubmitJob(context.Background(), domain.JobSpec{BatchSize: -1})
	assert.Error(t, err)

	jobs, err := m.ListJobs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func blocking(started chan<- struct{}) stage.Factory {
	return apply("block", func(ctx context.Context, _ graph.WriteView, _ *params.Params) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	})
}

func TestManager_CancelJob(t *testing.T) {
	started := make(chan struct{}, 1)
	r := stage.NewRegistry()
	r.MustRegister("block", "", blocking(started))
	m, _ := newManager(t, newStore(t, 2), r, 0)

	id, err := m.SubmitJob(context.Background(), domain.JobSpec{
		Workflow:  domain.Workflow{Stages: []string{"block"}},
		Selection: domain.SelectionSpec{All: true},
	})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("stage never started")
	}

	running, err := m.GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusRunning, running.Status)

	require.NoError(t, m.CancelJob(context.Background(), id))
	state := waitFor(t, m, id)
	assert.Equal(t, domain.ExecutionStatusCancelled, state.Status)
	assert.Empty(t, state.Failures)

	err = m.CancelJob(context.Background(), id)
	assert.ErrorIs(t, err, ErrJobTerminal)

	err = m.CancelJob(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestManager_Timeout(t *testing.T) {
	r := stage.NewRegistry()
	r.MustRegister("block", "", blocking(make(chan struct{}, 1)))
	m, _ := newManager(t, newStore(t, 1), r, 50*time.Millisecond)

	id, err := m.SubmitJob(context.Background(), domain.JobSpec{
		Workflow:  domain.Workflow{Stages: []string{"block"}},
		Selection: domain.SelectionSpec{All: true},
	})
	require.NoError(t, err)

	state := waitFor(t, m, id)
	assert.Equal(t, domain.ExecutionStatusFailed, state.Status)
	assert.Equal(t, "execution timeout", state.Error)
}

func TestManager_GetStatusUnknown(t *testing.T) {
	m, _ := newManager(t, newStore(t, 1), testRegistry(t), 0)

	_, err := m.GetStatus(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrJobNotFound))
}

func TestSelectionFor(t *testing.T) {
	g := graph.New(nil)
	a, b := g.AddNode(), g.AddNode()
	require.NoError(t, g.SetValue(graph.KindNode, b, "selected", true))
	require.NoError(t, g.SetValue(graph.KindNode, a, "picked", "true"))

	tests := []struct {
		name string
		spec domain.SelectionSpec
		want []bool
	}{
		{name: "all", spec: domain.SelectionSpec{All: true}, want: []bool{true, true}},
		{name: "ids", spec: domain.SelectionSpec{IDs: []int{a}}, want: []bool{true, false}},
		{name: "default attribute", spec: domain.SelectionSpec{}, want: []bool{false, true}},
		{name: "named attribute", spec: domain.SelectionSpec{Attribute: "picked"}, want: []bool{true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := SelectionFor(tt.spec)
			assert.Equal(t, tt.want, []bool{sel(g, graph.KindNode, a), sel(g, graph.KindNode, b)})
		})
	}
}

func TestManager_NilMetricsAndLogger(t *testing.T) {
	m := NewManager(
		newStore(t, 2),
		testRegistry(t),
		nil,
		eventsmemory.NewInMemoryEventBus(),
		storagememory.NewInMemoryStateStorage(),
		nil,
		nil,
		nil,
		0,
		Defaults{BatchSize: 1, MaxConcurrency: 1},
	)
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	_, err := m.SubmitJob(context.Background(), domain.JobSpec{BatchSize: -1})
	require.ErrorIs(t, err, ErrInvalidArgument)

	id, err := m.SubmitJob(context.Background(), domain.JobSpec{
		Workflow:  domain.Workflow{Stages: []string{"mark"}},
		Selection: domain.SelectionSpec{All: true},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ExecutionStatusCompleted, waitFor(t, m, id).Status)
}
