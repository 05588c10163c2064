package workers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startPool(t *testing.T, size int) *Pool {
	t.Helper()
	p, err := NewPool(size, nil, zap.NewNop(), 0)
	require.NoError(t, err)
	require.NoError(t, p.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return p
}

func TestNewPool_RejectsZeroSize(t *testing.T) {
	_, err := NewPool(0, nil, nil, 0)
	assert.Error(t, err)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	const size = 3
	p := startPool(t, size)

	var running, peak atomic.Int64
	futures := make([]*Future, 0, 20)
	for i := 0; i < 20; i++ {
		f, err := p.Submit(context.Background(), func(ctx context.Context) (any, error) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil, nil
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}
	for _, f := range futures {
		_, err := f.Result()
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, peak.Load(), int64(size))
	assert.Greater(t, peak.Load(), int64(0))
}

func TestPool_FIFO(t *testing.T) {
	p := startPool(t, 1)

	var mu sync.Mutex
	var order []int
	var futures []*Future
	for i := 0; i < 5; i++ {
		i := i
		f, err := p.Submit(context.Background(), func(context.Context) (any, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		})
		require.NoError(t, err)
		futures = append(futures, f)
	}
	for i, f := range futures {
		v, err := f.Result()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestFuture_CancelQueuedNeverRuns(t *testing.T) {
	p := startPool(t, 1)

	release := make(chan struct{})
	blocker, err := p.Submit(context.Background(), func(context.Context) (any, error) {
		<-release
		return nil, nil
	})
	require.NoError(t, err)

	var ran atomic.Bool
	queued, err := p.Submit(context.Background(), func(context.Context) (any, error) {
		ran.Store(true)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, p.QueueDepth())

	queued.Cancel()
	_, err = queued.Result()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, queued.Started())
	assert.Equal(t, 0, p.QueueDepth())

	close(release)
	_, err = blocker.Result()
	require.NoError(t, err)
	assert.False(t, ran.Load())
}

func TestFuture_CancelRunningAbandons(t *testing.T) {
	p := startPool(t, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	f, err := p.Submit(context.Background(), func(context.Context) (any, error) {
		close(started)
		<-release // ignores ctx
		return "late", nil
	})
	require.NoError(t, err)

	<-started
	f.Cancel()
	v, err := f.Result()
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, v)
	assert.True(t, f.Started())
	close(release)
}

func TestPool_RecoversPanics(t *testing.T) {
	p := startPool(t, 1)

	f, err := p.Submit(context.Background(), func(context.Context) (any, error) { panic("boom") })
	require.NoError(t, err)
	_, err = f.Result()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// the worker survives
	f, err = p.Submit(context.Background(), func(context.Context) (any, error) { return 1, nil })
	require.NoError(t, err)
	v, err := f.Result()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestPool_ShutdownCancelsWork(t *testing.T) {
	p, err := NewPool(1, nil, zap.NewNop(), 0)
	require.NoError(t, err)
	require.NoError(t, p.Start())

	started := make(chan struct{})
	running, err := p.Submit(context.Background(), func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.NoError(t, err)
	queued, err := p.Submit(context.Background(), func(context.Context) (any, error) { return nil, nil })
	require.NoError(t, err)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))

	_, err = running.Result()
	assert.ErrorIs(t, err, context.Canceled)
	_, err = queued.Result()
	assert.True(t, errors.Is(err, ErrPoolClosed))

	_, err = p.Submit(context.Background(), func(context.Context) (any, error) { return nil, nil })
	assert.ErrorIs(t, err, ErrPoolClosed)

	for _, s := range p.GetStatus() {
		assert.Equal(t, WorkerStatusStopped, s)
	}
	assert.False(t, p.Health().IsHealthy())
}

func TestHealthMonitor_Status(t *testing.T) {
	p := startPool(t, 2)
	st := p.Health().GetStatus()
	assert.Equal(t, 2, st.TotalWorkers)
	assert.True(t, st.Healthy)
}

func TestFailures(t *testing.T) {
	var f Failures
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.Add(errors.New("x"))
		}()
	}
	f.Add(nil)
	wg.Wait()
	assert.Equal(t, 10, f.Len())
	assert.Len(t, f.Errors(), 10)
}

func TestFailures_RecordJoinsPerBatch(t *testing.T) {
	var f Failures
	first := errors.New("stage failed")
	second := errors.New("handler failed")

	f.Record(3, first)
	f.Record(1, errors.New("other batch"))
	f.Record(3, second)
	f.Record(3, nil)

	require.Equal(t, 2, f.Len())
	joined := f.Errors()[0]
	assert.ErrorIs(t, joined, first)
	assert.ErrorIs(t, joined, second)
	assert.Equal(t, "stage failed\nhandler failed", joined.Error())
	assert.EqualError(t, f.Errors()[1], "other batch")
}
