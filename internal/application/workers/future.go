package workers

import (
	"context"
	"sync"
	"sync/atomic"
)

// Future is the pending result of a Task
type Future struct {
	pool   *Pool
	task   Task
	ctx    context.Context
	cancel context.CancelFunc

	started atomic.Bool
	once    sync.Once
	done    chan struct{}
	value   any
	err     error
}

func newFuture(p *Pool, ctx context.Context, cancel context.CancelFunc, task Task) *Future {
	return &Future{pool: p, task: task, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Done is closed once the future has a result
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Started reports whether a worker picked the task up
func (f *Future) Started() bool {
	return f.started.Load()
}

// Result blocks until the future completes
func (f *Future) Result() (any, error) {
	<-f.done
	return f.value, f.err
}

// Wait is Result bounded by ctx
func (f *Future) Wait(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel completes the future with context.Canceled. A queued task is
// removed and never runs. A running task has its context cancelled and is
// abandoned: it may keep running, but its result is discarded.
func (f *Future) Cancel() {
	if f.pool != nil {
		f.pool.dequeue(f)
	}
	f.cancel()
	f.complete(nil, context.Canceled)
}

func (f *Future) markStarted() {
	f.started.Store(true)
}

func (f *Future) complete(v any, err error) {
	f.once.Do(func() {
		f.value = v
		f.err = err
		close(f.done)
		f.cancel()
	})
}
