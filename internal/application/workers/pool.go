package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aescanero/batchflow/pkg/ports"
)

// ErrPoolClosed is returned when submitting to a closed pool
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a unit of work run by the pool
type Task func(ctx context.Context) (any, error)

// Pool manages a fixed number of worker goroutines fed from a FIFO queue
type Pool struct {
	size    int
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*Future
	closed  bool
	started bool

	workers []*worker
	wg      sync.WaitGroup
}

// worker represents a single worker goroutine
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	current *Future
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a pool of size workers. A zero healthCheckInterval
// disables the health monitor loop.
func NewPool(size int, metrics ports.MetricsCollector, logger *zap.Logger, healthCheckInterval time.Duration) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("pool size must be at least 1, got %d", size)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool := &Pool{
		size:    size,
		metrics: metrics,
		logger:  logger,
		workers: make([]*worker, size),
	}
	pool.cond = sync.NewCond(&pool.mu)
	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)
	return pool, nil
}

// Start starts the worker goroutines
func (p *Pool) Start() error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return nil
	}
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.started = true
	p.mu.Unlock()

	p.logger.Debug("starting worker pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("worker-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run()
	}

	p.health.Start()
	return nil
}

// Size returns the number of workers
func (p *Pool) Size() int {
	return p.size
}

// QueueDepth returns the number of tasks waiting for a worker
func (p *Pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Submit queues task. The task's context is derived from ctx and is also
// cancelled by Future.Cancel and Shutdown.
func (p *Pool) Submit(ctx context.Context, task Task) (*Future, error) {
	if task == nil {
		return nil, errors.New("task is required")
	}
	fctx, cancel := context.WithCancel(ctx)
	f := newFuture(p, fctx, cancel, task)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		return nil, ErrPoolClosed
	}
	p.queue = append(p.queue, f)
	depth := len(p.queue)
	p.mu.Unlock()

	p.cond.Signal()
	if p.metrics != nil {
		p.metrics.SetQueueDepth(depth)
	}
	return f, nil
}

// dequeue removes f if it is still queued
func (p *Pool) dequeue(f *Future) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, q := range p.queue {
		if q == f {
			p.queue = append(p.queue[:i:i], p.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Close stops accepting tasks. Queued tasks still run; workers exit when the
// queue is empty. Close does not wait.
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.health.Stop()
}

// Shutdown stops accepting tasks, cancels queued and running ones and waits
// for the workers to exit or ctx to end.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down worker pool")

	p.mu.Lock()
	p.closed = true
	queued := p.queue
	p.queue = nil
	p.mu.Unlock()
	p.cond.Broadcast()
	p.health.Stop()

	for _, f := range queued {
		f.complete(nil, ErrPoolClosed)
	}
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		if w.current != nil {
			w.current.cancel()
		}
		w.mu.RUnlock()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

// GetStatus returns the status of all workers
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		if w == nil {
			continue
		}
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// next blocks until a task is queued or the pool is closed and drained
func (p *Pool) next() (*Future, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.cond.Wait()
	}
	if len(p.queue) == 0 {
		return nil, false
	}
	f := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	f.markStarted()
	return f, true
}

// run is the main worker loop
func (w *worker) run() {
	defer w.pool.wg.Done()
	defer func() {
		w.mu.Lock()
		w.status = WorkerStatusStopped
		w.mu.Unlock()
	}()

	for {
		f, ok := w.pool.next()
		if !ok {
			return
		}
		w.execute(f)
	}
}

func (w *worker) execute(f *Future) {
	w.mu.Lock()
	w.status = WorkerStatusBusy
	w.current = f
	w.lastJob = time.Now()
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.status = WorkerStatusIdle
		w.current = nil
		w.mu.Unlock()
	}()

	var (
		value any
		err   error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
				w.pool.logger.Error("task panicked",
					zap.String("worker_id", w.id),
					zap.Any("panic", r))
			}
		}()
		if cerr := f.ctx.Err(); cerr != nil {
			err = cerr
			return
		}
		value, err = f.task(f.ctx)
	}()
	f.complete(value, err)
}
