// Package diag carries the per-job report shared by every worker of a job:
// a correlated logger, progress counters and messages emitted by stages.
package diag

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Progress is a point-in-time copy of a report's counters
type Progress struct {
	Total     int64 `json:"total"`
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Merged    int64 `json:"merged"`
}

// Report is created by the caller of a job and handed by reference to every
// worker. Counters and messages are safe for concurrent use.
type Report struct {
	jobID   string
	logger  *zap.Logger
	started time.Time

	total     atomic.Int64
	begun     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	merged    atomic.Int64

	mu       sync.Mutex
	messages []string
}

// NewReport creates a report whose logger carries the job id
func NewReport(jobID string, logger *zap.Logger) *Report {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Report{
		jobID:   jobID,
		logger:  logger.With(zap.String("job_id", jobID)),
		started: time.Now(),
	}
}

func (r *Report) JobID() string       { return r.jobID }
func (r *Report) Logger() *zap.Logger { return r.logger }

// ForBatch returns a logger correlated with job and batch
func (r *Report) ForBatch(index int) *zap.Logger {
	return r.logger.With(zap.Int("batch", index))
}

func (r *Report) SetTotal(n int) { r.total.Store(int64(n)) }
func (r *Report) BatchStarted()  { r.begun.Add(1) }
func (r *Report) BatchDone()     { r.completed.Add(1) }
func (r *Report) BatchFailed()   { r.failed.Add(1) }
func (r *Report) BatchMerged()   { r.merged.Add(1) }

// Progress returns the current counters
func (r *Report) Progress() Progress {
	return Progress{
		Total:     r.total.Load(),
		Started:   r.begun.Load(),
		Completed: r.completed.Load(),
		Failed:    r.failed.Load(),
		Merged:    r.merged.Load(),
	}
}

// Elapsed returns the time since the report was created
func (r *Report) Elapsed() time.Duration {
	return time.Since(r.started)
}

// Note records a user-facing message and logs it
func (r *Report) Note(msg string, fields ...zap.Field) {
	r.mu.Lock()
	r.messages = append(r.messages, msg)
	r.mu.Unlock()
	r.logger.Info(msg, fields...)
}

// Messages returns a copy of the recorded messages
func (r *Report) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

type reportKey struct{}

// WithReport attaches r to ctx
func WithReport(ctx context.Context, r *Report) context.Context {
	return context.WithValue(ctx, reportKey{}, r)
}

// FromContext returns the report attached to ctx, or a detached report with a
// no-op logger when there is none.
func FromContext(ctx context.Context) *Report {
	if r, ok := ctx.Value(reportKey{}).(*Report); ok {
		return r
	}
	return NewReport("", nil)
}
