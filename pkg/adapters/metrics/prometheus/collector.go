package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	jobsSubmitted     *prometheus.CounterVec
	jobsCompleted     *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	batchesExecuted   *prometheus.CounterVec
	batchDuration     *prometheus.HistogramVec
	stageFailures     *prometheus.CounterVec
	mergeDuration     prometheus.Histogram
	activeJobs        prometheus.Gauge
	queueDepth        prometheus.Gauge
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
}

// NewCollector registers the batchflow metrics on reg. A nil reg uses the
// default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		jobsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchflow_jobs_submitted_total",
				Help: "Total number of jobs submitted",
			},
			[]string{"status"},
		),
		jobsCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchflow_jobs_completed_total",
				Help: "Total number of jobs that reached a terminal status",
			},
			[]string{"status"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batchflow_job_duration_seconds",
				Help:    "Job execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		batchesExecuted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchflow_batches_executed_total",
				Help: "Total number of batches executed",
			},
			[]string{"status"},
		),
		batchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "batchflow_batch_duration_seconds",
				Help:    "Batch execution duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"status"},
		),
		stageFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "batchflow_stage_failures_total",
				Help: "Total number of stage failures",
			},
			[]string{"stage"},
		),
		mergeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "batchflow_merge_duration_seconds",
				Help:    "Duration of one merge-back transaction in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		activeJobs: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "batchflow_active_jobs",
				Help: "Number of currently running jobs",
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "batchflow_queue_depth",
				Help: "Tasks waiting for a worker in the shared pool",
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "batchflow_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "batchflow_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "batchflow_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordJobSubmitted records a job submission
func (c *Collector) RecordJobSubmitted(status string) {
	c.jobsSubmitted.WithLabelValues(status).Inc()
}

// RecordJobCompleted records a job reaching a terminal status
func (c *Collector) RecordJobCompleted(status string, duration time.Duration) {
	c.jobsCompleted.WithLabelValues(status).Inc()
	c.jobDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordBatchExecuted records one finished batch
func (c *Collector) RecordBatchExecuted(status string, duration time.Duration) {
	c.batchesExecuted.WithLabelValues(status).Inc()
	c.batchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordStageFailed counts a failure of the named stage
func (c *Collector) RecordStageFailed(stage string) {
	c.stageFailures.WithLabelValues(stage).Inc()
}

// RecordMerge observes one merge-back transaction
func (c *Collector) RecordMerge(duration time.Duration) {
	c.mergeDuration.Observe(duration.Seconds())
}

func (c *Collector) SetActiveJobs(count int) {
	c.activeJobs.Set(float64(count))
}

func (c *Collector) SetQueueDepth(depth int) {
	c.queueDepth.Set(float64(depth))
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
