package nop

import "time"

// Collector discards all metrics
type Collector struct{}

func (Collector) RecordJobSubmitted(string) {}

func (Collector) RecordJobCompleted(string, time.Duration) {}

func (Collector) RecordBatchExecuted(string, time.Duration) {}

func (Collector) RecordStageFailed(string) {}

func (Collector) RecordMerge(time.Duration) {}

func (Collector) SetActiveJobs(int) {}

func (Collector) SetQueueDepth(int) {}

func (Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {}
