package workers

import (
	"errors"
	"sync"
)

// Failures is the append-only error list shared by the workers of a job.
// Errors recorded for the same batch are joined into a single entry.
type Failures struct {
	mu      sync.Mutex
	errs    []error
	batches map[int]int
}

func (f *Failures) Add(err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	f.errs = append(f.errs, err)
	f.mu.Unlock()
}

// Record adds err as the failure of batch, joining it with any failure
// already recorded for that batch
func (f *Failures) Record(batch int, err error) {
	if err == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if i, ok := f.batches[batch]; ok {
		f.errs[i] = errors.Join(f.errs[i], err)
		return
	}
	if f.batches == nil {
		f.batches = make(map[int]int)
	}
	f.batches[batch] = len(f.errs)
	f.errs = append(f.errs, err)
}

// Errors returns a copy of the recorded errors in insertion order
func (f *Failures) Errors() []error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]error(nil), f.errs...)
}

func (f *Failures) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errs)
}
