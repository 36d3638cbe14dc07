package testutil

import "sync"

// ProgressRecorder is a blobtypes.ProgressTracker that keeps every callback
// for later inspection. It is safe for concurrent use.
type ProgressRecorder struct {
	mu       sync.Mutex
	reported []int64
	total    int64
	done     bool
	failure  error
}

func (r *ProgressRecorder) Update(transferred, total int64) {
	r.mu.Lock()
	r.reported = append(r.reported, transferred)
	r.total = total
	r.mu.Unlock()
}

func (r *ProgressRecorder) Complete() {
	r.mu.Lock()
	r.done = true
	r.mu.Unlock()
}

func (r *ProgressRecorder) Error(err error) {
	r.mu.Lock()
	r.failure = err
	r.mu.Unlock()
}

// Reported returns the cumulative byte counts in the order they arrived.
func (r *ProgressRecorder) Reported() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.reported...)
}

// Last returns the most recent cumulative byte count, or 0.
func (r *ProgressRecorder) Last() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reported) == 0 {
		return 0
	}
	return r.reported[len(r.reported)-1]
}

// Total returns the total size passed with the latest update.
func (r *ProgressRecorder) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Completed reports whether Complete was called.
func (r *ProgressRecorder) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Failure returns the error passed to Error, if any.
func (r *ProgressRecorder) Failure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failure
}
