package scan

import (
	"context"
	"sync"
)

// Host is the event loop a scan yields back to between slices.
type Host interface {
	// Enqueue schedules fn to run on the host's loop after pending work.
	Enqueue(fn func())
}

// Queue is a FIFO task queue that serves as the host for headless scans.
// Enqueue may be called from any goroutine; tasks run on the goroutine
// that calls RunNext or Drain.
type Queue struct {
	mu    sync.Mutex
	tasks []func()
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue implements Host.
func (q *Queue) Enqueue(fn func()) {
	q.mu.Lock()
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// RunNext runs the oldest pending task. It reports false if none was pending.
func (q *Queue) RunNext() bool {
	q.mu.Lock()
	if len(q.tasks) == 0 {
		q.mu.Unlock()
		return false
	}
	fn := q.tasks[0]
	q.tasks[0] = nil
	q.tasks = q.tasks[1:]
	q.mu.Unlock()

	fn()
	return true
}

// Drain runs tasks until the queue is empty or ctx is done.
func (q *Queue) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !q.RunNext() {
			return nil
		}
	}
}
