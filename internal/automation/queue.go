package automation

import (
	"context"
	"sync"
	"time"
)

// Job is one scene execution request waiting on the queue.
type Job struct {
	Selector   string
	Scope      *Scope
	EnqueuedAt time.Time
}

// Queue runs jobs one at a time in enqueue order.
//
// A worker goroutine is started when a job arrives on an idle queue and
// exits once the queue is empty, after firing the pending drain
// listeners. Jobs enqueued while a job runs (chained scenes) are appended
// behind everything already waiting.
type Queue struct {
	process func(Job)
	logger  Logger
	metrics *Metrics

	mu       sync.Mutex
	pending  []Job
	running  bool
	closed   bool
	drainers []func()
	worker   sync.WaitGroup
}

// NewQueue creates a queue that hands each job to process.
func NewQueue(process func(Job), logger Logger, metrics *Metrics) *Queue {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Queue{process: process, logger: logger, metrics: metrics}
}

// Enqueue schedules selector against scope unless scope has already
// dispatched selector or the queue is closed. It reports whether a job
// was pushed.
func (q *Queue) Enqueue(selector string, scope *Scope) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.logger.Debug("queue closed, dropping scene", "scene", selector)
		return false
	}

	if !scope.claim(selector) {
		q.logger.Debug("scene already dispatched in this scope",
			"scene", selector,
			"root_id", scope.ID(),
		)
		q.metrics.dedupHit()
		return false
	}

	q.pending = append(q.pending, Job{Selector: selector, Scope: scope, EnqueuedAt: time.Now()})
	q.metrics.queueDepth(len(q.pending))

	if !q.running {
		q.running = true
		q.worker.Add(1)
		go q.drain()
	}
	return true
}

// drain runs jobs until the queue is empty.
//
// The worker is marked done before the drain listeners fire so a listener
// may call Close.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			listeners := q.drainers
			q.drainers = nil
			q.mu.Unlock()
			q.worker.Done()

			for _, fn := range listeners {
				fn()
			}
			return
		}

		job := q.pending[0]
		q.pending[0] = Job{}
		q.pending = q.pending[1:]
		q.metrics.queueDepth(len(q.pending))
		q.mu.Unlock()

		q.run(job)
	}
}

func (q *Queue) run(job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			q.logger.Error("scene job panicked",
				"scene", job.Selector,
				"root_id", job.Scope.ID(),
				"panic", rec,
			)
		}
	}()
	q.process(job)
}

// StartDrainListener calls fn once the queue has no pending or running
// jobs. If the queue is already idle fn is called immediately.
func (q *Queue) StartDrainListener(fn func()) {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		fn()
		return
	}
	q.drainers = append(q.drainers, fn)
	q.mu.Unlock()
}

// Wait blocks until the queue drains or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	q.StartDrainListener(func() { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of jobs waiting, excluding the running one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Idle reports whether no job is pending or running.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.running
}

// Close stops accepting jobs and waits for the worker to finish what is
// already queued.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.worker.Wait()
}
