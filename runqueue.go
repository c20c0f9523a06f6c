package iocore

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
	"go.uber.org/automaxprocs/maxprocs"
)

var autoMaxProcsOnce sync.Once

// RunQueue is a pool of N worker goroutines draining a single FIFO of
// ready Tasks. Ordering is FIFO within the queue; up to N callbacks run
// concurrently across workers with no mutual exclusion beyond what the
// caller provides.
type RunQueue struct {
	mu       sync.Mutex
	cond     sync.Cond
	head     *Task // FIFO, oldest first
	tail     *Task
	depth    int32 // atomic, mirrors the gauge for lock-free reads
	shutdown bool
	wg       sync.WaitGroup

	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hooks
}

// NewRunQueue creates and starts a RunQueue with n worker goroutines. n <= 0
// auto-detects the worker count via runtime.GOMAXPROCS, first reconciling
// GOMAXPROCS against any container CPU quota through go.uber.org/
// automaxprocs.
func NewRunQueue(n int) (*RunQueue, error) {
	return newRunQueue(n, nil, nil)
}

// newRunQueue is the shared constructor: tracer and h are set before any
// worker goroutine starts, so IOQueue can wire its own tracer/hooks into a
// RunQueue it owns without a data race against already-running workers.
func newRunQueue(n int, tracer *tracez.Tracer, h *hooks) (*RunQueue, error) {
	if n <= 0 {
		autoMaxProcsOnce.Do(func() {
			_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
		})
		n = runtime.GOMAXPROCS(0)
	}
	if n < 1 {
		return nil, ErrBadWorkerCount
	}
	rq := &RunQueue{metrics: newRunQueueMetrics(), tracer: tracer, hooks: h}
	rq.cond.L = &rq.mu
	rq.wg.Add(n)
	for i := 0; i < n; i++ {
		go rq.worker()
	}
	return rq, nil
}

// Exec sets task's callback to fn, appends it to the FIFO and wakes one
// waiting worker. Non-blocking, never fails — a double-Exec on an
// already-ready Task is ignored (a Task may only be enqueued once) and
// only logged at WARN level rather than panicking on caller misuse.
func (rq *RunQueue) Exec(t *Task, fn func(*Task)) {
	if !t.arm(fn) {
		if WARNon() {
			WARN("Exec called on already-ready task %p\n", t)
		}
		return
	}
	rq.mu.Lock()
	if rq.shutdown {
		rq.mu.Unlock()
		if WARNon() {
			WARN("Exec called after shutdown, task %p dropped\n", t)
		}
		t.disarm()
		return
	}
	t.next = nil
	if rq.tail == nil {
		rq.head, rq.tail = t, t
	} else {
		rq.tail.next = t
		rq.tail = t
	}
	atomic.AddInt32(&rq.depth, 1)
	rq.metrics.Gauge(MetricRunQueueDepth).Set(float64(atomic.LoadInt32(&rq.depth)))
	rq.cond.Signal()
	rq.mu.Unlock()
}

// Depth returns the current FIFO length, for diagnostics.
func (rq *RunQueue) Depth() int {
	return int(atomic.LoadInt32(&rq.depth))
}

func (rq *RunQueue) worker() {
	defer rq.wg.Done()
	for {
		rq.mu.Lock()
		for rq.head == nil && !rq.shutdown {
			rq.cond.Wait()
		}
		if rq.head == nil && rq.shutdown {
			rq.mu.Unlock()
			return
		}
		t := rq.head
		rq.head = t.next
		if rq.head == nil {
			rq.tail = nil
		}
		atomic.AddInt32(&rq.depth, -1)
		rq.metrics.Gauge(MetricRunQueueDepth).Set(float64(atomic.LoadInt32(&rq.depth)))
		rq.mu.Unlock()

		_, span := startSpan(context.Background(), rq.tracer, SpanCallback)
		fn := t.fn
		t.disarm()
		fn(t)
		finishSpan(span)
		rq.metrics.Counter(MetricTasksExecuted).Inc()
		rq.hooks.emit(HookTaskPromoted, Event{})
	}
}

// Destroy signals shutdown and waits for all workers to drain the FIFO and
// exit. The caller must not call Exec again after deciding to shut down;
// pending tasks already in the FIFO run to completion first.
func (rq *RunQueue) Destroy() {
	rq.mu.Lock()
	rq.shutdown = true
	rq.mu.Unlock()
	rq.cond.Broadcast()
	rq.wg.Wait()
}
