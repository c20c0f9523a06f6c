package iocore

import (
	"context"
	"sync"

	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// IOQueue composes a RunQueue, a WaitQueue and an OS readiness poller into
// a single event loop: one goroutine (the caller of Iterate) blocks in the
// OS poll, wakes on fd readiness, timer deadlines or an explicit Notify,
// and promotes completions into the RunQueue for the worker pool to run.
type IOQueue struct {
	rq *RunQueue
	wq *WaitQueue
	p  poller

	mu      sync.Mutex
	watches map[int]*FdWatch
	polled  map[int]bool // fds currently registered with p, vs. just tracked

	iterateMu sync.Mutex // serializes concurrent Iterate callers

	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hooks

	closed bool
}

// NewIOQueue creates an IOQueue with a RunQueue of workers worker
// goroutines (<=0 auto-detects) and a WaitQueue driven by clock (nil uses
// RealClock).
func NewIOQueue(workers int, clock Clock) (*IOQueue, error) {
	tracer := tracez.New()
	h := newHooks()

	rq, err := newRunQueue(workers, tracer, h)
	if err != nil {
		return nil, err
	}
	p, err := newPoller()
	if err != nil {
		rq.Destroy()
		return nil, err
	}
	ioq := &IOQueue{
		rq:      rq,
		p:       p,
		watches: make(map[int]*FdWatch),
		polled:  make(map[int]bool),
		metrics: newIOQueueMetrics(),
		tracer:  tracer,
		hooks:   h,
	}
	ioq.wq = NewWaitQueue(clock, func() { _ = ioq.p.wake() })
	ioq.wq.hooks = h
	return ioq, nil
}

// RunQueue returns the IOQueue's worker pool, for arming plain Tasks
// independent of any timer or fd.
func (ioq *IOQueue) RunQueue() *RunQueue { return ioq.rq }

// WaitQueue returns the IOQueue's timer set.
func (ioq *IOQueue) WaitQueue() *WaitQueue { return ioq.wq }

// Notify wakes a goroutine blocked in Iterate, even if no fd is ready and
// no timer has expired. Safe to call from any thread.
func (ioq *IOQueue) Notify() error {
	return ioq.p.wake()
}

// On registers handler for one of the Hook* keys. The registry is shared
// with the IOQueue's RunQueue, WaitQueue, fd watches and any Mailbox built
// on its RunQueue.
func (ioq *IOQueue) On(key hookz.Key, handler func(context.Context, Event) error) error {
	return ioq.hooks.On(key, handler)
}

func (ioq *IOQueue) registerWatch(w *FdWatch) error {
	ioq.mu.Lock()
	defer ioq.mu.Unlock()
	if ioq.closed {
		return ErrShuttingDown
	}
	if _, exists := ioq.watches[w.fd]; exists {
		return ErrFdAlreadyUsed
	}
	ioq.watches[w.fd] = w
	return nil
}

func (ioq *IOQueue) unregisterWatch(w *FdWatch) error {
	ioq.mu.Lock()
	defer ioq.mu.Unlock()
	delete(ioq.watches, w.fd)
	if ioq.polled[w.fd] {
		delete(ioq.polled, w.fd)
		return ioq.p.remove(w.fd)
	}
	return nil
}

func (ioq *IOQueue) modifyWatch(fd int, mask EventMask) error {
	ioq.mu.Lock()
	first := !ioq.polled[fd]
	if first {
		ioq.polled[fd] = true
	}
	ioq.mu.Unlock()

	if first {
		return ioq.p.add(fd, mask)
	}
	return ioq.p.modify(fd, mask)
}

// Iterate runs a single poll cycle: it blocks for at most timeoutMS
// milliseconds (a negative value means no cap), shortened automatically to
// the WaitQueue's earliest deadline if that is sooner. Ready fd watches are
// delivered first, then expired timers are dispatched; this order is fixed
// and does not depend on which became ready first. Only one goroutine may be inside
// Iterate at a time; concurrent callers block on each other via
// iterateMu, since the poller itself is not safe to drive from two
// goroutines simultaneously.
func (ioq *IOQueue) Iterate(timeoutMS int64) error {
	ioq.iterateMu.Lock()
	defer ioq.iterateMu.Unlock()

	_, span := startSpan(context.Background(), ioq.tracer, SpanIterate)
	defer finishSpan(span)

	wait := timeoutMS
	if d := ioq.wq.NextDeadline(); d != NoDeadline {
		if wait < 0 || d < wait {
			wait = d
		}
	}

	events, err := ioq.p.wait(wait)
	if err != nil {
		return err
	}

	ioq.mu.Lock()
	for _, ev := range events {
		if w, ok := ioq.watches[ev.fd]; ok {
			ioq.mu.Unlock()
			w.deliver(ev.mask)
			ioq.mu.Lock()
		}
	}
	ioq.mu.Unlock()
	ioq.metrics.Counter(MetricFdEventsObserved).Add(float64(len(events)))

	ioq.wq.Dispatch(ioq.rq, 0)

	ioq.metrics.Counter(MetricIterateCycles).Inc()
	return nil
}

// Destroy closes the poller and shuts down the worker pool, draining any
// already-queued callbacks first.
func (ioq *IOQueue) Destroy() {
	ioq.mu.Lock()
	ioq.closed = true
	ioq.mu.Unlock()
	_ = ioq.p.close()
	ioq.rq.Destroy()
}
