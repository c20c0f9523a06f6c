package iocore

import (
	"container/heap"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/metricz"
)

// NoDeadline is the sentinel NextDeadline returns when the WaitQueue holds
// no timers.
const NoDeadline int64 = -1

// WaitQueue is a mutex-protected ordered set of Timers keyed by
// (deadline, identity), whose expirations are promoted into a RunQueue.
// The ordered set is a container/heap-based binary heap offering O(log n)
// insert/remove/peek-min with a strict tiebreak on identity, traded against
// a hierarchical timer wheel's O(1) amortized insert for the common
// near-term case — an acceptable trade at the scale this is built for.
type WaitQueue struct {
	mu     sync.Mutex
	h      timerHeap
	nextID uint64
	clock  Clock
	wakeup func() // invoked outside mu when the earliest deadline changes

	metrics *metricz.Registry
	hooks   *hooks
}

// NewWaitQueue creates a WaitQueue using clock for "now" and invoking
// wakeup (which may be nil) whenever the earliest deadline changes. wakeup
// is always called with mu released, so it may safely call back into this
// WaitQueue without deadlocking.
func NewWaitQueue(clock Clock, wakeup func()) *WaitQueue {
	if clock == nil {
		clock = RealClock
	}
	return &WaitQueue{
		clock:   clock,
		wakeup:  wakeup,
		metrics: newWaitQueueMetrics(),
	}
}

func (wq *WaitQueue) now() int64 { return NowMillis(wq.clock) }

// Wait arms t to fire fn after intervalMS milliseconds. Returns
// ErrTimerActive if t is already waiting or ready.
func (wq *WaitQueue) Wait(t *Timer, intervalMS int64, fn func(*Timer)) error {
	if !atomic.CompareAndSwapInt32(&t.state, timerIdle, timerWaiting) {
		return ErrTimerActive
	}
	t.f = fn
	t.wq = wq

	wq.mu.Lock()
	wq.nextID++
	t.seq = wq.nextID
	t.deadline = wq.now() + intervalMS
	heap.Push(&wq.h, t)
	becameEarliest := wq.h[0] == t
	wq.metrics.Counter(MetricTimersScheduled).Inc()
	wq.metrics.Gauge(MetricWaitQueueDepth).Set(float64(wq.h.Len()))
	wq.mu.Unlock()

	if becameEarliest {
		wq.fireWakeup()
	}
	return nil
}

// Cancel rearms t to an already-past deadline so the next Dispatch promotes
// it immediately. If t is not currently waiting in this WaitQueue (already
// dispatched, already idle, or owned by another queue) Cancel is a no-op:
// this is a best-effort cancel, so one that loses the race with dispatch
// does not error, and the original callback still fires.
func (wq *WaitQueue) Cancel(t *Timer) {
	wq.mu.Lock()
	if atomic.LoadInt32(&t.state) != timerWaiting || t.wq != wq || t.index < 0 {
		wq.mu.Unlock()
		return
	}
	wasFirst := wq.h[0] == t
	t.deadline = 0
	heap.Fix(&wq.h, t.index)
	nowFirst := wq.h[0] == t
	wq.mu.Unlock()
	if wasFirst || nowFirst {
		wq.fireWakeup()
	}
}

// Reschedule atomically moves t to a new deadline (now + intervalMS).
// It is a no-op, like Cancel, if t is not currently waiting here.
func (wq *WaitQueue) Reschedule(t *Timer, intervalMS int64) {
	wq.mu.Lock()
	if atomic.LoadInt32(&t.state) != timerWaiting || t.wq != wq || t.index < 0 {
		wq.mu.Unlock()
		return
	}
	wasFirst := wq.h[0] == t
	t.deadline = wq.now() + intervalMS
	heap.Fix(&wq.h, t.index)
	nowFirst := wq.h[0] == t
	wq.mu.Unlock()
	if wasFirst || nowFirst {
		wq.fireWakeup()
	}
}

// NextDeadline returns milliseconds until the earliest deadline (0 if
// already past, NoDeadline if the set is empty).
func (wq *WaitQueue) NextDeadline() int64 {
	wq.mu.Lock()
	defer wq.mu.Unlock()
	if wq.h.Len() == 0 {
		return NoDeadline
	}
	d := wq.h[0].deadline - wq.now()
	if d < 0 {
		return 0
	}
	return d
}

// Dispatch promotes every timer whose deadline has passed into rq, up to
// limit promotions (0 = unlimited), and returns the count promoted.
func (wq *WaitQueue) Dispatch(rq *RunQueue, limit int) int {
	now := wq.now()
	n := 0
	for {
		if limit > 0 && n >= limit {
			break
		}
		wq.mu.Lock()
		if wq.h.Len() == 0 || wq.h[0].deadline > now {
			wq.mu.Unlock()
			break
		}
		t := heap.Pop(&wq.h).(*Timer)
		wq.metrics.Counter(MetricTimersDispatched).Inc()
		wq.metrics.Gauge(MetricWaitQueueDepth).Set(float64(wq.h.Len()))
		wq.mu.Unlock()

		atomic.StoreInt32(&t.state, timerReady)
		rq.Exec(&t.task, wq.makeTrampoline(t))
		wq.hooks.emit(HookTimerExpired, Event{Deadline: t.deadline})
		n++
	}
	return n
}

// makeTrampoline builds the Task callback for t: it invokes the user
// callback with the Timer pointer and returns the Timer to idle afterwards,
// since timers here are always one-shot — re-arming is the callback's own
// responsibility via another Wait call.
func (wq *WaitQueue) makeTrampoline(t *Timer) func(*Task) {
	return func(*Task) {
		fn := t.f
		t.wq = nil
		atomic.StoreInt32(&t.state, timerIdle)
		if fn != nil {
			fn(t)
		}
	}
}

func (wq *WaitQueue) fireWakeup() {
	if wq.wakeup != nil {
		wq.wakeup()
	}
}
