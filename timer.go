package iocore

import "sync/atomic"

// Timer states: idle, waiting, ready.
const (
	timerIdle int32 = iota
	timerWaiting
	timerReady
)

// Timer embeds a Task plus a deadline and belongs to at most one
// WaitQueue's ordered set at a time. Since a Timer only ever sits in one
// WaitQueue's heap, a plain atomic state int plus a heap index is enough to
// get a "no allocation, cannot fail" arm/disarm path without needing a
// bit-packed state word to track membership in several lists at once.
type Timer struct {
	task     Task
	deadline int64 // ms, absolute
	seq      uint64
	index    int // position in the owning WaitQueue's heap, -1 if not in it
	state    int32
	wq       *WaitQueue
	f        func(*Timer)
}

// NewTimer returns an idle Timer ready for use with WaitQueue.Wait.
func NewTimer() *Timer {
	return &Timer{index: -1}
}

// Deadline returns the absolute deadline (ms) the timer was last armed
// with. Valid to call from any thread; racy if the timer is concurrently
// being rearmed, same caveat as any other field read outside the object's
// own synchronization.
func (t *Timer) Deadline() int64 { return atomic.LoadInt64(&t.deadline) }

// timerHeap implements container/heap.Interface, keyed by (deadline, seq)
// for a strict total order: two timers armed for the same millisecond
// still compare unequal and dispatch in arming order. index is kept in
// sync on Swap so a Timer can be removed by position in O(log n) instead
// of only ever popping the root.
type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
