package iocore

import (
	"sync"
	"sync/atomic"

	"github.com/zoobzio/metricz"
)

// Mailbox is a 32-bit flag register with level-triggered asynchronous
// waits, for inter-strand signalling. Raise and Take are safe from any
// thread at any time, including inside callbacks; only one subscription
// (Wait or WaitAll) may be outstanding at a time.
type Mailbox struct {
	state uint32 // atomic flag word

	mu      sync.Mutex
	rq      *RunQueue
	waiting bool
	waiter  mbWaiter // reused in place; no allocation per wait

	metrics *metricz.Registry
	hooks   *hooks
}

type mbWaiter struct {
	mask uint32
	all  bool
	fn   func(*Mailbox)
	task Task
}

// NewMailbox creates a Mailbox whose waiters are promoted into rq.
func NewMailbox(rq *RunQueue) *Mailbox {
	return &Mailbox{rq: rq, metrics: newMailboxMetrics(), hooks: rq.hooks}
}

// Raise atomically ORs mask into the flag word, then evaluates any pending
// waiter under the mailbox lock, promoting it if its predicate is now
// satisfied.
func (mb *Mailbox) Raise(mask uint32) {
	for {
		cur := atomic.LoadUint32(&mb.state)
		if atomic.CompareAndSwapUint32(&mb.state, cur, cur|mask) {
			break
		}
	}
	mb.metrics.Counter(MetricMailboxRaises).Inc()

	mb.mu.Lock()
	if mb.waiting && mb.predicateLocked() {
		w := mb.waiter
		mb.waiting = false
		mb.mu.Unlock()
		mb.promote(w)
		return
	}
	mb.mu.Unlock()
}

// Take atomically reads and clears state & mask, returning the value prior
// to clearing. Take is the sole clearer of flag bits.
func (mb *Mailbox) Take(mask uint32) uint32 {
	for {
		cur := atomic.LoadUint32(&mb.state)
		if atomic.CompareAndSwapUint32(&mb.state, cur, cur&^mask) {
			mb.metrics.Counter(MetricMailboxTakes).Inc()
			return cur & mask
		}
	}
}

// predicateLocked must be called with mb.mu held.
func (mb *Mailbox) predicateLocked() bool {
	cur := atomic.LoadUint32(&mb.state)
	if mb.waiter.all {
		return cur&mb.waiter.mask == mb.waiter.mask
	}
	return cur&mb.waiter.mask != 0
}

// Wait subscribes in ANY mode: fn fires once state&mask != 0. Returns
// ErrWaitPending if a waiter is already registered.
func (mb *Mailbox) Wait(mask uint32, fn func(*Mailbox)) error {
	return mb.subscribe(mask, false, fn)
}

// WaitAll subscribes in ALL mode: fn fires once state&mask == mask.
func (mb *Mailbox) WaitAll(mask uint32, fn func(*Mailbox)) error {
	return mb.subscribe(mask, true, fn)
}

func (mb *Mailbox) subscribe(mask uint32, all bool, fn func(*Mailbox)) error {
	mb.mu.Lock()
	if mb.waiting {
		mb.mu.Unlock()
		return ErrWaitPending
	}
	mb.waiter = mbWaiter{mask: mask, all: all, fn: fn}
	mb.waiting = true
	satisfied := mb.predicateLocked()
	if satisfied {
		mb.waiting = false
	}
	w := mb.waiter
	mb.mu.Unlock()

	if satisfied {
		// Level-triggered: the predicate already held at subscription
		// time, so deliver without waiting for a future Raise, but still
		// asynchronously through the RunQueue.
		mb.promote(w)
	}
	return nil
}

func (mb *Mailbox) promote(w mbWaiter) {
	mb.rq.Exec(&w.task, func(*Task) {
		w.fn(mb)
	})
	mb.hooks.emit(HookMailboxSignalled, Event{})
}
