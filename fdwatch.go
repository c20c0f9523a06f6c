package iocore

import (
	"sync"
	"sync/atomic"
)

const (
	watchIdle int32 = iota
	watchArmed
)

// FdWatch binds one file descriptor to one IOQueue and delivers readiness
// as an asynchronous callback, analogous to Timer binding a deadline to a
// WaitQueue. At most one watch exists per fd per IOQueue, and at most one
// wait may be outstanding on a watch at a time.
type FdWatch struct {
	task Task

	mu      sync.Mutex
	ioq     *IOQueue
	fd      int
	armed   EventMask // mask currently registered with the poller
	state   int32     // atomic; watchIdle or watchArmed
	pending EventMask // set by the poll loop, consumed by the trampoline
	f       func(*FdWatch, EventMask)
}

// NewFdWatch binds fd to ioq. fd must not already be registered with ioq;
// registering the same fd twice returns ErrFdAlreadyUsed.
func NewFdWatch(ioq *IOQueue, fd int) (*FdWatch, error) {
	if fd < 0 {
		return nil, ErrInvalidFd
	}
	w := &FdWatch{ioq: ioq, fd: fd}
	if err := ioq.registerWatch(w); err != nil {
		return nil, err
	}
	return w, nil
}

// Fd returns the watched descriptor.
func (w *FdWatch) Fd() int { return w.fd }

// Wait arms w to fire fn once any bit in mask becomes ready. Returns
// ErrWatchActive if a wait is already outstanding.
func (w *FdWatch) Wait(mask EventMask, fn func(*FdWatch, EventMask)) error {
	if !atomic.CompareAndSwapInt32(&w.state, watchIdle, watchArmed) {
		return ErrWatchActive
	}
	w.mu.Lock()
	w.f = fn
	newMask := mask
	changed := newMask != w.armed
	w.armed = newMask
	ioq := w.ioq
	fd := w.fd
	w.mu.Unlock()

	if changed {
		if err := ioq.modifyWatch(fd, newMask); err != nil {
			atomic.StoreInt32(&w.state, watchIdle)
			return err
		}
	}
	return nil
}

// Cancel disarms an outstanding wait and promotes it into the RunQueue
// immediately with a zero (cancellation-indicating) event mask, so a wait
// that was actually pending still gets exactly one callback delivery.
// Idempotent and safe to call from any thread, including concurrently
// with a racing delivery: the CAS below ensures only one of Cancel or a
// real delivery wins, so a Cancel that loses the race against an
// already-promoted real event is a no-op and the real event's callback
// still runs — matching Timer's best-effort cancellation policy.
func (w *FdWatch) Cancel() {
	if !atomic.CompareAndSwapInt32(&w.state, watchArmed, watchIdle) {
		return
	}
	w.mu.Lock()
	fn := w.f
	w.f = nil
	w.mu.Unlock()
	if fn == nil {
		return
	}
	w.ioq.rq.Exec(&w.task, func(*Task) {
		fn(w, 0)
	})
}

// Close removes w from its IOQueue and releases the fd's registration.
// The underlying fd is not closed; the caller owns its lifetime.
func (w *FdWatch) Close() error {
	w.Cancel()
	return w.ioq.unregisterWatch(w)
}

// deliver is called by IOQueue's poll loop with the observed readiness
// mask. It records the mask and, if a wait is armed for any bit in it,
// promotes the callback into the RunQueue exactly once. The CAS below is
// the same one Cancel uses to disarm, so exactly one of deliver/Cancel
// wins any race between a real event and a concurrent cancel.
func (w *FdWatch) deliver(mask EventMask) {
	w.mu.Lock()
	w.pending |= mask
	satisfied := w.pending&w.armed != 0
	w.mu.Unlock()
	if !satisfied {
		return
	}
	if !atomic.CompareAndSwapInt32(&w.state, watchArmed, watchIdle) {
		return
	}
	w.mu.Lock()
	fired := w.pending & w.armed
	w.pending &^= fired
	fn := w.f
	w.f = nil
	w.mu.Unlock()

	if fn == nil {
		return
	}
	w.ioq.rq.Exec(&w.task, func(*Task) {
		fn(w, fired)
	})
	w.ioq.hooks.emit(HookFdEvent, Event{Fd: w.fd, Mask: fired})
}
