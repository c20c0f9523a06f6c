package iocore

import (
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func TestFdWatchCancelPromotesWithZeroMask(t *testing.T) {
	ioq, err := NewIOQueue(1, nil)
	if err != nil {
		t.Fatalf("NewIOQueue: %v", err)
	}
	defer ioq.Destroy()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	watch, err := NewFdWatch(ioq, int(r.Fd()))
	if err != nil {
		t.Fatalf("NewFdWatch: %v", err)
	}

	fired := make(chan EventMask, 1)
	if err := watch.Wait(EventReadable, func(_ *FdWatch, mask EventMask) {
		fired <- mask
	}); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	// Nothing has been written to the pipe, so the fd never becomes ready;
	// Cancel must still deliver exactly one callback, with a zero mask.
	watch.Cancel()

	select {
	case mask := <-fired:
		if mask != 0 {
			t.Fatalf("expected zero cancellation mask, got %v", mask)
		}
	case <-time.After(time.Second):
		t.Fatal("Cancel on a pending wait never delivered a callback")
	}
}

func TestFdWatchCancelIdempotentAfterDelivery(t *testing.T) {
	ioq, err := NewIOQueue(1, nil)
	if err != nil {
		t.Fatalf("NewIOQueue: %v", err)
	}
	defer ioq.Destroy()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	watch, err := NewFdWatch(ioq, int(r.Fd()))
	if err != nil {
		t.Fatalf("NewFdWatch: %v", err)
	}

	var fires int32
	fired := make(chan struct{}, 1)
	if err := watch.Wait(EventReadable, func(_ *FdWatch, mask EventMask) {
		atomic.AddInt32(&fires, 1)
		fired <- struct{}{}
	}); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			if err := ioq.Iterate(50); err != nil {
				return
			}
			select {
			case <-done:
				return
			default:
			}
		}
	}()
	defer close(done)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("fd watch never fired")
	}

	// The wait already resolved, so this Cancel call must be a no-op: no
	// second callback delivery.
	watch.Cancel()
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&fires); got != 1 {
		t.Fatalf("expected exactly 1 callback delivery, got %d", got)
	}
}

func TestFdWatchCancelWithNoWaitOutstandingIsNoOp(t *testing.T) {
	ioq, err := NewIOQueue(1, nil)
	if err != nil {
		t.Fatalf("NewIOQueue: %v", err)
	}
	defer ioq.Destroy()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	watch, err := NewFdWatch(ioq, int(r.Fd()))
	if err != nil {
		t.Fatalf("NewFdWatch: %v", err)
	}

	// No Wait has been armed; Cancel must not panic and must not promote
	// anything (there is no fn to deliver).
	watch.Cancel()
}
