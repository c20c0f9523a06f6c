package iocore

import (
	"testing"
	"time"
)

func TestMailboxRaiseTakeClearsBits(t *testing.T) {
	rq, err := NewRunQueue(1)
	if err != nil {
		t.Fatalf("NewRunQueue: %v", err)
	}
	defer rq.Destroy()

	mb := NewMailbox(rq)
	mb.Raise(0x1)
	mb.Raise(0x2)

	got := mb.Take(0x1)
	if got != 0x1 {
		t.Fatalf("expected 0x1, got %#x", got)
	}
	// Take is the sole clearer: the bit taken must be gone, the other bit
	// must remain.
	got = mb.Take(0x3)
	if got != 0x2 {
		t.Fatalf("expected remaining bit 0x2, got %#x", got)
	}
	if got := mb.Take(0x3); got != 0 {
		t.Fatalf("expected no bits left, got %#x", got)
	}
}

func TestMailboxWaitAnyFiresOnFirstMatchingBit(t *testing.T) {
	rq, err := NewRunQueue(1)
	if err != nil {
		t.Fatalf("NewRunQueue: %v", err)
	}
	defer rq.Destroy()

	mb := NewMailbox(rq)
	done := make(chan uint32, 1)
	if err := mb.Wait(0x6, func(m *Mailbox) {
		done <- m.Take(0x6)
	}); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	mb.Raise(0x1) // does not satisfy the mask
	select {
	case <-done:
		t.Fatal("waiter fired on a bit outside its mask")
	case <-time.After(20 * time.Millisecond):
	}

	mb.Raise(0x2) // satisfies the ANY predicate (mask & state != 0)
	select {
	case got := <-done:
		if got&0x2 == 0 {
			t.Fatalf("expected 0x2 bit present, got %#x", got)
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never fired")
	}
}

func TestMailboxWaitAllRequiresEveryBit(t *testing.T) {
	rq, err := NewRunQueue(1)
	if err != nil {
		t.Fatalf("NewRunQueue: %v", err)
	}
	defer rq.Destroy()

	mb := NewMailbox(rq)
	done := make(chan struct{}, 1)
	if err := mb.WaitAll(0x3, func(*Mailbox) { done <- struct{}{} }); err != nil {
		t.Fatalf("WaitAll: %v", err)
	}

	mb.Raise(0x1)
	select {
	case <-done:
		t.Fatal("ALL-mode waiter fired before all bits were set")
	case <-time.After(20 * time.Millisecond):
	}

	mb.Raise(0x2)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ALL-mode waiter never fired once all bits were set")
	}
}

func TestMailboxSecondSubscriptionRejected(t *testing.T) {
	rq, err := NewRunQueue(1)
	if err != nil {
		t.Fatalf("NewRunQueue: %v", err)
	}
	defer rq.Destroy()

	mb := NewMailbox(rq)
	if err := mb.Wait(0x1, func(*Mailbox) {}); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	if err := mb.Wait(0x2, func(*Mailbox) {}); err != ErrWaitPending {
		t.Fatalf("expected ErrWaitPending, got %v", err)
	}
}

func TestMailboxLevelTriggeredFiresImmediatelyIfAlreadySet(t *testing.T) {
	rq, err := NewRunQueue(1)
	if err != nil {
		t.Fatalf("NewRunQueue: %v", err)
	}
	defer rq.Destroy()

	mb := NewMailbox(rq)
	mb.Raise(0x4)

	done := make(chan struct{}, 1)
	if err := mb.Wait(0x4, func(*Mailbox) { done <- struct{}{} }); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("level-triggered wait on an already-set bit never fired")
	}
}
