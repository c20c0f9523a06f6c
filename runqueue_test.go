package iocore

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunQueueExecutesInFIFOOrder(t *testing.T) {
	rq, err := NewRunQueue(1)
	if err != nil {
		t.Fatalf("NewRunQueue: %v", err)
	}
	defer rq.Destroy()

	const n = 50
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(n)

	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		i := i
		rq.Exec(&tasks[i], func(*Task) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		})
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if order[i] != i {
			t.Fatalf("expected FIFO order, got %v", order)
		}
	}
}

func TestRunQueueConcurrentWorkers(t *testing.T) {
	rq, err := NewRunQueue(4)
	if err != nil {
		t.Fatalf("NewRunQueue: %v", err)
	}
	defer rq.Destroy()

	const n = 200
	var count int32
	var wg sync.WaitGroup
	wg.Add(n)

	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		rq.Exec(&tasks[i], func(*Task) {
			atomic.AddInt32(&count, 1)
			wg.Done()
		})
	}
	wg.Wait()

	if got := atomic.LoadInt32(&count); got != n {
		t.Fatalf("expected %d executions, got %d", n, got)
	}
}

func TestRunQueueDoubleExecIgnored(t *testing.T) {
	rq, err := NewRunQueue(1)
	if err != nil {
		t.Fatalf("NewRunQueue: %v", err)
	}
	defer rq.Destroy()

	var tk Task
	var runs int32
	block := make(chan struct{})
	rq.Exec(&tk, func(*Task) {
		atomic.AddInt32(&runs, 1)
		<-block
	})
	// tk is now ready; a second Exec before the callback runs must be a
	// silent no-op, not a second enqueue.
	rq.Exec(&tk, func(*Task) {
		atomic.AddInt32(&runs, 1)
	})
	close(block)
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("expected exactly 1 run, got %d", got)
	}
}

func TestRunQueueDestroyDrainsPending(t *testing.T) {
	rq, err := NewRunQueue(1)
	if err != nil {
		t.Fatalf("NewRunQueue: %v", err)
	}
	var ran int32
	const n = 10
	tasks := make([]Task, n)
	for i := 0; i < n; i++ {
		rq.Exec(&tasks[i], func(*Task) {
			atomic.AddInt32(&ran, 1)
		})
	}
	rq.Destroy()
	if got := atomic.LoadInt32(&ran); got != n {
		t.Fatalf("expected all %d pending tasks to drain, got %d", n, got)
	}
}

