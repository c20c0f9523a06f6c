package iocore_test

import (
	"fmt"
	"time"

	"github.com/nullstrand/iocore"
)

// A single timer re-arms itself from its own callback 10 times, raising a
// mailbox flag on the 10th invocation. The main goroutine drives the
// IOQueue's poll loop until it observes the flag via Take.
func Example_counter() {
	ioq, err := iocore.NewIOQueue(2, nil)
	if err != nil {
		fmt.Println("init error:", err)
		return
	}
	defer ioq.Destroy()

	mb := iocore.NewMailbox(ioq.RunQueue())
	const doneFlag = 0x1

	count := 0
	tm := iocore.NewTimer()

	var onFire func(*iocore.Timer)
	onFire = func(t *iocore.Timer) {
		count++
		if count < 10 {
			_ = ioq.WaitQueue().Wait(t, 1, onFire)
			return
		}
		mb.Raise(doneFlag)
	}
	if err := ioq.WaitQueue().Wait(tm, 1, onFire); err != nil {
		fmt.Println("wait error:", err)
		return
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if mb.Take(doneFlag) == doneFlag {
			break
		}
		if time.Now().After(deadline) {
			fmt.Println("timed out waiting for completion")
			return
		}
		if err := ioq.Iterate(50); err != nil {
			fmt.Println("iterate error:", err)
			return
		}
	}

	fmt.Println(count)
	// Output: 10
}
