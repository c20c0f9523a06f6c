package iocore

import (
	"time"

	"github.com/zoobzio/clockz"
)

// Clock abstracts the monotonic clock used for timer deadlines. It is
// satisfied by clockz.Clock: RealClock for production, clockz.NewFakeClock()
// for deterministic tests that Advance() time instead of sleeping.
type Clock = clockz.Clock

// RealClock is the production Clock.
var RealClock Clock = clockz.RealClock

// NowMillis returns c.Now() truncated to milliseconds, the unit Timer
// deadlines are expressed in.
func NowMillis(c Clock) int64 {
	return c.Now().UnixNano() / int64(time.Millisecond)
}
