package iocore

import "errors"

// Init-time failures: resource exhaustion or setup errors at construction
// time.
var (
	ErrBadWorkerCount = errors.New("iocore: worker count must be >= 1")
	ErrPollerInit     = errors.New("iocore: failed to create OS readiness poller")
	ErrNotifyInit     = errors.New("iocore: failed to create notify primitive")
)

// Misuse errors that are cheap to detect synchronously. Most caller misuse
// is left undefined rather than checked; these are returned instead of
// silently corrupting state because the check is already on the
// synchronized path.
var (
	ErrWaitPending   = errors.New("iocore: a wait is already pending on this object")
	ErrTimerActive   = errors.New("iocore: timer already active")
	ErrWatchActive   = errors.New("iocore: fd watch already active")
	ErrInvalidFd     = errors.New("iocore: invalid file descriptor")
	ErrFdAlreadyUsed = errors.New("iocore: fd already registered with another watch")
)

// ErrShuttingDown is returned by operations initiated after Destroy has
// begun.
var ErrShuttingDown = errors.New("iocore: queue is shutting down")
