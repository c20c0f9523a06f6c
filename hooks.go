package iocore

import (
	"context"
	"time"

	"github.com/zoobzio/hookz"
)

// Hook event keys, one per completion source an IOQueue promotes into its
// RunQueue.
const (
	HookTaskPromoted     = hookz.Key("ioqueue.task_promoted")
	HookTimerExpired     = hookz.Key("ioqueue.timer_expired")
	HookMailboxSignalled = hookz.Key("ioqueue.mailbox_signalled")
	HookFdEvent          = hookz.Key("ioqueue.fd_event")
)

// Event is the payload delivered to hooks registered on an IOQueue. Only
// the fields relevant to the firing hook key are populated.
type Event struct {
	Timestamp time.Time
	Fd        int
	Mask      EventMask
	Deadline  int64 // ms, valid for HookTimerExpired
}

// hooks wraps the hookz registry shared by an IOQueue's subsystems. A nil
// *hooks is valid and emits are no-ops, so RunQueue/WaitQueue/Mailbox can be
// used standalone (without an owning IOQueue) without nil-checking callers.
type hooks struct {
	h *hookz.Hooks[Event]
}

func newHooks() *hooks {
	return &hooks{h: hookz.New[Event]()}
}

func (h *hooks) emit(key hookz.Key, ev Event) {
	if h == nil || h.h == nil {
		return
	}
	_ = h.h.Emit(context.Background(), key, ev)
}

// On registers handler for key, returning an error only if hookz rejects
// the registration (e.g. after the registry has been closed).
func (h *hooks) On(key hookz.Key, handler func(context.Context, Event) error) error {
	_, err := h.h.Hook(key, handler)
	return err
}
