package iocore

import (
	"context"

	"github.com/zoobzio/tracez"
)

// Span keys, one per subsystem operation worth correlating across a trace.
const (
	SpanIterate     = tracez.Key("ioqueue.iterate")
	SpanCallback    = tracez.Key("runqueue.callback")
	SpanFdWait      = tracez.Key("ioqueue.fd_wait")
	SpanMailboxWait = tracez.Key("mailbox.wait")
)

// Tag keys used on the spans above.
const (
	TagTaskPtr   = tracez.Tag("task.ptr")
	TagFd        = tracez.Tag("fd")
	TagEventMask = tracez.Tag("event_mask")
	TagDispatch  = tracez.Tag("dispatched")
)

// startSpan is a nil-safe helper: tr may be nil (e.g. in unit tests that
// construct a RunQueue directly without an owning IOQueue), in which case
// it returns a no-op span.
func startSpan(ctx context.Context, tr *tracez.Tracer, key tracez.Key) (context.Context, *tracez.Span) {
	if tr == nil {
		return ctx, nil
	}
	return tr.StartSpan(ctx, key)
}

func finishSpan(sp *tracez.Span) {
	if sp != nil {
		sp.Finish()
	}
}
