package iocore

import (
	"github.com/intuitivelabs/slog"
)

// NAME is the package name, used as the default log prefix.
const NAME = "iocore"

// Log is the package-level logger. Its level can be changed at runtime,
// e.g. iocore.Log.SetLevel(slog.LDBG) to enable debug logging.
var Log slog.Log = slog.Log{Level: slog.LWARN, Prefix: NAME + ": "}

// Shorthand helpers, assigned directly from Log's methods: call DBG/WARN/
// ERR/BUG/PANIC directly, guarded by the *on() checks below when the
// message is expensive to format.
var (
	DBG   = Log.DBG
	WARN  = Log.WARN
	ERR   = Log.ERR
	BUG   = Log.BUG
	PANIC = Log.PANIC
)

func DBGon() bool  { return Log.DBGon() }
func WARNon() bool { return Log.WARNon() }
func ERRon() bool  { return Log.ERRon() }
