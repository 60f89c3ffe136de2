// Package klog provides the kernel core's structured logging, wrapping
// logiface's generic logger with stumpy's JSON backend - the same
// combination the rest of the surrounding ecosystem uses, rather than a
// bespoke logging interface local to this module.
package klog

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the kernel core's log handle: a thin alias over the concrete
// logger type stumpy.L.New produces, so callers don't need to spell out
// the generic instantiation at every call site.
type Logger = logiface.Logger[*stumpy.Event]

// New constructs a Logger writing newline-delimited JSON to w.
func New(w io.Writer, opts ...stumpy.Option) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(append([]stumpy.Option{stumpy.WithWriter(w)}, opts...)...),
	)
}

// defaultLogger is what the kernel core's packages log to when no
// explicit Logger was configured (see kirq's WithLogger option).
// It writes to stderr, matching where a kernel's own diagnostic console
// output would go.
var defaultLogger = New(os.Stderr)

// Default returns the process-wide default Logger.
func Default() *Logger {
	return defaultLogger
}

// SetDefault replaces the process-wide default Logger, e.g. so a
// hosted-demo main can redirect diagnostics to a file or an in-memory
// buffer for tests.
func SetDefault(l *Logger) {
	defaultLogger = l
}
