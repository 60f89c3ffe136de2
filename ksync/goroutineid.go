package ksync

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the numeric ID of the calling goroutine, parsed out
// of a captured runtime.Stack trace. Go deliberately has no public API
// for this; the kernel this package is modeled on runs each logical CPU
// as its own OS thread and needs a stable identity for the "same CPU
// re-entering its own spinlock" check ([Spinlock.Lock]'s deadlock
// detection), so a goroutine fills the same role here - one goroutine,
// one simulated CPU, for the lifetime of whatever loop it's driving.
//
// This is not a fast path: it allocates and does a runtime stack walk.
// [Spinlock.Lock] pays this cost on every call, since the self-deadlock
// check needs the caller's identity before it can safely attempt the
// underlying mutex lock.
func goroutineID() int64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	buf = buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(buf, []byte(prefix)) {
		return -1
	}
	buf = buf[len(prefix):]
	end := bytes.IndexByte(buf, ' ')
	if end < 0 {
		return -1
	}
	id, err := strconv.ParseInt(string(buf[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
