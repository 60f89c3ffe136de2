package kwait

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/joeycumines/kernelcore/ksync"
)

// WaitOnList multiplexes all of waiters onto a single SleepObject: it
// binds every waiter, blocks until at least one becomes ready (or
// timeout elapses), then unbinds everything before returning. This is
// how the kernel lets one thread block on several independent event
// sources using one sleep queue slot instead of one per source.
//
// If any waiter's Bind reports it could not arrange a signal, the whole
// round degrades to busy-polling every waiter instead of sleeping on
// obj: a SleepObject can only be woken by something that knows how to
// signal it, and a poll-only condition (one only observable by repeated
// probing, with no event source to hook) has no other way to be
// noticed.
//
// timeout <= 0 means wait indefinitely. On a normal wakeup, advanced
// lists the indices into waiters whose IsReady (and subsequent Complete)
// is now true (there may be more than one, if several fired between the
// same wakeup) and timedOut is false. If timeout elapses with nothing
// satisfied, advanced is nil and timedOut is true.
//
// waiters must be non-empty; obj must not have another concurrent
// Wait() in flight, per [ksync.SleepObject]'s single-waiter invariant.
func WaitOnList(obj *ksync.SleepObject, waiters []Waiter, timeout time.Duration) (advanced []int, timedOut bool) {
	if len(waiters) == 0 {
		panic("kwait: WaitOnList requires at least one waiter")
	}

	forcePoll := false
	for _, w := range waiters {
		if !w.Bind(obj) {
			forcePoll = true
		}
	}
	defer func() {
		for _, w := range waiters {
			w.Unbind()
		}
	}()

	var expired atomic.Bool
	var timer *time.Timer
	if timeout > 0 {
		timer = time.AfterFunc(timeout, func() {
			expired.Store(true)
			obj.Signal()
		})
		defer timer.Stop()
	}

	if forcePoll {
		// At least one waiter can't arrange a signal: busy-poll every
		// waiter in the round instead of sleeping, yielding between
		// passes so a poll-only condition that only turns true after
		// repeated probing still gets noticed instead of deadlocking.
		for !pollAny(waiters) {
			if expired.Load() {
				return nil, true
			}
			runtime.Gosched()
		}
	} else {
		for {
			obj.Wait()
			if pollAny(waiters) {
				break
			}
			if expired.Load() {
				return nil, true
			}
			// Spurious wakeup (signal raced with an Unbind elsewhere) -
			// loop and wait again.
		}
	}

	for i, w := range waiters {
		if w.IsReady() && w.Complete() {
			advanced = append(advanced, i)
		}
	}
	return advanced, false
}

func pollAny(waiters []Waiter) bool {
	for _, w := range waiters {
		if w.Poll() {
			return true
		}
	}
	return false
}
