package ksync

import "sync/atomic"

// SleepObject is the kernel's lowest-level blocking primitive: a single
// level-triggered, one-shot wakeup signal. Signal is safe to call from
// interrupt-deferred context (it never blocks or allocates); Wait parks
// the calling goroutine until a signal arrives.
//
// "Level-triggered" means a Signal that arrives before anyone is
// waiting is not lost: it leaves the object in a pending state that the
// next Wait consumes immediately. This is what lets wait_on_list bind a
// SleepObject to several waiters and poll each one only after being
// woken, instead of racing a signal that fires between the unbind check
// and the next Wait call.
//
// Exactly one goroutine may be blocked in Wait on a given SleepObject at
// a time - this mirrors the single-thread-per-wait-queue-slot invariant
// of the kernel it's modeled on. A second concurrent Wait is a
// programming error and panics rather than silently missing wakeups.
type SleepObject struct {
	pending atomic.Bool
	waiting atomic.Bool
	doorbell chan struct{}
}

// NewSleepObject returns a SleepObject with no signal pending.
func NewSleepObject() *SleepObject {
	return &SleepObject{doorbell: make(chan struct{}, 1)}
}

// Signal marks the object as pending and wakes a blocked Wait, if any.
// Safe to call from any context, including a raw interrupt handler: it
// never blocks and never allocates.
func (s *SleepObject) Signal() {
	if s.pending.CompareAndSwap(false, true) {
		select {
		case s.doorbell <- struct{}{}:
		default:
		}
	}
}

// Wait blocks until a signal is pending, then consumes it, leaving the
// object clear for the next Signal/Wait cycle.
//
// Wait panics if another goroutine is already waiting on this object -
// see the type doc for why this is treated as a fatal invariant
// violation rather than queued behavior.
func (s *SleepObject) Wait() {
	if !s.waiting.CompareAndSwap(false, true) {
		panic("ksync: concurrent Wait on a SleepObject already has a waiter")
	}
	defer s.waiting.Store(false)

	// A doorbell token can outlive the signal it announced (the fast path
	// or Poll may consume pending first), so a wakeup only counts once
	// pending itself is consumed.
	for {
		if s.pending.CompareAndSwap(true, false) {
			return
		}
		<-s.doorbell
	}
}

// Poll reports whether a signal is pending without blocking, consuming
// it if so.
func (s *SleepObject) Poll() (consumed bool) {
	return s.pending.CompareAndSwap(true, false)
}

// Pending reports whether a signal is currently pending, without
// consuming it.
func (s *SleepObject) Pending() bool {
	return s.pending.Load()
}
