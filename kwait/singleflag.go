package kwait

import (
	"sync/atomic"

	"github.com/joeycumines/kernelcore/ksync"
)

// SingleFlag is the simplest possible PrimitiveWaiter: an atomic boolean
// that starts unset, and whose Set can be called from any context
// (including a raw interrupt handler) to mark the condition satisfied
// and wake whatever is bound to it.
//
// It backs [kirq.EventHandle]: binding a SingleFlag to a SleepObject and
// calling Set from a handler the interrupt fabric's worker runs is exactly the
// "did my event fire" pattern an interrupt consumer needs. Because Set
// always arranges a signal, Bind never forces wait_on_list into its
// poll-only fallback.
type SingleFlag struct {
	fired atomic.Bool
	obj   *ksync.SleepObject
}

// NewSingleFlag returns a SingleFlag in the unset state.
func NewSingleFlag() *SingleFlag {
	return &SingleFlag{}
}

// Set marks the flag's condition satisfied and signals the bound
// SleepObject, if any. Safe to call from interrupt context.
func (f *SingleFlag) Set() {
	f.fired.Store(true)
	if obj := f.obj; obj != nil {
		obj.Signal()
	}
}

// Reset clears the flag back to unset, for waiters that get reused
// across multiple wait cycles (e.g. a recurring event source).
func (f *SingleFlag) Reset() {
	f.fired.Store(false)
}

// Bind implements PrimitiveWaiter. It always succeeds; if the flag is
// already set at bind time, it signals obj immediately so a caller that
// sleeps on it (because some other waiter in the same round needed to)
// still wakes straight away.
func (f *SingleFlag) Bind(obj *ksync.SleepObject) bool {
	f.obj = obj
	if f.fired.Load() {
		obj.Signal()
	}
	return true
}

// Unbind implements PrimitiveWaiter.
func (f *SingleFlag) Unbind() {
	f.obj = nil
}

// Poll implements PrimitiveWaiter.
func (f *SingleFlag) Poll() bool {
	return f.fired.Load()
}

// RunCompletion implements PrimitiveWaiter. SingleFlag has no completion
// side effect of its own.
func (f *SingleFlag) RunCompletion() {}

// IsReady implements PrimitiveWaiter.
func (f *SingleFlag) IsReady() bool {
	if f.Poll() {
		f.RunCompletion()
		return true
	}
	return false
}

var _ PrimitiveWaiter = (*SingleFlag)(nil)
