// Package kwait implements the waiter protocol and the wait_on_list
// multiplexer: the layer that lets a thread block on several independent
// conditions (a pipe becoming readable, a child exiting, a timeout) using
// a single underlying [ksync.SleepObject], instead of needing one sleep
// primitive per condition.
package kwait

import "github.com/joeycumines/kernelcore/ksync"

// PrimitiveWaiter is the minimal contract wait_on_list needs from
// something it can block on: bind to the shared doorbell (or report that
// it can't), poll and complete its condition, and unbind again.
//
// Bind/Unbind calls are always paired and always made from the calling
// thread's own context (never from interrupt context), so
// implementations are free to do non-trivial bookkeeping in them.
type PrimitiveWaiter interface {
	// Bind registers obj as the doorbell to signal when this waiter's
	// condition becomes true, and reports whether it was able to arrange
	// that. A condition only observable by repeated probing (no
	// underlying event source to hook a signal to) returns false here;
	// wait_on_list then busy-polls the whole round instead of sleeping,
	// rather than blocking on a signal that will never arrive.
	//
	// A waiter whose condition is already satisfied at Bind time should
	// still signal obj itself (even while returning true), so a caller
	// that ends up sleeping because some other waiter in the same round
	// needed it still wakes immediately instead of missing an
	// already-true condition.
	Bind(obj *ksync.SleepObject) bool
	// Unbind reverses Bind. After Unbind returns, this waiter must not
	// signal the previously-bound object again.
	Unbind()
	// Poll reports whether this waiter's condition is satisfied right
	// now, with no side effects beyond the read itself. wait_on_list uses
	// this both for the force-poll fallback and, after a wakeup, to
	// decide whether to keep waiting.
	Poll() bool
	// RunCompletion performs this waiter's idempotent "just became
	// ready" side effect. Called at most once per ready-transition that
	// IsReady observes; implementations with nothing to do here are
	// still required to provide the method (a no-op is fine).
	RunCompletion()
	// IsReady polls the waiter and, if its condition is satisfied, runs
	// RunCompletion before reporting true. wait_on_list calls this,
	// rather than Poll, for the final per-waiter pass once it has woken.
	IsReady() bool
}

// Waiter extends PrimitiveWaiter with a notion of definite completion,
// for waiters that can be bound to more than one outstanding event and
// need to distinguish "this fired once" from "there is nothing further
// to wait for". Most callers only need PrimitiveWaiter and go through
// [AsWaiter].
type Waiter interface {
	PrimitiveWaiter
	// Complete runs once IsReady has reported true, and reports whether
	// this waiter is now fully done - no further IsReady call could ever
	// newly report true. Simple one-shot waiters are always complete
	// once ready; AsWaiter's adapter always returns true, matching the
	// source kernel's blanket impl.
	Complete() bool
}

// primitiveAdapter adapts a PrimitiveWaiter to the Waiter interface by
// always reporting Complete.
type primitiveAdapter struct {
	PrimitiveWaiter
}

func (primitiveAdapter) Complete() bool { return true }

// AsWaiter lifts any PrimitiveWaiter into a Waiter, the way the source
// kernel's blanket `impl<T: PrimitiveWaiter> Waiter for T` does. Use this
// whenever you have a simple, always-one-shot waiter and need to pass it
// to something expecting the richer Waiter interface (e.g.
// [WaitOnList]).
func AsWaiter(w PrimitiveWaiter) Waiter {
	return primitiveAdapter{PrimitiveWaiter: w}
}
