// Package ksync implements the kernel's low-level blocking and
// interrupt-masking primitives: the spinlock that protects data touched
// from interrupt context, the nested interrupt-hold guard, and the
// one-shot sleep object everything above them is built on.
//
// Nothing here blocks the Go runtime scheduler the way a spin loop would
// block a real CPU - a goroutine that can't make progress yields instead
// of burning a core. The locking discipline (disable interrupts before
// taking a lock an interrupt handler might also take, detect
// self-deadlock) is preserved even though the underlying primitive is a
// goroutine-friendly mutex rather than a literal test-and-set loop.
package ksync

import (
	"fmt"
	"sync"
)

// Spinlock protects a value of type T that may be touched from both
// ordinary and interrupt-deferred (worker) execution context.
//
// Lock blocks until the lock is free and panics if the calling goroutine
// already holds it - a CPU spinning on its own held lock never makes
// progress, so re-entry there is a fatal bug, not something to queue
// behind. TryLock is the CPU-reentrant variant: it succeeds immediately,
// without blocking, both when the lock is free and when the calling
// goroutine is the current holder - the scope a worker needs to
// recurse back into a list it is already iterating under lock.
type Spinlock[T any] struct {
	mu    sync.Mutex // held exactly once per outstanding acquisition chain
	meta  sync.Mutex // protects held/owner/depth bookkeeping below
	held  bool
	owner int64
	depth int
	value T
}

// NewSpinlock constructs a Spinlock guarding value.
func NewSpinlock[T any](value T) *Spinlock[T] {
	return &Spinlock[T]{owner: -1, value: value}
}

// SpinlockGuard is the held-lock token [Spinlock.Lock]/[Spinlock.TryLock]
// return. Get accesses the protected value; Release gives up this
// acquisition. A guard must not be used after Release.
type SpinlockGuard[T any] struct {
	lock *Spinlock[T]
}

// Get returns a pointer to the protected value, valid until Release.
func (g *SpinlockGuard[T]) Get() *T {
	return &g.lock.value
}

// Release gives up this guard's acquisition. If it was a reentrant
// TryLock (the calling goroutine already held the lock), this only
// decrements the hold depth; the underlying lock is only actually
// unlocked once every acquisition along the chain has been released.
// Calling Release twice on the same guard panics.
func (g *SpinlockGuard[T]) Release() {
	l := g.lock
	if l == nil {
		panic("ksync: Release of already-released SpinlockGuard")
	}
	g.lock = nil

	l.meta.Lock()
	l.depth--
	last := l.depth == 0
	if last {
		l.held = false
		l.owner = -1
	}
	l.meta.Unlock()

	if last {
		l.mu.Unlock()
	}
}

// Lock blocks until the spinlock is free, then returns a guard granting
// exclusive access. Calling Lock from the goroutine that already holds
// the lock panics instead of deadlocking, mirroring the fatal-assertion
// policy for invariant violations: a CPU spinning on its own held lock
// never makes progress and the kernel would rather die loudly than hang.
// Use TryLock for the reentrant case.
func (l *Spinlock[T]) Lock() *SpinlockGuard[T] {
	self := goroutineID()

	l.meta.Lock()
	if l.held && l.owner == self {
		l.meta.Unlock()
		panic(fmt.Sprintf("ksync: goroutine %d attempted to re-lock a spinlock it already holds", self))
	}
	l.meta.Unlock()

	l.mu.Lock()
	l.meta.Lock()
	l.held = true
	l.owner = self
	l.depth = 1
	l.meta.Unlock()
	return &SpinlockGuard[T]{lock: l}
}

// TryLock attempts to acquire the spinlock without blocking. It succeeds
// immediately, with no contention at all, when the calling goroutine
// already holds the lock (CPU-reentrant try-lock scope - the worker
// taking its own per-binding handler-list lock while a handler it just
// invoked recurses back into the same binding). Otherwise it behaves
// like an ordinary non-blocking acquire: true if the lock was free, false
// if some other goroutine holds it.
func (l *Spinlock[T]) TryLock() (*SpinlockGuard[T], bool) {
	self := goroutineID()

	l.meta.Lock()
	if l.held && l.owner == self {
		l.depth++
		l.meta.Unlock()
		return &SpinlockGuard[T]{lock: l}, true
	}
	l.meta.Unlock()

	if !l.mu.TryLock() {
		return nil, false
	}
	l.meta.Lock()
	l.held = true
	l.owner = self
	l.depth = 1
	l.meta.Unlock()
	return &SpinlockGuard[T]{lock: l}, true
}
