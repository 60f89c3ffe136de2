package kmem

import "fmt"

// sharedInner is the single allocation every clone of a SharedRef points
// at. It is never exposed directly - all access goes through SharedRef's
// methods so the reference-count invariant (count >= 1 for every live
// handle) stays enforced in one place.
type sharedInner[C any, T any] struct {
	counter C
	value   T
}

// SharedRef is a reference-counted cell over T, generic over the counter
// implementation C (via the self-referential pointer constraint CP). Use
// [NonAtomicCounter] when every Clone/Release happens under one owner's
// control (e.g. serialized by an enclosing lock), and [AtomicCounter]
// when the cell is shared across goroutines or interrupt-deferred
// context without other synchronization.
//
// The zero value of SharedRef is not usable; construct one with
// [NewShared].
type SharedRef[C any, CP counterPtr[C], T any] struct {
	inner *sharedInner[C, T]
}

// NewShared allocates value and wraps it in a SharedRef with one
// outstanding reference.
func NewShared[C any, CP counterPtr[C], T any](value T) SharedRef[C, CP, T] {
	inner := &sharedInner[C, T]{value: value}
	counter := CP(&inner.counter)
	counter.init()
	if got, want := counter.load(), counter.One(); got != want {
		panic(fmt.Sprintf("kmem: counter init left count at %d, want %d", got, want))
	}
	return SharedRef[C, CP, T]{inner: inner}
}

// Clone returns a new handle to the same underlying value, incrementing
// the reference count. Each returned handle must eventually have
// Release called on it exactly once.
func (s SharedRef[C, CP, T]) Clone() SharedRef[C, CP, T] {
	if s.inner == nil {
		panic("kmem: Clone of zero-value SharedRef")
	}
	CP(&s.inner.counter).inc()
	return SharedRef[C, CP, T]{inner: s.inner}
}

// Release relinquishes this handle. If it was the last outstanding
// reference, it returns the wrapped value and true; the caller then owns
// value outright (no other handle can observe it). Otherwise it returns
// the zero value of T and false - the cell lives on via other handles.
//
// Calling Release a second time on the same handle, or on a handle
// already consumed by a prior Release, is a use-after-release bug; like
// the kernel it is modeled on, this is treated as a fatal invariant
// violation rather than a recoverable error.
func (s *SharedRef[C, CP, T]) Release() (value T, last bool) {
	if s.inner == nil {
		panic("kmem: Release of zero-value or already-released SharedRef")
	}
	last = CP(&s.inner.counter).dec()
	if last {
		value = s.inner.value
	}
	s.inner = nil
	return value, last
}

// Get returns a pointer to the shared value for read access. It is valid
// for as long as this handle has not been released.
func (s SharedRef[C, CP, T]) Get() *T {
	if s.inner == nil {
		panic("kmem: Get of zero-value SharedRef")
	}
	return &s.inner.value
}

// GetMut returns a pointer suitable for mutation, but only when this is
// the sole outstanding handle (Count() == 1); otherwise ok is false and
// the returned pointer is nil, since any other clone could be observing
// the value concurrently.
func (s SharedRef[C, CP, T]) GetMut() (ptr *T, ok bool) {
	if s.inner == nil {
		panic("kmem: GetMut of zero-value SharedRef")
	}
	if CP(&s.inner.counter).load() != 1 {
		return nil, false
	}
	return &s.inner.value, true
}

// Count reports the number of outstanding handles to the underlying
// value, including this one.
func (s SharedRef[C, CP, T]) Count() uint32 {
	if s.inner == nil {
		panic("kmem: Count of zero-value SharedRef")
	}
	return CP(&s.inner.counter).load()
}

// String implements fmt.Stringer for diagnostics; it does not dereference
// the wrapped value so it is safe even mid-mutation.
func (s SharedRef[C, CP, T]) String() string {
	if s.inner == nil {
		return "SharedRef(released)"
	}
	return fmt.Sprintf("SharedRef(count=%d)", s.Count())
}
