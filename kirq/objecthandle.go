package kirq

import (
	"time"

	"github.com/joeycumines/kernelcore/kmem"
)

// ObjectHandle is a reference-counted kernel object a consumer can Clone
// and Release, optionally backed by interrupt-driven readiness via an
// embedded [EventHandle]. It is what a file descriptor or a kernel
// object table slot ultimately wraps: shared ownership over the object
// ([kmem.SharedRef], atomic because handles cross goroutine boundaries
// freely) plus the means to block until the object has something ready.
type ObjectHandle[T any] struct {
	ref   kmem.SharedRef[kmem.AtomicCounter, *kmem.AtomicCounter, T]
	event *EventHandle
}

// NewObjectHandle wraps value as a fresh object handle with one
// outstanding reference. event may be nil for objects that are never
// waited on directly (e.g. ones only ever polled via wait_on_list's
// force-poll fallback through a custom [kwait.PrimitiveWaiter]).
func NewObjectHandle[T any](value T, event *EventHandle) *ObjectHandle[T] {
	return &ObjectHandle[T]{
		ref:   kmem.NewShared[kmem.AtomicCounter, *kmem.AtomicCounter, T](value),
		event: event,
	}
}

// Clone returns a new handle to the same object, incrementing its
// reference count.
func (h *ObjectHandle[T]) Clone() *ObjectHandle[T] {
	return &ObjectHandle[T]{ref: h.ref.Clone(), event: h.event}
}

// Get returns a pointer to the wrapped object, valid until Close.
func (h *ObjectHandle[T]) Get() *T {
	return h.ref.Get()
}

// Wait blocks until the object's associated event fires or timeout
// elapses. It panics if this handle has no associated EventHandle - a
// caller asking to wait on an object that was never wired to an
// interrupt source is a programming error, not a recoverable one.
func (h *ObjectHandle[T]) Wait(timeout time.Duration) bool {
	if h.event == nil {
		panic("kirq: Wait on an ObjectHandle with no associated event")
	}
	return h.event.Wait(timeout)
}

// Close releases this handle. If it was the last outstanding reference,
// the wrapped value is returned alongside true, and the associated
// event (if any) is closed; otherwise the zero value and false are
// returned, and the object lives on via other handles.
func (h *ObjectHandle[T]) Close() (value T, last bool, err error) {
	value, last = h.ref.Release()
	if last && h.event != nil {
		err = h.event.Close()
	}
	return value, last, err
}
