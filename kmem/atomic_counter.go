package kmem

import "sync/atomic"

// AtomicCounter is a reference count safe to increment and decrement
// from any goroutine, any number of CPUs, and interrupt-deferred (worker)
// context concurrently. Use it for anything an [kirq.EventHandle] or
// [kirq.ObjectHandle] wraps, or anything handed across a goroutine
// boundary without an enclosing lock.
type AtomicCounter struct {
	n atomic.Uint32
}

func (c *AtomicCounter) init() { c.n.Store(1) }
func (c *AtomicCounter) inc()  { c.n.Add(1) }

func (c *AtomicCounter) dec() (last bool) {
	return c.n.Add(^uint32(0)) == 0
}

func (c *AtomicCounter) load() uint32 { return c.n.Load() }

// One reports the value a freshly initialized counter holds.
func (c *AtomicCounter) One() uint32 { return 1 }

var _ Counter = (*AtomicCounter)(nil)
