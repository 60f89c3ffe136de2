// Package kmem implements the reference-counted cell at the bottom of the
// kernel's memory model: a single allocation shared by multiple owners,
// generic over whether the count itself needs to be atomic.
//
// A single-CPU object (most kernel data structures, before they are
// published across CPUs) never needs an atomic increment/decrement - a
// plain counter is both correct and markedly cheaper. An object reachable
// from interrupt context or from more than one CPU does. [SharedRef] is
// parameterized over which counter backs it so callers pay for atomicity
// only where they need it, without two hand-duplicated reference-counted
// types.
package kmem

// Counter is the reference-count backing a [SharedRef]. Implementations
// need not be goroutine-safe on their own - atomicity is a property of
// the concrete type ([AtomicCounter] has it, [NonAtomicCounter] doesn't),
// not of this interface.
type Counter interface {
	// init sets the counter to one outstanding reference.
	init()
	// inc records one more outstanding reference.
	inc()
	// dec records one fewer outstanding reference and reports whether
	// that was the last one.
	dec() (last bool)
	// load reads the current reference count, for diagnostics and the
	// "am I unique" check GetMut performs.
	load() uint32
	// One reports the value a freshly initialized counter holds: exactly
	// one outstanding reference. NewShared asserts init() actually left
	// the counter there, so callers never have to memorize the invariant
	// as a magic constant.
	One() uint32
}

// counterPtr constrains a type parameter to "a pointer to C that
// implements Counter" - the self-referential idiom that lets SharedRef be
// generic over a counter type without requiring the counter itself to be
// an interface value (and thus heap-allocated) at rest.
type counterPtr[C any] interface {
	*C
	Counter
}

// NonAtomicCounter is a reference count for data that is never shared
// across more than one logical owner context at a time - e.g. objects
// still under construction, or protected end-to-end by a lock that also
// guards every Clone/Release call. Using it from concurrent goroutines
// without external synchronization is a data race.
type NonAtomicCounter struct {
	n uint32
}

func (c *NonAtomicCounter) init()           { c.n = 1 }
func (c *NonAtomicCounter) inc()            { c.n++ }
func (c *NonAtomicCounter) dec() (last bool) { c.n--; return c.n == 0 }
func (c *NonAtomicCounter) load() uint32    { return c.n }

// One reports the value a freshly initialized counter holds: exactly one
// outstanding reference. It exists mainly so callers (and tests) don't
// have to memorize the invariant as a magic constant.
func (c *NonAtomicCounter) One() uint32 { return 1 }

var _ Counter = (*NonAtomicCounter)(nil)
