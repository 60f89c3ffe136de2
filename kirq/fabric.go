// Package kirq implements the interrupt fabric: the fan-out layer
// between a raw architecture interrupt line and the (possibly several)
// handlers a driver registers against it.
//
// Every GSI is split into a top half and a bottom half. The top half
// runs directly on the architecture's interrupt line - [arch.RawHandler]
// - and must be fast, non-blocking and non-allocating: it does nothing
// but mark the GSI as fired and signal the fabric's worker. The bottom
// half runs on an ordinary goroutine ([Fabric.Worker]) and is where
// registered handlers actually execute, with full goroutine privileges
// (allocation, blocking, logging) and panic isolation per handler.
package kirq

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/kernelcore/arch"
	"github.com/joeycumines/kernelcore/klog"
	"github.com/joeycumines/kernelcore/ksync"
)

// Handler is a deferred (bottom-half) interrupt handler. It runs on the
// fabric's worker goroutine, never on the architecture's raw interrupt
// path, so it may block, allocate, and log.
type Handler func(gsi uint32)

type handlerEntry struct {
	id         uint64
	fn         Handler
	tombstoned atomic.Bool
}

// handlerList is the mutable state a binding's Spinlock protects: the
// fan-out list itself and a count of still-live (non-tombstoned)
// entries, used to decide when the last handler for a GSI has gone and
// the binding can be torn down.
type handlerList struct {
	handlers []*handlerEntry
	live     int
}

type binding struct {
	gsi        uint32
	archHandle arch.Handle
	fired      atomic.Bool
	list       *ksync.Spinlock[handlerList]
}

func newBinding(gsi uint32) *binding {
	return &binding{gsi: gsi, list: ksync.NewSpinlock(handlerList{})}
}

// lockList acquires a binding's handler-list spinlock, spinning (with a
// scheduler yield between attempts) rather than blocking the way a
// sync.Mutex would - a test-and-set style retry loop over
// [ksync.Spinlock.TryLock]. It is built on TryLock's CPU-reentrant scope, so a handler
// that recurses back into Bind or Close for its own GSI from the worker
// goroutine that is already dispatching it succeeds instead of
// deadlocking against itself.
func lockList(l *ksync.Spinlock[handlerList]) *ksync.SpinlockGuard[handlerList] {
	for {
		if g, ok := l.TryLock(); ok {
			return g
		}
		runtime.Gosched()
	}
}

// Fabric owns the binding table mapping GSIs to deferred handlers, and
// the worker goroutine that drains fired GSIs and dispatches to them.
type Fabric struct {
	ctrl    arch.Controller
	wake    *ksync.SleepObject
	logger  *klog.Logger
	limiter *catrate.Limiter

	mu       sync.RWMutex
	bindings map[uint32]*binding
	nextID   atomic.Uint64

	running atomic.Bool
}

// Option configures a Fabric at construction time.
type Option func(*Fabric)

// WithLogger overrides the Fabric's structured logger. Default is
// [klog.Default].
func WithLogger(l *klog.Logger) Option {
	return func(f *Fabric) { f.logger = l }
}

// WithPanicRateLimit overrides the per-GSI handler-panic storm limiter.
// Default allows 5 panics per second and 20 per minute per GSI to be
// logged; further panics from that GSI within those windows are still
// recovered but not logged.
func WithPanicRateLimit(rates map[time.Duration]int) Option {
	return func(f *Fabric) { f.limiter = catrate.NewLimiter(rates) }
}

// NewFabric constructs a Fabric routing through ctrl.
func NewFabric(ctrl arch.Controller, opts ...Option) *Fabric {
	f := &Fabric{
		ctrl:     ctrl,
		wake:     ksync.NewSleepObject(),
		logger:   klog.Default(),
		bindings: make(map[uint32]*binding),
	}
	f.limiter = catrate.NewLimiter(map[time.Duration]int{
		time.Second: 5,
		time.Minute: 20,
	})
	for _, o := range opts {
		o(f)
	}
	return f
}

// BindingHandle represents one registered handler's claim on a GSI.
// Close unregisters just that handler (§9 decided semantics): it does
// not disturb other handlers still bound to the same GSI, and indices
// already handed out for other handlers remain valid. If this was the
// last live handler for the GSI, Close also unregisters the GSI from the
// architecture and drops the binding record entirely.
type BindingHandle struct {
	fabric *Fabric
	gsi    uint32
	entry  *handlerEntry
}

// Close releases this one handler's registration. Closing a
// BindingHandle twice is a no-op.
func (h *BindingHandle) Close() error {
	if h.entry.tombstoned.Swap(true) {
		return nil
	}
	return h.fabric.release(h.gsi, h.entry)
}

func (f *Fabric) release(gsi uint32, entry *handlerEntry) error {
	f.mu.Lock()
	b, ok := f.bindings[gsi]
	if !ok {
		f.mu.Unlock()
		return nil
	}

	guard := lockList(b.list)
	list := guard.Get()
	list.live--
	last := list.live == 0
	if last {
		delete(f.bindings, gsi)
	}
	guard.Release()
	f.mu.Unlock()

	if !last {
		return nil
	}
	return b.archHandle.Unbind()
}

// Bind registers handler as a deferred handler for gsi. The first Bind
// for a given GSI routes it through ctrl; subsequent Binds for the same
// GSI just add to its fan-out list (§4.E multi-handler coalescing) and
// do not touch the architecture again.
func (f *Fabric) Bind(gsi uint32, handler Handler) (*BindingHandle, error) {
	f.mu.Lock()
	b, ok := f.bindings[gsi]
	if !ok {
		b = newBinding(gsi)
		f.bindings[gsi] = b
	}
	f.mu.Unlock()

	entry := &handlerEntry{id: f.nextID.Add(1), fn: handler}

	guard := lockList(b.list)
	if !ok {
		handle, err := f.ctrl.BindGSI(gsi, f.rawHandler, gsi)
		if err != nil {
			guard.Release()
			f.mu.Lock()
			delete(f.bindings, gsi)
			f.mu.Unlock()
			return nil, fmt.Errorf("kirq: bind gsi %d: %w", gsi, err)
		}
		b.archHandle = handle
	}
	list := guard.Get()
	list.handlers = append(list.handlers, entry)
	list.live++
	guard.Release()

	return &BindingHandle{fabric: f, gsi: gsi, entry: entry}, nil
}

// rawHandler is the top half: it runs directly on the architecture's
// interrupt line. It must not block or allocate on the happy path - the
// map lookup below takes a read lock, a concession this hosted
// simulation makes that a bare-metal port would instead satisfy with a
// lock-free, direct-indexed per-GSI array ([arch.Sim]'s own binding table
// is direct-indexed, though it still takes a mutex).
func (f *Fabric) rawHandler(cookie any) {
	gsi := cookie.(uint32)
	f.mu.RLock()
	b, ok := f.bindings[gsi]
	f.mu.RUnlock()
	if !ok {
		return
	}
	b.fired.Store(true)
	f.wake.Signal()
}

// TimerTrigger is the hook the system timer's own directly-bound IRQ
// handler calls after rearming, to wake the fabric's worker without the
// timer's own interrupt going through the generic Bind path (see
// ktimer.Init's doc comment for why the timer bypasses Bind entirely).
// The woken worker sweeps fired bindings as on any other wakeup; it does
// no timer-specific work of its own.
func (f *Fabric) TimerTrigger() {
	f.wake.Signal()
}

// Worker runs the fabric's dispatch loop until ctx is canceled: wait for
// a wakeup, sweep every binding with a pending fired flag, and invoke
// its live handlers in order, isolating each one with a recover and a
// per-GSI panic-storm rate limiter.
//
// Only one Worker may run for a given Fabric at a time, matching
// SleepObject's single-waiter invariant - the same way a real kernel
// dedicates exactly one worker thread to interrupt bottom halves.
func (f *Fabric) Worker(ctx context.Context) {
	if !f.running.CompareAndSwap(false, true) {
		panic("kirq: Worker already running for this Fabric")
	}
	defer f.running.Store(false)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			f.wake.Signal()
		case <-stopped:
		}
	}()

	for {
		f.wake.Wait()
		if ctx.Err() != nil {
			return
		}
		f.dispatchFired()
	}
}

func (f *Fabric) dispatchFired() {
	f.mu.RLock()
	bindings := make([]*binding, 0, len(f.bindings))
	for _, b := range f.bindings {
		bindings = append(bindings, b)
	}
	f.mu.RUnlock()

	for _, b := range bindings {
		if !b.fired.CompareAndSwap(true, false) {
			continue
		}
		f.dispatchOne(b)
	}
}

// dispatchOne attempts a single, CPU-reentrant try-lock on the binding's
// handler list (§4.C/§5's "worker takes it" step) and holds it for the
// whole traversal, not just the copy: a handler that calls back into
// Bind or Close for its own GSI, from this same worker goroutine, must
// be able to re-acquire the same lock rather than deadlock.
//
// If the try-lock is contended by a different goroutine (a concurrent
// Bind/Close racing this dispatch), the fired bit is re-raised so the
// worker revisits this binding on its next wakeup instead of silently
// dropping the interrupt.
func (f *Fabric) dispatchOne(b *binding) {
	guard, ok := b.list.TryLock()
	if !ok {
		b.fired.Store(true)
		f.wake.Signal()
		return
	}
	defer guard.Release()

	list := guard.Get()
	handlers := make([]*handlerEntry, len(list.handlers))
	copy(handlers, list.handlers)

	for _, h := range handlers {
		if h.tombstoned.Load() {
			continue
		}
		f.invoke(b.gsi, h)
	}
}

func (f *Fabric) invoke(gsi uint32, h *handlerEntry) {
	defer func() {
		if r := recover(); r != nil {
			if _, allowed := f.limiter.Allow(gsi); allowed {
				f.logger.Err().
					Int64(`gsi`, int64(gsi)).
					Interface(`panic`, r).
					Log(`interrupt handler panicked`)
			}
		}
	}()
	h.fn(gsi)
}
