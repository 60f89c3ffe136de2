package ktimer

import (
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/kernelcore/arch"
)

// defaultComparator is the comparator index this package dedicates to
// its own periodic/one-shot scheduling; nothing else may touch it
// through Registers directly once a Timer owns it.
const defaultComparator = 0

// current is the process-wide active Timer, published once Init
// succeeds. GetTimestamp reads through it so that any code path that
// might run before timer bring-up (early boot logging, for instance)
// gets a well-defined zero rather than a nil-pointer panic.
var current atomic.Pointer[Timer]

// Timer is a programmable one-shot comparator timer bound to a real (or
// simulated) interrupt line. It is the kernel's only clock source: every
// timestamp and every "wake me in N milliseconds" in the rest of the
// system ultimately reads MainCounter through this type.
//
// A Timer's own IRQ is bound directly against [arch.Controller], not
// through the generic interrupt-fabric binding table: the comparator
// must be rearmed synchronously, inside the raw interrupt handler,
// before returning - if rearming were deferred to a worker goroutine the
// way ordinary event handlers are, the timer could starve while its
// worker is scheduled out, and "the clock stops" is not a recoverable
// condition (§7's recovery policy carves this case out explicitly).
type Timer struct {
	regs        *Registers
	ticksPerMs  uint64
	onTick      func()
	handle      arch.Handle
	periodTicks uint64
}

// Init brings up regs as the system timer, binding its interrupt
// directly to ctrl on gsi, and publishes it as the process-wide clock
// source for GetTimestamp. onTick, if non-nil, is invoked synchronously
// from the raw interrupt handler after the comparator has been rearmed -
// typically set to a function that wakes the kernel's interrupt worker
// (e.g. a [kirq] Fabric's timer-trigger hook).
//
// Init panics if regs reports a zero tick period: that indicates either
// an unprogrammed simulated register file or a genuinely broken timer,
// and there is no sane fallback clock to degrade to.
func Init(regs *Registers, ctrl arch.Controller, gsi uint32, onTick func()) (*Timer, error) {
	period := regs.PeriodFemtoseconds()
	if period == 0 {
		panic("ktimer: timer reports zero tick period")
	}

	t := &Timer{
		regs:       regs,
		ticksPerMs: femtosecondsPerMillisecond / period,
		onTick:     onTick,
	}
	if t.ticksPerMs == 0 {
		t.ticksPerMs = 1
	}

	regs.SetEnabled(true)

	// No comparator is armed yet: periodTicks is zero until StartPeriodic
	// runs (Oneshot arms a single deadline and leaves it zero), so
	// handleIRQ's rearm is a no-op until then. MainCounter free-runs
	// regardless, which is all GetTimestamp needs.
	handle, err := ctrl.BindGSI(gsi, t.handleIRQ, nil)
	if err != nil {
		return nil, fmt.Errorf("ktimer: bind timer irq: %w", err)
	}
	t.handle = handle

	current.Store(t)
	return t, nil
}

const femtosecondsPerMillisecond = 1_000_000_000_000

// handleIRQ is invoked directly by the architecture on the timer's
// interrupt line. It acks and rearms the comparator before calling onTick.
func (t *Timer) handleIRQ(any) {
	t.regs.AckComparator(defaultComparator)
	t.rearmNextTick()
	if t.onTick != nil {
		t.onTick()
	}
}

func (t *Timer) rearmNextTick() {
	if t.periodTicks == 0 {
		return
	}
	deadline := t.regs.MainCounter() + t.periodTicks
	t.regs.ArmOneshot(defaultComparator, deadline)
}

// StartPeriodic arms the timer to fire every period, re-arming itself
// from interrupt context on every tick until StopPeriodic is called.
func (t *Timer) StartPeriodic(period uint64) {
	t.periodTicks = period * t.ticksPerMs
	deadline := t.regs.MainCounter() + t.periodTicks
	t.regs.ArmOneshot(defaultComparator, deadline)
}

// StopPeriodic disarms the comparator and stops the self-rearm cycle
// StartPeriodic began.
func (t *Timer) StopPeriodic() {
	t.periodTicks = 0
	t.regs.DisarmComparator(defaultComparator)
}

// Oneshot arms the timer to fire exactly once, deltaMs milliseconds from
// now, without rearming itself afterward.
func (t *Timer) Oneshot(deltaMs uint64) {
	t.periodTicks = 0
	deadline := t.regs.MainCounter() + deltaMs*t.ticksPerMs
	t.regs.ArmOneshot(defaultComparator, deadline)
}

// Close releases the timer's interrupt binding and disarms its
// comparator.
func (t *Timer) Close() error {
	t.regs.DisarmComparator(defaultComparator)
	current.CompareAndSwap(t, nil)
	return t.handle.Unbind()
}

// TicksToMillis converts a raw main-counter delta to milliseconds, for
// callers that read MainCounter directly.
func (t *Timer) TicksToMillis(ticks uint64) uint64 {
	if t.ticksPerMs == 0 {
		return 0
	}
	return ticks / t.ticksPerMs
}

// GetTimestamp returns the current main-counter value converted to
// milliseconds; Init does not reset the counter, so this counts from
// whenever the counter itself started. Before any Timer has been published
// via Init, it returns 0 rather than panicking - early boot code (and
// package-level var initializers that might log) can call this safely.
func GetTimestamp() uint64 {
	t := current.Load()
	if t == nil {
		return 0
	}
	return t.TicksToMillis(t.regs.MainCounter())
}
