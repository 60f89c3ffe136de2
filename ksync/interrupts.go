package ksync

import "github.com/joeycumines/kernelcore/arch"

// InterruptGuard represents one nested "interrupts held" scope. Release
// restores the interrupt mask to what it was before the matching Hold
// call - nested Hold/Release pairs compose correctly because each guard
// remembers its own prior state rather than a single shared flag.
type InterruptGuard struct {
	mask     arch.InterruptMask
	previous bool
	released bool
}

// HoldInterrupts disables local interrupt delivery on mask and returns a
// guard that restores the prior state on Release. Hold/Release pairs
// nest: an inner Hold's Release does not re-enable interrupts if an
// outer Hold is still active, because InterruptMask.Disable/Enable
// themselves track nesting depth (§4.C).
func HoldInterrupts(mask arch.InterruptMask) *InterruptGuard {
	return &InterruptGuard{mask: mask, previous: mask.Disable()}
}

// Release restores the interrupt mask to its state before the matching
// HoldInterrupts call. Calling Release twice panics.
func (g *InterruptGuard) Release() {
	if g.released {
		panic("ksync: Release of already-released InterruptGuard")
	}
	g.released = true
	g.mask.Enable(g.previous)
}
