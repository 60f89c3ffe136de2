// Package arch sketches the architecture-specific primitives that the
// kernel core consumes, but does not implement itself.
//
// A real kernel binds these to actual hardware: the IOAPIC/PIC for GSI
// routing, CLI/STI (or RISC-V's equivalent CSR bit) for local interrupt
// masking, inb/outb for legacy port I/O, and the page tables for MMIO
// mapping. Concrete ACPI table parsing, PCI enumeration and USB host
// controller logic all eventually call down into one of these primitives;
// none of that is this package's concern.
//
// This package only defines the contracts (§6 of the design) and ships one
// concrete, hosted implementation - [Sim] - that backs the core's test
// suite and lets the whole stack run as an ordinary Go program instead of
// requiring real silicon. A bare-metal port provides its own
// implementation of [Controller] and swaps it in at boot.
package arch

import "errors"

// ErrBindFailed is returned by Controller.BindGSI when a GSI cannot be
// routed - e.g. it is claimed by firmware, or is out of range for the
// interrupt controller. Per the error taxonomy (§7), a failure here is
// fatal for the caller: the kernel cannot route the requested line.
var ErrBindFailed = errors.New("arch: unable to route GSI")

// RawHandler is the signature the architecture invokes directly from
// interrupt context. cookie is whatever opaque value was supplied to
// BindGSI; it is handed back unmodified so the caller can recover its
// binding without a lookup. A RawHandler must not block, allocate, or
// acquire a mutex - see §5, execution context 1.
type RawHandler func(cookie any)

// Handle identifies one successful GSI routing. Unbind releases the route;
// after Unbind returns, the architecture guarantees no further calls to
// the bound RawHandler for this GSI.
type Handle interface {
	Unbind() error
}

// Controller is the architecture's interrupt-routing primitive,
// corresponding to interrupts::bind_gsi in the source this core is
// modeled on.
type Controller interface {
	// BindGSI routes a global system interrupt to handler, passing cookie
	// back on every firing. Returns ErrBindFailed (wrapped) if the GSI
	// cannot be routed.
	BindGSI(gsi uint32, handler RawHandler, cookie any) (Handle, error)
}

// InterruptMask is the local (single-CPU) interrupt mask primitive,
// corresponding to sync::hold_interrupts. Disable and Enable must nest:
// an implementation backed by a depth counter, not a raw flag, is
// required for correct composition (§4.C).
type InterruptMask interface {
	// Disable masks local interrupt delivery and returns the mask state
	// that was in effect beforehand, for Enable to restore.
	Disable() (previous bool)
	// Enable restores local interrupt delivery to the given prior state.
	Enable(previous bool)
}

// PortIO models byte/word/dword port I/O (inb/outb and friends on x86).
// Only the legacy-timer disable dance (§4.F) and arbitrary device drivers
// outside this core's scope need it; it is sketched here only so that
// code porting the HPET bring-up sequence has somewhere to call.
type PortIO interface {
	Out8(port uint16, value uint8)
	In8(port uint16) uint8
}

// MMIO models a mapped region of physical memory, addressable as 64-bit
// words - the contract memory::virt::map_hw_rw/Mapping.as_int_mut
// exposes in the source kernel. Word is the unit the timer register file
// (§4.F) and any other MMIO device driver reads and writes.
type MMIO interface {
	// ReadWord performs a volatile-equivalent load of the word at the
	// given index (not byte offset).
	ReadWord(index int) uint64
	// WriteWord performs a volatile-equivalent store of the word at the
	// given index (not byte offset).
	WriteWord(index int, value uint64)
	// Len reports the number of addressable words in the mapping.
	Len() int
}
