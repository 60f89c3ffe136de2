// Package ktimer implements an HPET-style programmable one-shot
// comparator timer: the kernel's only source of wall-clock time and its
// only means of scheduling "wake me up N ticks from now" without busy
// waiting.
//
// The register layout mirrors a real HPET's memory-mapped register
// file closely enough that the constants below double as documentation
// of the wire format, not just magic offsets:
//
//	word 0        capabilities (bits 63:32 = counter period, femtoseconds)
//	word 1        general configuration (bit 0 = overall enable)
//	word 2        general interrupt status (one bit per comparator, W1C)
//	word 15 (0xF) main up-counter
//	word 16+2c    comparator c's per-timer configuration
//	word 17+2c    comparator c's comparator value
package ktimer

import "github.com/joeycumines/kernelcore/arch"

const (
	regCapsID     = 0
	regConfig     = 1
	regISR        = 2
	regMainCtr    = 0xF
	regTimer0Base = 0x10

	configEnableBit = 1 << 0

	// numComparators bounds how many independent one-shot timers this
	// register file exposes; real HPETs report this in capsID but a
	// fixed small count is enough for every caller this kernel has.
	numComparators = 3
)

// Registers is a typed view over the timer's MMIO register file.
type Registers struct {
	mmio arch.MMIO
}

// NewRegisters wraps an MMIO region as a timer register file. The caller
// is responsible for having mapped mmio over the correct physical
// address range; Registers only interprets word offsets within it.
func NewRegisters(mmio arch.MMIO) *Registers {
	return &Registers{mmio: mmio}
}

// PeriodFemtoseconds reports the main counter's tick period, read out of
// the capabilities register's upper 32 bits.
func (r *Registers) PeriodFemtoseconds() uint64 {
	return r.mmio.ReadWord(regCapsID) >> 32
}

// SetEnabled toggles the overall timer block on or off via the general
// configuration register. The main counter does not advance, and no
// comparator can fire, while disabled.
func (r *Registers) SetEnabled(enabled bool) {
	cfg := r.mmio.ReadWord(regConfig)
	if enabled {
		cfg |= configEnableBit
	} else {
		cfg &^= configEnableBit
	}
	r.mmio.WriteWord(regConfig, cfg)
}

// MainCounter reads the free-running up-counter.
func (r *Registers) MainCounter() uint64 {
	return r.mmio.ReadWord(regMainCtr)
}

func (r *Registers) comparatorConfigIndex(c int) int { return regTimer0Base + c*2 }
func (r *Registers) comparatorValueIndex(c int) int  { return regTimer0Base + c*2 + 1 }

// ArmOneshot programs comparator c to fire once the main counter reaches
// deadline, and unmasks its interrupt. c must be in [0, numComparators);
// out of range is a programming error (wiring an impossible comparator
// index), not a runtime condition, and panics.
func (r *Registers) ArmOneshot(c int, deadline uint64) {
	r.assertComparator(c)
	r.mmio.WriteWord(r.comparatorValueIndex(c), deadline)
	r.mmio.WriteWord(r.comparatorConfigIndex(c), 1) // interrupt-enable bit
}

// DisarmComparator masks comparator c's interrupt without altering the
// main counter.
func (r *Registers) DisarmComparator(c int) {
	r.assertComparator(c)
	r.mmio.WriteWord(r.comparatorConfigIndex(c), 0)
}

// AckComparator clears comparator c's pending interrupt-status bit. The
// register file is treated as plain memory (as [arch.SimMMIO] is), so the
// bit is cleared with a read-modify-write rather than a real HPET's
// write-1-to-clear store; other comparators' bits are left as they are.
func (r *Registers) AckComparator(c int) {
	r.assertComparator(c)
	r.mmio.WriteWord(regISR, r.mmio.ReadWord(regISR)&^(uint64(1)<<uint(c)))
}

// ComparatorFired reports whether comparator c's status bit is set.
func (r *Registers) ComparatorFired(c int) bool {
	r.assertComparator(c)
	return r.mmio.ReadWord(regISR)&(uint64(1)<<uint(c)) != 0
}

func (r *Registers) assertComparator(c int) {
	if c < 0 || c >= numComparators {
		panic("ktimer: comparator index out of range")
	}
}
