package arch

import (
	"fmt"
	"sync"
)

// maxGSI bounds the simulated GSI space: a fixed-size, direct-indexed
// array keyed by GSI rather than a map, since real GSI spaces are small
// and dense.
const maxGSI = 256

type gsiSlot struct {
	bound   bool
	handler RawHandler
	cookie  any
}

// Sim is a hosted, single-process stand-in for the architecture layer.
// It satisfies [Controller] and [InterruptMask] (MMIO is provided
// separately by [SimMMIO]), and is enough to drive the whole kernel core
// under `go test` without any real hardware.
//
// Interrupt delivery is synchronous: Fire invokes the bound RawHandler on
// the calling goroutine, exactly as a real architecture would invoke it
// on whichever CPU took the interrupt. Callers that want to model an
// asynchronous device (the timer, a fabricated NIC) should call Fire from
// a dedicated goroutine.
type Sim struct {
	mu    sync.Mutex
	slots [maxGSI]gsiSlot

	maskMu sync.Mutex
	depth  int
}

// NewSim constructs an empty simulated architecture.
func NewSim() *Sim {
	return &Sim{}
}

var (
	_ Controller    = (*Sim)(nil)
	_ InterruptMask = (*Sim)(nil)
	_ MMIO          = (*SimMMIO)(nil)
)

type simHandle struct {
	sim *Sim
	gsi uint32
}

func (h *simHandle) Unbind() error {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()
	if h.gsi >= maxGSI || !h.sim.slots[h.gsi].bound {
		return fmt.Errorf("arch: gsi %d not bound", h.gsi)
	}
	h.sim.slots[h.gsi] = gsiSlot{}
	return nil
}

// BindGSI implements [Controller].
func (s *Sim) BindGSI(gsi uint32, handler RawHandler, cookie any) (Handle, error) {
	if gsi >= maxGSI {
		return nil, fmt.Errorf("%w: gsi %d out of range", ErrBindFailed, gsi)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slots[gsi].bound {
		return nil, fmt.Errorf("%w: gsi %d already bound", ErrBindFailed, gsi)
	}
	s.slots[gsi] = gsiSlot{bound: true, handler: handler, cookie: cookie}
	return &simHandle{sim: s, gsi: gsi}, nil
}

// Fire synchronously invokes the handler bound to gsi, if any, as the
// architecture would from real interrupt context. It reports whether a
// handler was bound and invoked.
func (s *Sim) Fire(gsi uint32) bool {
	if gsi >= maxGSI {
		return false
	}
	s.mu.Lock()
	slot := s.slots[gsi]
	s.mu.Unlock()
	if !slot.bound {
		return false
	}
	slot.handler(slot.cookie)
	return true
}

// Disable implements [InterruptMask]. Nesting is tracked with a depth
// counter: only the outermost Disable actually masks delivery, matching
// hold_interrupts' nesting contract.
func (s *Sim) Disable() bool {
	s.maskMu.Lock()
	defer s.maskMu.Unlock()
	previous := s.depth > 0
	s.depth++
	return previous
}

// Enable implements [InterruptMask].
func (s *Sim) Enable(previous bool) {
	s.maskMu.Lock()
	defer s.maskMu.Unlock()
	if s.depth > 0 {
		s.depth--
	}
	_ = previous
}

// Masked reports whether local interrupt delivery is currently disabled,
// for test assertions.
func (s *Sim) Masked() bool {
	s.maskMu.Lock()
	defer s.maskMu.Unlock()
	return s.depth > 0
}

// SimMMIO is a plain in-memory word array satisfying [MMIO], used to back
// the timer register file (§4.F) in tests and in the demo.
type SimMMIO struct {
	mu    sync.Mutex
	words []uint64
}

// NewSimMMIO allocates a simulated MMIO region of n words.
func NewSimMMIO(n int) *SimMMIO {
	return &SimMMIO{words: make([]uint64, n)}
}

func (m *SimMMIO) ReadWord(index int) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.words[index]
}

func (m *SimMMIO) WriteWord(index int, value uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.words[index] = value
}

func (m *SimMMIO) Len() int {
	return len(m.words)
}
