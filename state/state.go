// Package state holds the glove state that is shared between the
// periodic gesture tick and the main control loop. Every field is a
// single machine word accessed atomically, so neither side ever sees a
// half-written value.
package state

import (
	"sync/atomic"
)

// Mode is the operating mode of the glove.
type Mode uint8

const (
	Production Mode = iota
	Demo
)

func (m Mode) String() string {
	switch m {
	case Production:
		return "production"
	case Demo:
		return "demo"
	default:
		return "unknown"
	}
}

// Toggled returns the other mode.
func (m Mode) Toggled() Mode {
	if m == Demo {
		return Production
	}
	return Demo
}

// Pending is a set of requests raised by the gesture tick and drained by
// the main loop.
type Pending uint32

const (
	// ForceHigh asks for one full-field frame at the force intensity.
	ForceHigh Pending = 1 << iota
	// Blink asks for the blink acknowledge sequence.
	Blink
)

func (p Pending) Has(flag Pending) bool {
	return p&flag != 0
}

// Shared is the owned context object passed to both the tick handler and
// the scheduler.
type Shared struct {
	// current mode in bits 0-7, previous mode in bits 8-15
	modes   atomic.Uint32
	pending atomic.Uint32
	maxLit  atomic.Int32
}

func NewShared(initial Mode, maxLit int) *Shared {
	inst := &Shared{}
	inst.modes.Store(packModes(initial, initial))
	inst.maxLit.Store(int32(maxLit))
	return inst
}

func packModes(current, previous Mode) uint32 {
	return uint32(current) | uint32(previous)<<8
}

// Mode returns the current mode.
func (s *Shared) Mode() Mode {
	return Mode(s.modes.Load() & 0xff)
}

// Modes returns the current and the previous mode from one load.
func (s *Shared) Modes() (current, previous Mode) {
	w := s.modes.Load()
	return Mode(w & 0xff), Mode(w >> 8 & 0xff)
}

// ToggleMode switches between Demo and Production, records the old mode
// as the previous one and returns the new mode.
func (s *Shared) ToggleMode() Mode {
	for {
		old := s.modes.Load()
		cur := Mode(old & 0xff)
		next := cur.Toggled()
		if s.modes.CompareAndSwap(old, packModes(next, cur)) {
			return next
		}
	}
}

// Request adds flags to the pending set.
func (s *Shared) Request(flags Pending) {
	s.pending.Or(uint32(flags))
}

// Drain returns all pending flags and clears them.
func (s *Shared) Drain() Pending {
	return Pending(s.pending.Swap(0))
}

// Peek returns the pending flags without clearing them.
func (s *Shared) Peek() Pending {
	return Pending(s.pending.Load())
}

// MaxLit is the runtime-adjustable Production budget.
func (s *Shared) MaxLit() int {
	return int(s.maxLit.Load())
}

// AdjustMaxLit adds delta to the Production budget, keeping it within
// [0, limit], and returns the new value.
func (s *Shared) AdjustMaxLit(delta, limit int) int {
	for {
		old := s.maxLit.Load()
		next := min(max(int(old)+delta, 0), limit)
		if s.maxLit.CompareAndSwap(old, int32(next)) {
			return next
		}
	}
}
