// Package animation implements the "bubble pop" automaton: a light is
// admitted while the budget allows it, rises in random steps until it
// crosses the ceiling, goes dark for one step, flashes at full intensity
// for one step and then switches off and frees its budget slot.
//
//	Inactive --admit--> Rising(0) --inc--> Rising(v) ... --v >= ceiling--> CeilingPending
//	CeilingPending --> Flashed --> Inactive
//
// Outputs per transition: Rising emits the new value, entering
// CeilingPending emits 0, CeilingPending emits the flash value and
// Flashed emits 0 on deactivation. Admission emits nothing.
package animation

import (
	"lautenbacher.net/goglove/driver"
)

// Rand is the source of rise increments. *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// Field holds the state of all lights and the number of active ones.
// It is owned by the scheduler and not safe for concurrent use.
type Field struct {
	lights  []Light
	lit     int
	minRate int
	maxRate int
	ceiling int
	flash   uint16
	rng     Rand
}

// NewField creates size inactive lights. Rise increments are drawn from
// [minRate, maxRate).
func NewField(size, minRate, maxRate, ceiling int, flash uint16, rng Rand) *Field {
	return &Field{
		lights:  make([]Light, size),
		minRate: minRate,
		maxRate: maxRate,
		ceiling: ceiling,
		flash:   flash,
		rng:     rng,
	}
}

// Advance moves light id one step. An inactive light is admitted only
// while fewer than budget lights are active.
func (f *Field) Advance(id int, budget int, out driver.ChannelWriter) {
	l := &f.lights[id]
	switch l.Phase {
	case Inactive:
		if f.lit < budget {
			l.Phase = Rising
			l.Value = 0
			f.lit++
		}
	case Rising:
		next := l.Value + f.increment()
		if next >= f.ceiling {
			l.Phase = CeilingPending
			l.Value = 0
			out.SetChannel(id, 0)
			return
		}
		l.Value = next
		out.SetChannel(id, uint16(next))
	case CeilingPending:
		l.Phase = Flashed
		out.SetChannel(id, f.flash)
	case Flashed:
		l.Phase = Inactive
		l.Value = 0
		f.lit--
		out.SetChannel(id, 0)
	}
}

// retireOrder lists the phases in which lights are retired first, those
// closest to the end of their cycle.
var retireOrder = [...]Phase{Flashed, CeilingPending, Rising}

// Retire switches off active lights until at most budget remain and stages
// 0 for each of them. It returns the number of lights retired.
func (f *Field) Retire(budget int, out driver.ChannelWriter) int {
	retired := 0
	for _, phase := range retireOrder {
		for id := range f.lights {
			if f.lit <= max(budget, 0) {
				return retired
			}
			l := &f.lights[id]
			if l.Phase != phase {
				continue
			}
			l.Phase = Inactive
			l.Value = 0
			f.lit--
			retired++
			out.SetChannel(id, 0)
		}
	}
	return retired
}

// Refresh stages the current output of every active light. With decay
// set, rising lights lose one step of intensity, never going below zero.
func (f *Field) Refresh(out driver.ChannelWriter, decay bool) {
	for id := range f.lights {
		l := &f.lights[id]
		if !l.Active() {
			continue
		}
		out.SetChannel(id, l.Output(f.flash))
		if decay && l.Phase == Rising && l.Value > 0 {
			l.Value--
		}
	}
}

func (f *Field) increment() int {
	span := f.maxRate - f.minRate
	if span <= 0 {
		return f.minRate
	}
	return f.minRate + f.rng.IntN(span)
}

// Lit returns the number of active lights.
func (f *Field) Lit() int {
	return f.lit
}

// Len returns the number of lights in the field.
func (f *Field) Len() int {
	return len(f.lights)
}

// Light returns the state of light id.
func (f *Field) Light(id int) Light {
	return f.lights[id]
}
