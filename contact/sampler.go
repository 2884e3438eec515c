package contact

import (
	"time"
)

// State is the debounced view of one contact for one iteration.
type State struct {
	Contact   Contact
	Closed    bool
	HoldTicks uint16
}

// States is the full contact table produced by one Sample call.
type States [Total]State

// Longest returns the largest hold count of all contacts.
func (s States) Longest() uint16 {
	var longest uint16
	for _, st := range s {
		if st.HoldTicks > longest {
			longest = st.HoldTicks
		}
	}
	return longest
}

// AnyClosed is true if at least one contact is confirmed closed.
func (s States) AnyClosed() bool {
	for _, st := range s {
		if st.Closed {
			return true
		}
	}
	return false
}

// Sampler debounces the six contact lines and keeps a saturating hold
// counter per contact. It is owned by the main loop and not safe for
// concurrent use.
type Sampler struct {
	reader   Reader
	debounce time.Duration
	ceiling  uint16
	sleep    func(time.Duration)
	states   States
}

func NewSampler(reader Reader, debounce time.Duration, ceiling uint16) *Sampler {
	inst := &Sampler{
		reader:   reader,
		debounce: debounce,
		ceiling:  ceiling,
		sleep:    time.Sleep,
	}
	for i, c := range All() {
		inst.states[i].Contact = c
	}
	return inst
}

// Sample reads all contacts. A closed line is re-read after the debounce
// delay and only counts as closed when both reads agree. Confirmed
// contacts increment their hold count up to the ceiling, all others are
// reset to zero.
func (s *Sampler) Sample() States {
	for i := range s.states {
		st := &s.states[i]
		if s.confirmed(st.Contact) {
			st.Closed = true
			if st.HoldTicks < s.ceiling {
				st.HoldTicks++
			}
		} else {
			st.Closed = false
			st.HoldTicks = 0
		}
	}
	return s.states
}

// States returns the table from the last Sample call.
func (s *Sampler) States() States {
	return s.states
}

func (s *Sampler) confirmed(c Contact) bool {
	if !s.reader.Closed(c) {
		return false
	}
	if s.debounce > 0 {
		s.sleep(s.debounce)
	}
	return s.reader.Closed(c)
}
