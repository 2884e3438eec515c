package gesture

import (
	"lautenbacher.net/goglove/contact"
	"lautenbacher.net/goglove/state"
)

// Latch detects a sustained simultaneous closure of two contacts and
// toggles the operating mode once per closure.
//
// Tick runs in the periodic tick goroutine and owns the counter and the
// latch bit. Its only effects visible to the main loop are the atomic
// mode toggle and the pending flags in state.Shared; it never blocks
// and never touches the light buffer.
type Latch struct {
	reader      contact.Reader
	first       contact.Contact
	second      contact.Contact
	threshold   uint16
	shared      *state.Shared
	consecutive uint16
	latched     bool
}

func NewLatch(reader contact.Reader, first, second contact.Contact, threshold uint16, shared *state.Shared) *Latch {
	return &Latch{
		reader:    reader,
		first:     first,
		second:    second,
		threshold: threshold,
		shared:    shared,
	}
}

// Tick samples the two gesture contacts raw. The tick rate already
// averages out contact bounce.
func (l *Latch) Tick() {
	if !l.reader.Closed(l.first) || !l.reader.Closed(l.second) {
		l.latched = false
		l.consecutive = 0
		return
	}
	if l.latched {
		return
	}
	l.consecutive++
	if l.consecutive >= l.threshold {
		l.shared.ToggleMode()
		l.shared.Request(state.ForceHigh | state.Blink)
		l.latched = true
		l.consecutive = 0
	}
}

// Consecutive returns the current count. Only meaningful from the tick
// goroutine or after it has stopped.
func (l *Latch) Consecutive() uint16 {
	return l.consecutive
}

// Latched reports whether the current closure already toggled the mode.
func (l *Latch) Latched() bool {
	return l.latched
}
