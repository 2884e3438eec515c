package contact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// scriptedReader returns the queued reads per contact in order and then
// sticks to the fallback value.
type scriptedReader struct {
	reads    map[Contact][]bool
	fallback [Total]bool
}

func (r *scriptedReader) Closed(c Contact) bool {
	if q := r.reads[c]; len(q) > 0 {
		r.reads[c] = q[1:]
		return q[0]
	}
	return r.fallback[c]
}

func newTestSampler(r Reader, ceiling uint16) (*Sampler, *[]time.Duration) {
	var sleeps []time.Duration
	s := NewSampler(r, time.Millisecond, ceiling)
	s.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }
	return s, &sleeps
}

func TestParseContact(t *testing.T) {
	c, err := Parse(" Ring ")
	assert.NoError(t, err)
	assert.Equal(t, Ring, c)

	_, err = Parse("elbow")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown contact")

	assert.Equal(t, "palm", Palm.String())
	assert.Equal(t, "contact(9)", Contact(9).String())
}

func TestSample_BounceIsNotConfirmed(t *testing.T) {
	r := &scriptedReader{reads: map[Contact][]bool{
		Middle: {true, false}, // closed on the first read only
	}}
	s, sleeps := newTestSampler(r, 100)

	states := s.Sample()

	assert.False(t, states[Middle].Closed, "a single closed read must not count")
	assert.Equal(t, uint16(0), states[Middle].HoldTicks)
	assert.Equal(t, []time.Duration{time.Millisecond}, *sleeps, "only the closed line waits for the debounce delay")
}

func TestSample_ConfirmedClosure(t *testing.T) {
	r := &scriptedReader{}
	r.fallback[Thumb] = true
	s, sleeps := newTestSampler(r, 100)

	states := s.Sample()

	assert.True(t, states[Thumb].Closed)
	assert.Equal(t, uint16(1), states[Thumb].HoldTicks)
	assert.True(t, states.AnyClosed())
	assert.Len(t, *sleeps, 1)
	for _, c := range []Contact{Pointer, Middle, Ring, Pinky, Palm} {
		assert.False(t, states[c].Closed, c.String())
	}
}

func TestSample_HoldSaturatesAndResets(t *testing.T) {
	const ceiling = 5
	r := &scriptedReader{}
	for i := range r.fallback {
		r.fallback[i] = true
	}
	s, _ := newTestSampler(r, ceiling)

	for n := 1; n <= 12; n++ {
		states := s.Sample()
		for _, st := range states {
			assert.Equal(t, uint16(min(n, ceiling)), st.HoldTicks, "iteration %d contact %s", n, st.Contact)
		}
	}

	// One open iteration resets every contact.
	for i := range r.fallback {
		r.fallback[i] = false
	}
	states := s.Sample()
	for _, st := range states {
		assert.False(t, st.Closed)
		assert.Equal(t, uint16(0), st.HoldTicks)
	}
	assert.False(t, states.AnyClosed())
	assert.Equal(t, states, s.States())
}

func TestStates_Longest(t *testing.T) {
	var states States
	states[Ring].HoldTicks = 7
	states[Palm].HoldTicks = 30
	states[Thumb].HoldTicks = 12
	assert.Equal(t, uint16(30), states.Longest())
	assert.Equal(t, uint16(0), States{}.Longest())
}
