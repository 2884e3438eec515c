package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lautenbacher.net/goglove/config"
)

func TestNewSegment(t *testing.T) {
	s := newSegment(0, 9, false, true, 96)
	assert.Equal(t, 0, s.firstLight)
	assert.Equal(t, 9, s.lastLight)
	assert.Equal(t, 10, s.length())
	assert.Len(t, s.values, 10)
	assert.True(t, s.visible)

	s = newSegment(9, 0, false, true, 96)
	assert.Equal(t, 0, s.firstLight, "indices are swapped")
	assert.Equal(t, 9, s.lastLight)

	s = newSegment(-5, 105, false, true, 96)
	assert.Equal(t, 0, s.firstLight, "clamped to the first light")
	assert.Equal(t, 95, s.lastLight, "clamped to the last light")
}

func TestSetValues(t *testing.T) {
	frame := make([]uint16, 10)
	for i := range frame {
		frame[i] = uint16(i * 100)
	}

	s := newSegment(2, 5, false, true, 10)
	s.setValues(frame)
	assert.Equal(t, []uint16{200, 300, 400, 500}, s.getValues())

	r := newSegment(2, 5, true, true, 10)
	r.setValues(frame)
	assert.Equal(t, []uint16{500, 400, 300, 200}, r.getValues())
	assert.Equal(t, uint16(200), frame[2], "the frame is not reversed in place")
}

func TestGetValues_Invisible(t *testing.T) {
	s := newSegment(0, 9, false, false, 96)
	s.setValues(make([]uint16, 96))
	assert.Nil(t, s.getValues())
}

func TestParseDisplaySegments_FillsGaps(t *testing.T) {
	displayConfig := config.DisplayConfig{
		LightSegments: map[string][]config.SegmentConfig{
			"back": {
				{FirstLight: 40, LastLight: 59},
				{FirstLight: 10, LastLight: 19, Reverse: true},
			},
		},
	}

	segments := parseDisplaySegments(displayConfig, 96)
	require.Contains(t, segments, "back")
	back := segments["back"]
	require.Len(t, back, 5)

	expected := []struct {
		first, last int
		visible     bool
	}{
		{0, 9, false},
		{10, 19, true},
		{20, 39, false},
		{40, 59, true},
		{60, 95, false},
	}
	total := 0
	for i, e := range expected {
		assert.Equal(t, e.first, back[i].firstLight, "segment %d", i)
		assert.Equal(t, e.last, back[i].lastLight, "segment %d", i)
		assert.Equal(t, e.visible, back[i].visible, "segment %d", i)
		total += back[i].length()
	}
	assert.Equal(t, 96, total, "every light is covered exactly once")
	assert.True(t, back[1].reverse)
}
