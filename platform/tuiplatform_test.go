package platform

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"lautenbacher.net/goglove/config"
	"lautenbacher.net/goglove/contact"
	"lautenbacher.net/goglove/scheduler"
	"lautenbacher.net/goglove/state"
)

func TestTUIContacts_Toggle(t *testing.T) {
	c := &tuiContacts{}
	assert.False(t, c.Closed(contact.Ring))
	assert.True(t, c.toggle(contact.Ring))
	assert.True(t, c.Closed(contact.Ring))
	assert.False(t, c.Closed(contact.Pinky))
	assert.False(t, c.toggle(contact.Ring))
	assert.False(t, c.Closed(contact.Ring))
}

func TestIntensityGlyphs(t *testing.T) {
	top, bottom := intensityGlyphs(1)
	assert.Equal(t, " ", top)
	assert.Equal(t, "▁", bottom)

	top, bottom = intensityGlyphs(2047)
	assert.Equal(t, " ", top)
	assert.Equal(t, "█", bottom)

	top, bottom = intensityGlyphs(2048)
	assert.Equal(t, "▁", top)
	assert.Equal(t, "█", bottom)

	top, bottom = intensityGlyphs(4095)
	assert.Equal(t, "█", top)
	assert.Equal(t, "█", bottom)
}

func TestSimulateSegment(t *testing.T) {
	hidden := newSegment(0, 2, false, false, 10)
	top, bottom := simulateSegment(hidden)
	assert.Equal(t, "   ", top)
	assert.Equal(t, "···", bottom)

	seg := newSegment(0, 1, false, true, 10)
	seg.setValues([]uint16{0, 4095})
	top, bottom = simulateSegment(seg)
	assert.Equal(t, " [#ffffff]█[-]", top)
	assert.Equal(t, " [#ffffff]█[-]", bottom)
}

func TestTUIPlatform_StatusText(t *testing.T) {
	conf := config.Default()
	shared := state.NewShared(state.Production, conf.Animation.MaxLit)
	p := NewTUIPlatform(conf, shared, make(chan os.Signal, 1))

	assert.Contains(t, p.statusText(), "Waiting for the first frame")

	p.contacts.toggle(contact.Thumb)
	p.record(12)
	p.showReport(scheduler.Report{Mode: state.Demo, Previous: state.Production, Lit: 12, Budget: 45, Frames: 3})

	text := p.statusText()
	assert.Contains(t, text, "[blue]1[-] thumb   [#00ff00]closed[-]")
	assert.Contains(t, text, "Mode: [#ffff00]demo")
	assert.Contains(t, text, "lit: 12/45")
	assert.Contains(t, text, "Lit over 1 frames")
	assert.Equal(t, 96, p.Driver().UsableChannels())
}
