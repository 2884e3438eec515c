package platform

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lautenbacher.net/goglove/config"
	"lautenbacher.net/goglove/scheduler"
	"lautenbacher.net/goglove/util"
)

func TestAbstractPlatform_RecordsBoundedHistory(t *testing.T) {
	conf := config.Default()
	conf.Display.HistorySize = 3
	p := newAbstractPlatform(conf, nil)

	for _, lit := range []int{1, 2, 3, 4, 5} {
		p.record(lit)
	}
	st := p.litStats()
	assert.Equal(t, 3, st.samples)
	assert.Equal(t, 3, st.min, "oldest values are dropped")
	assert.Equal(t, 5, st.max)
}

func TestAbstractPlatform_Observe(t *testing.T) {
	conf := config.Default()
	var seen atomic.Int32
	p := newAbstractPlatform(conf, func(r scheduler.Report) {
		seen.Store(int32(r.Lit))
	})

	reports := util.NewAtomicEvent[scheduler.Report]()
	p.Observe(reports)
	reports.Send(scheduler.Report{Lit: 17})

	assert.Eventually(t, func() bool { return seen.Load() == 17 }, time.Second, time.Millisecond)
	assert.Equal(t, 17, p.litStats().max)

	p.stopObserving()
}
