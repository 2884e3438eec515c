package platform

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"lautenbacher.net/goglove/config"
	"lautenbacher.net/goglove/contact"
	"lautenbacher.net/goglove/driver"
	"lautenbacher.net/goglove/logging"
	"lautenbacher.net/goglove/scheduler"
	"lautenbacher.net/goglove/state"
	"lautenbacher.net/goglove/util"
)

const (
	redrawInterval = 40 * time.Millisecond
	maxLitStep     = 5
)

// tuiContacts are toggled from the keyboard.
type tuiContacts struct {
	closed [contact.Total]atomic.Bool
}

func (c *tuiContacts) Closed(cont contact.Contact) bool {
	return c.closed[cont].Load()
}

// toggle flips the contact and returns its new state.
func (c *tuiContacts) toggle(cont contact.Contact) bool {
	for {
		old := c.closed[cont].Load()
		if c.closed[cont].CompareAndSwap(old, !old) {
			return !old
		}
	}
}

type TUIPlatform struct {
	*AbstractPlatform
	shared       *state.Shared
	contacts     *tuiContacts
	simDriver    *driver.SimDriver
	frames       *util.AtomicEvent[[]uint16]
	lastReport   atomic.Pointer[scheduler.Report]
	tviewapp     *tview.Application
	intro        *tview.TextView
	lightDisplay *tview.TextView
	statusView   *tview.TextView
	logView      *tview.TextView
	ossignalChan chan os.Signal
	logFlushOnce sync.Once
	redrawWg     sync.WaitGroup
	redrawStop   chan struct{}
}

func NewTUIPlatform(conf *config.Config, shared *state.Shared, ossignalchan chan os.Signal) *TUIPlatform {
	inst := &TUIPlatform{
		shared:       shared,
		contacts:     &tuiContacts{},
		frames:       util.NewAtomicEvent[[]uint16](),
		ossignalChan: ossignalchan,
		redrawStop:   make(chan struct{}),
	}
	inst.simDriver = driver.NewSimDriver(conf.Driver.ChannelsTotal, conf.Driver.UsableChannels,
		conf.Driver.TransferTime, inst.frames.Send)
	inst.AbstractPlatform = newAbstractPlatform(conf, inst.showReport)
	return inst
}

func (s *TUIPlatform) Contacts() contact.Reader {
	return s.contacts
}

func (s *TUIPlatform) Driver() driver.Driver {
	return s.simDriver
}

func (s *TUIPlatform) Start() error {
	if err := s.simDriver.Init(); err != nil {
		return fmt.Errorf("failed to init simulated driver: %w", err)
	}
	s.initSimulationTUI()

	s.redrawWg.Add(1)
	go s.redrawDriver()
	return nil
}

func (s *TUIPlatform) Stop() {
	s.setInShutdown()

	close(s.redrawStop)
	s.redrawWg.Wait()
	s.stopObserving()
	s.simDriver.Wait()

	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

// redrawDriver throttles the light pane to redrawInterval, however fast
// frames are committed.
func (s *TUIPlatform) redrawDriver() {
	defer s.redrawWg.Done()
	ticker := time.NewTicker(redrawInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.redrawStop:
			slog.Info("Ending RedrawDriver go-routine...")
			return
		case <-ticker.C:
			if !s.frames.HasPending() {
				continue
			}
			<-s.frames.Channel()
			frame := s.frames.Value()
			for _, segarray := range s.segments {
				for _, seg := range segarray {
					seg.setValues(frame)
				}
			}
			if !s.inShutdown() {
				s.tviewapp.QueueUpdateDraw(s.simulateLightDisplay)
			}
		}
	}
}

func (s *TUIPlatform) showReport(report scheduler.Report) {
	s.lastReport.Store(&report)
}

// getIntroText generates the dynamic text for the top info pane.
func (s *TUIPlatform) getIntroText() string {
	line1 := fmt.Sprintf("Max lit: [#ffff00]%-3d[white] (limit %d) | Hit [#ff0000]+[white]/[#ff0000]-[white] to change",
		s.shared.MaxLit(), s.config.Animation.MaxLitLimit)
	line2 := fmt.Sprintf("Hit [blue]1[-]...[blue]%d[-] to close/open a contact, gesture is %s + %s",
		contact.Total, s.config.Gesture.Contacts[0], s.config.Gesture.Contacts[1])
	line3 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"

	return fmt.Sprintf("%s\n%s\n%s", line1, line2, line3)
}

func (s *TUIPlatform) initSimulationTUI() {
	s.tviewapp = tview.NewApplication()

	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(" GOGLOVE Simulation ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	s.lightDisplay = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.lightDisplay.SetBorder(true)
	s.lightDisplay.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	s.statusView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	s.statusView.SetBorder(true).SetTitle(" Status ").SetTitleColor(tcell.ColorLightBlue)
	s.statusView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// 3 lines per group, 2 for border
	stripeHeight := (3 * max(len(s.segments), 1)) + 2

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 5, 0, false).
		AddItem(s.lightDisplay, stripeHeight, 0, false).
		AddItem(s.statusView, 5, 0, false).
		AddItem(s.logView, 0, 1, true)

	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logWriter := tview.ANSIWriter(s.logView)
			if err := logging.SetOutput(logWriter); err != nil {
				slog.Error("Failed to flush log buffer", "error", err)
			}
			close(s.readyChan)
		})
	})

	s.tviewapp.SetInputCapture(s.handleKey)

	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
}

// handleKey runs on the TUI thread.
func (s *TUIPlatform) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyCtrlC:
		s.ossignalChan <- os.Interrupt
		return nil
	case tcell.KeyUp:
		row, col := s.logView.GetScrollOffset()
		s.logView.ScrollTo(row-1, col)
		return nil
	case tcell.KeyDown:
		row, col := s.logView.GetScrollOffset()
		s.logView.ScrollTo(row+1, col)
		return nil
	case tcell.KeyRune:
		key := event.Rune()
		if key >= '1' && key < '1'+contact.Total {
			cont := contact.Contact(key - '1')
			closed := s.contacts.toggle(cont)
			slog.Debug("Contact toggled", "contact", cont, "closed", closed)
			s.drawStatus()
			return nil
		}
		switch key {
		case 'q', 'Q':
			s.ossignalChan <- os.Interrupt
			return nil
		case 'r', 'R':
			s.ossignalChan <- syscall.SIGHUP
			return nil
		case '+':
			s.adjustMaxLit(maxLitStep)
			return nil
		case '-':
			s.adjustMaxLit(-maxLitStep)
			return nil
		}
	}
	return event
}

func (s *TUIPlatform) adjustMaxLit(delta int) {
	maxLit := s.shared.AdjustMaxLit(delta, s.config.Animation.MaxLitLimit)
	slog.Info("Max lit changed", "maxlit", maxLit)
	s.intro.SetText(s.getIntroText())
}

// simulateLightDisplay redraws the light pane and the status pane. It
// must be called on the TUI thread via app.QueueUpdateDraw().
func (s *TUIPlatform) simulateLightDisplay() {
	var buf strings.Builder
	groupNames := make([]string, 0, len(s.segments))
	for name := range s.segments {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)

	for _, name := range groupNames {
		segments := s.segments[name]
		tops := make([]string, len(segments))
		bots := make([]string, len(segments))
		for i, seg := range segments {
			tops[i], bots[i] = simulateSegment(seg)
		}

		buf.WriteString(" ")
		buf.WriteString(strings.Join(tops, ""))
		buf.WriteString("\n ")
		buf.WriteString(strings.Join(bots, ""))
		buf.WriteString(fmt.Sprintf("  [blue]%s[-]\n\n", name))
	}
	s.lightDisplay.SetText(buf.String())
	s.drawStatus()
}

func (s *TUIPlatform) drawStatus() {
	s.statusView.SetText(s.statusText())
}

func (s *TUIPlatform) statusText() string {
	var line1, line2 strings.Builder
	line1.WriteString(" Contacts: ")
	for i, cont := range contact.All() {
		mark := "[#606060]open[-]  "
		if s.contacts.Closed(cont) {
			mark = "[#00ff00]closed[-]"
		}
		line1.WriteString(fmt.Sprintf("[blue]%d[-] %-7s %s  ", i+1, cont, mark))
	}

	report := s.lastReport.Load()
	st := s.litStats()
	if report == nil {
		line2.WriteString(" Waiting for the first frame...")
	} else {
		line2.WriteString(fmt.Sprintf(" Mode: [#ffff00]%-10s[-] previous: %-10s base: %4d lit: %2d/%-2d frames: %d",
			report.Mode, report.Previous, report.Base, report.Lit, report.Budget, report.Frames))
	}
	line3 := fmt.Sprintf(" Lit over %d frames [min|mean|median|max]: [%2d|%5.1f|%5.1f|%2d] std dev %4.1f",
		st.samples, st.min, st.mean, st.median, st.max, st.stdDev)
	return line1.String() + "\n" + line2.String() + "\n" + line3
}

// simulateSegment generates the two-line representation for a single segment.
func simulateSegment(seg *segment) (string, string) {
	if !seg.visible {
		return strings.Repeat(" ", seg.length()), strings.Repeat("·", seg.length())
	}

	var buf1, buf2 strings.Builder
	for _, v := range seg.getValues() {
		if v == 0 {
			buf1.WriteString(" ")
			buf2.WriteString(" ")
			continue
		}
		topChar, bottomChar := intensityGlyphs(v)
		colorStr := intensityColor(v)
		buf1.WriteString(colorStr + topChar + "[-]")
		buf2.WriteString(colorStr + bottomChar + "[-]")
	}
	return buf1.String(), buf2.String()
}

var levels = []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}

// intensityGlyphs maps a non-zero 12 bit value onto a two character
// column of 16 steps.
func intensityGlyphs(v uint16) (string, string) {
	step := int(v) * 16 / (driver.MaxValue + 1)
	if step < len(levels) {
		return " ", levels[step]
	}
	return levels[step-len(levels)], "█"
}

func intensityColor(v uint16) string {
	if v >= driver.MaxValue {
		return "[#ffffff]"
	}
	g := 64 + int(v)*191/driver.MaxValue
	return fmt.Sprintf("[#%02x%02x%02x]", g, g, g/3)
}
