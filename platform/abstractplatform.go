package platform

import (
	"log/slog"
	"sync"

	"github.com/gammazero/deque"

	"lautenbacher.net/goglove/config"
	"lautenbacher.net/goglove/scheduler"
	"lautenbacher.net/goglove/util"
)

type AbstractPlatform struct {
	config         *config.Config
	segments       map[string][]*segment
	history        *deque.Deque[int]
	historyMu      sync.Mutex
	reportFunc     func(scheduler.Report)
	observeWg      sync.WaitGroup
	observeStop    chan struct{}
	readyChan      chan bool
	shutdownMutex  sync.RWMutex
	isShuttingDown bool
}

func newAbstractPlatform(conf *config.Config, reportFunc func(scheduler.Report)) *AbstractPlatform {
	inst := &AbstractPlatform{
		config:      conf,
		segments:    parseDisplaySegments(conf.Display, conf.Driver.UsableChannels),
		history:     new(deque.Deque[int]),
		reportFunc:  reportFunc,
		observeStop: make(chan struct{}),
		readyChan:   make(chan bool),
	}
	inst.history.Grow(conf.Display.HistorySize)
	return inst
}

func (s *AbstractPlatform) Ready() <-chan bool {
	return s.readyChan
}

func (s *AbstractPlatform) setInShutdown() {
	s.shutdownMutex.Lock()
	s.isShuttingDown = true
	s.shutdownMutex.Unlock()
}

func (s *AbstractPlatform) inShutdown() bool {
	s.shutdownMutex.RLock()
	defer s.shutdownMutex.RUnlock()
	return s.isShuttingDown
}

// Observe starts a go-routine that records the lit count of every report
// and hands the report to the platform.
func (s *AbstractPlatform) Observe(reports *util.AtomicEvent[scheduler.Report]) {
	s.observeWg.Add(1)
	go s.reportDriver(reports)
}

func (s *AbstractPlatform) reportDriver(reports *util.AtomicEvent[scheduler.Report]) {
	defer s.observeWg.Done()
	for {
		select {
		case <-s.observeStop:
			slog.Info("Ending ReportDriver go-routine...")
			return
		case <-reports.Channel():
			report := reports.Value()
			s.record(report.Lit)
			if !s.inShutdown() && s.reportFunc != nil {
				s.reportFunc(report)
			}
		}
	}
}

// stopObserving ends the report go-routine and waits for it.
func (s *AbstractPlatform) stopObserving() {
	close(s.observeStop)
	s.observeWg.Wait()
}

func (s *AbstractPlatform) record(lit int) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	if s.history.Len() == s.config.Display.HistorySize {
		s.history.PopFront()
	}
	s.history.PushBack(lit)
}

// litStats summarizes the recorded lit counts.
func (s *AbstractPlatform) litStats() stats {
	s.historyMu.Lock()
	data := make([]int, s.history.Len())
	for i := range s.history.Len() {
		data[i] = s.history.At(i)
	}
	s.historyMu.Unlock()
	return calculateStats(data)
}
