package driver

import (
	"sync"
	"sync/atomic"
	"time"
)

// SimDriver is an in-memory Driver. A commit copies the staged values
// and hands them to the frame callback after the configured transfer
// time, clearing the busy flag afterwards. With a zero transfer time the
// commit completes before RequestCommit returns.
//
// Staging a value while busy is counted as a violation of the commit
// handshake instead of corrupting the frame in flight.
type SimDriver struct {
	mu         sync.Mutex
	staged     []uint16
	usable     int
	transfer   time.Duration
	onFrame    func(frame []uint16)
	busy       atomic.Bool
	commits    atomic.Int64
	violations atomic.Int64
	wg         sync.WaitGroup
}

func NewSimDriver(channels, usable int, transfer time.Duration, onFrame func(frame []uint16)) *SimDriver {
	return &SimDriver{
		staged:   make([]uint16, channels),
		usable:   usable,
		transfer: transfer,
		onFrame:  onFrame,
	}
}

func (s *SimDriver) Init() error {
	s.SetAll(0)
	return nil
}

func (s *SimDriver) SetChannel(ch int, value uint16) {
	if s.busy.Load() {
		s.violations.Add(1)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch < 0 || ch >= len(s.staged) {
		return
	}
	s.staged[ch] = min(value, MaxValue)
}

func (s *SimDriver) SetAll(value uint16) {
	if s.busy.Load() {
		s.violations.Add(1)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.staged {
		s.staged[i] = min(value, MaxValue)
	}
}

func (s *SimDriver) RequestCommit() {
	s.mu.Lock()
	frame := make([]uint16, len(s.staged))
	copy(frame, s.staged)
	s.mu.Unlock()

	s.busy.Store(true)
	s.commits.Add(1)
	if s.transfer <= 0 {
		s.deliver(frame)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		time.Sleep(s.transfer)
		s.deliver(frame)
	}()
}

func (s *SimDriver) deliver(frame []uint16) {
	if s.onFrame != nil {
		s.onFrame(frame)
	}
	s.busy.Store(false)
}

func (s *SimDriver) Busy() bool {
	return s.busy.Load()
}

func (s *SimDriver) UsableChannels() int {
	return s.usable
}

// Staged returns a copy of the values currently staged.
func (s *SimDriver) Staged() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]uint16, len(s.staged))
	copy(ret, s.staged)
	return ret
}

// Commits returns the number of RequestCommit calls so far.
func (s *SimDriver) Commits() int64 {
	return s.commits.Load()
}

// Violations returns how many values were staged while busy.
func (s *SimDriver) Violations() int64 {
	return s.violations.Load()
}

// Wait blocks until all transfers in flight have been delivered.
func (s *SimDriver) Wait() {
	s.wg.Wait()
}
