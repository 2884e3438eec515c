package platform

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"lautenbacher.net/goglove/config"
	"lautenbacher.net/goglove/contact"
	"lautenbacher.net/goglove/driver"
	"lautenbacher.net/goglove/scheduler"
)

type RaspberryPiPlatform struct {
	*AbstractPlatform
	contacts    *rpiContacts
	grayscale   *grayscaleDriver
	spiPort     spi.PortCloser
	latchPin    gpio.PinIO
	reportsSeen int
}

// rpiContacts reads the contact lines. The lines use the internal pull-ups
// and a closed contact pulls its line low.
type rpiContacts struct {
	pins  [contact.Total]rpio.Pin
	wired [contact.Total]bool
}

func (c *rpiContacts) Closed(cont contact.Contact) bool {
	if !c.wired[cont] {
		return false
	}
	return c.pins[cont].Read() == rpio.Low
}

func NewRaspberryPiPlatform(conf *config.Config) *RaspberryPiPlatform {
	inst := &RaspberryPiPlatform{
		contacts: &rpiContacts{},
	}
	inst.AbstractPlatform = newAbstractPlatform(conf, inst.logReport)
	return inst
}

func (s *RaspberryPiPlatform) Contacts() contact.Reader {
	return s.contacts
}

func (s *RaspberryPiPlatform) Driver() driver.Driver {
	return s.grayscale
}

func (s *RaspberryPiPlatform) Start() error {
	hw := s.config.Hardware

	slog.Info("Waiting for power to stabilise...", "delay", hw.PowerUpDelay)
	time.Sleep(hw.PowerUpDelay)

	slog.Info("Initialise contact GPIOs...")
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}
	for name, number := range hw.ContactPins {
		// names are checked by the config validation
		cont, _ := contact.Parse(name)
		pin := rpio.Pin(number)
		pin.Input()
		pin.PullUp()
		s.contacts.pins[cont] = pin
		s.contacts.wired[cont] = true
	}

	slog.Info("Initialise Spi and latch GPIO...")
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to init periph: %w", err)
	}

	var err error
	s.spiPort, err = spireg.Open(hw.SPIDevice)
	if err != nil {
		return fmt.Errorf("failed to open spi: %w", err)
	}
	conn, err := s.spiPort.Connect(physic.Frequency(hw.SPIFrequency)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		return fmt.Errorf("failed to connect to spi device: %w", err)
	}

	s.latchPin = gpioreg.ByName(fmt.Sprintf("GPIO%d", hw.LatchGPIO))
	if s.latchPin == nil {
		return fmt.Errorf("failed to find latch pin %d", hw.LatchGPIO)
	}
	if err := s.latchPin.Out(gpio.Low); err != nil {
		return fmt.Errorf("failed to set latch pin %d to output: %w", hw.LatchGPIO, err)
	}

	s.grayscale = newGrayscaleDriver(s.config.Driver.ChannelsTotal, s.config.Driver.UsableChannels, func(data []byte) error {
		if err := conn.Tx(data, nil); err != nil {
			return err
		}
		if err := s.latchPin.Out(gpio.High); err != nil {
			return err
		}
		return s.latchPin.Out(gpio.Low)
	})
	if err := s.grayscale.Init(); err != nil {
		return fmt.Errorf("failed to init grayscale driver: %w", err)
	}

	close(s.readyChan) // For RPi, we are ready immediately.
	return nil
}

func (s *RaspberryPiPlatform) Stop() {
	s.setInShutdown()
	s.stopObserving()

	if s.grayscale != nil {
		s.grayscale.wait()
		// leave the glove dark
		s.grayscale.SetAll(0)
		s.grayscale.RequestCommit()
		s.grayscale.wait()
	}

	if s.spiPort != nil {
		if err := s.spiPort.Close(); err != nil {
			slog.Error("Error closing spi port", "error", err)
		}
		s.spiPort = nil
	}
	if s.latchPin != nil {
		if err := s.latchPin.Halt(); err != nil {
			slog.Error("Error halting latch pin", "error", err)
		}
	}
	if err := rpio.Close(); err != nil {
		slog.Error("Error closing rpio", "error", err)
	}
}

// logReport logs a summary of the lit counts once per history window.
func (s *RaspberryPiPlatform) logReport(report scheduler.Report) {
	s.reportsSeen++
	if s.reportsSeen < s.config.Display.HistorySize {
		return
	}
	s.reportsSeen = 0
	st := s.litStats()
	slog.Debug("Lit statistics", "mode", report.Mode, "budget", report.Budget, "base", report.Base,
		"min", st.min, "mean", st.mean, "max", st.max, "stddev", st.stdDev)
}

// grayscaleDriver drives a daisy chain of 12 bit grayscale PWM chips over
// SPI. A commit shifts the packed frame out in the background, then
// pulses the latch so the chips show it. Busy is set for the duration.
type grayscaleDriver struct {
	mu       sync.Mutex
	staged   []uint16
	packed   []byte
	usable   int
	transfer func(data []byte) error
	busy     atomic.Bool
	wg       sync.WaitGroup
}

func newGrayscaleDriver(channels, usable int, transfer func(data []byte) error) *grayscaleDriver {
	return &grayscaleDriver{
		staged:   make([]uint16, channels),
		packed:   make([]byte, packedSize(channels)),
		usable:   usable,
		transfer: transfer,
	}
}

// Init clears all channels and transfers the dark frame synchronously.
func (d *grayscaleDriver) Init() error {
	d.SetAll(0)
	return d.transfer(d.pack())
}

func (d *grayscaleDriver) SetChannel(ch int, value uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch < 0 || ch >= len(d.staged) {
		return
	}
	d.staged[ch] = min(value, driver.MaxValue)
}

func (d *grayscaleDriver) SetAll(value uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.staged {
		d.staged[i] = min(value, driver.MaxValue)
	}
}

func (d *grayscaleDriver) pack() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	packGrayscale(d.staged, d.packed)
	data := make([]byte, len(d.packed))
	copy(data, d.packed)
	return data
}

func (d *grayscaleDriver) RequestCommit() {
	data := d.pack()
	d.busy.Store(true)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.transfer(data); err != nil {
			slog.Error("Grayscale transfer failed", "error", err)
		}
		d.busy.Store(false)
	}()
}

func (d *grayscaleDriver) Busy() bool {
	return d.busy.Load()
}

func (d *grayscaleDriver) UsableChannels() int {
	return d.usable
}

func (d *grayscaleDriver) wait() {
	d.wg.Wait()
}

// packedSize is the number of bytes for channels 12 bit values, rounded up
// to an even channel count.
func packedSize(channels int) int {
	return (channels + channels%2) * 3 / 2
}

// packGrayscale writes values into buf as 12 bit big endian words, last
// channel first, the order in which the chain shifts them in. An odd
// channel count gets a leading zero word.
func packGrayscale(values []uint16, buf []byte) {
	n := len(values)
	at := func(ch int) uint16 {
		if ch >= n {
			return 0
		}
		return values[ch]
	}
	off := 0
	for ch := n + n%2 - 1; ch > 0; ch -= 2 {
		hi, lo := at(ch), at(ch-1)
		buf[off] = byte(hi >> 4)
		buf[off+1] = byte(hi&0x0f)<<4 | byte(lo>>8)
		buf[off+2] = byte(lo)
		off += 3
	}
}
