package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"lautenbacher.net/goglove/contact"
)

const CONFILE = "config.yml"

// 12 bit grayscale
const maxIntensity = 4095

type Config struct {
	RealHW     bool            `yaml:"-"`
	Configfile string          `yaml:"-"`
	Animation  AnimationConfig `yaml:"Animation"`
	Gesture    GestureConfig   `yaml:"Gesture"`
	Blink      BlinkConfig     `yaml:"Blink"`
	Driver     DriverConfig    `yaml:"Driver"`
	Hardware   HardwareConfig  `yaml:"Hardware"`
	Display    DisplayConfig   `yaml:"Display"`
	Logging    LoggingConfig   `yaml:"Logging"`
}

type AnimationConfig struct {
	MinRate        int           `yaml:"MinRate"`
	MaxRate        int           `yaml:"MaxRate"`
	MaxLit         int           `yaml:"MaxLit"`
	MaxLitLimit    int           `yaml:"MaxLitLimit"`
	MaxLitDemo     int           `yaml:"MaxLitDemo"`
	BaseIntensity  uint16        `yaml:"BaseIntensity"`
	Ceiling        int           `yaml:"Ceiling"`
	FlashIntensity uint16        `yaml:"FlashIntensity"`
	HoldCeiling    uint16        `yaml:"HoldCeiling"`
	DebounceDelay  time.Duration `yaml:"DebounceDelay"`
}

type GestureConfig struct {
	Contacts   []string      `yaml:"Contacts"`
	Threshold  uint16        `yaml:"Threshold"`
	TickPeriod time.Duration `yaml:"TickPeriod"`
}

type BlinkConfig struct {
	Phases         int           `yaml:"Phases"`
	PhaseHold      time.Duration `yaml:"PhaseHold"`
	ForceIntensity uint16        `yaml:"ForceIntensity"`
	DiagIntensity  uint16        `yaml:"DiagIntensity"`
	DiagHold       time.Duration `yaml:"DiagHold"`
}

type DriverConfig struct {
	ChannelsTotal  int           `yaml:"ChannelsTotal"`
	UsableChannels int           `yaml:"UsableChannels"`
	CommitTimeout  time.Duration `yaml:"CommitTimeout"`
	PollInterval   time.Duration `yaml:"PollInterval"`
	// TransferTime is only used by the simulated driver.
	TransferTime time.Duration `yaml:"TransferTime"`
}

type HardwareConfig struct {
	ContactPins  map[string]int `yaml:"ContactPins"`
	SPIDevice    string         `yaml:"SPIDevice"`
	SPIFrequency int            `yaml:"SPIFrequency"`
	LatchGPIO    int            `yaml:"LatchGPIO"`
	PowerUpDelay time.Duration  `yaml:"PowerUpDelay"`
}

type DisplayConfig struct {
	LightSegments map[string][]SegmentConfig `yaml:"LightSegments"`
	HistorySize   int                        `yaml:"HistorySize"`
}

type SegmentConfig struct {
	FirstLight int  `yaml:"FirstLight"`
	LastLight  int  `yaml:"LastLight"`
	Reverse    bool `yaml:"Reverse"`
}

type LoggingConfig struct {
	TUI LogConfig `yaml:"TUI"`
	HW  LogConfig `yaml:"HW"`
}

type LogConfig struct {
	Level  string `yaml:"Level"`
	Format string `yaml:"Format"`
	File   string `yaml:"File"`
}

// Default returns the configuration of the glove as built.
func Default() *Config {
	return &Config{
		Animation: AnimationConfig{
			MinRate:        0,
			MaxRate:        100,
			MaxLit:         45,
			MaxLitLimit:    60,
			MaxLitDemo:     45,
			BaseIntensity:  500,
			Ceiling:        4000,
			FlashIntensity: maxIntensity,
			HoldCeiling:    4000,
			DebounceDelay:  time.Millisecond,
		},
		Gesture: GestureConfig{
			Contacts:   []string{"pointer", "ring"},
			Threshold:  100,
			TickPeriod: 16 * time.Millisecond,
		},
		Blink: BlinkConfig{
			Phases:         4,
			PhaseHold:      1400 * time.Millisecond,
			ForceIntensity: maxIntensity,
			DiagIntensity:  4000,
			DiagHold:       time.Second,
		},
		Driver: DriverConfig{
			ChannelsTotal:  100,
			UsableChannels: 96,
			CommitTimeout:  100 * time.Millisecond,
			PollInterval:   100 * time.Microsecond,
			TransferTime:   2 * time.Millisecond,
		},
		Hardware: HardwareConfig{
			ContactPins: map[string]int{
				"thumb":   5,
				"pointer": 6,
				"middle":  13,
				"ring":    19,
				"pinky":   26,
				"palm":    21,
			},
			SPIDevice:    "/dev/spidev0.0",
			SPIFrequency: 1000000,
			LatchGPIO:    25,
			PowerUpDelay: 200 * time.Millisecond,
		},
		Display: DisplayConfig{
			LightSegments: map[string][]SegmentConfig{
				"glove": {{FirstLight: 0, LastLight: 95}},
			},
			HistorySize: 500,
		},
		Logging: LoggingConfig{
			TUI: LogConfig{Level: "INFO", Format: "text"},
			HW:  LogConfig{Level: "INFO", Format: "json"},
		},
	}
}

// ReadConfig decodes cfile on top of the defaults and validates the result.
func ReadConfig(cfile string) (*Config, error) {
	f, err := os.Open(cfile)
	if err != nil {
		return nil, fmt.Errorf("can't open config file %s: %w", cfile, err)
	}
	defer f.Close()

	// yaml.v3 merges into existing maps, so the map defaults are only
	// applied when the file leaves them out.
	conf := Default()
	pins, segments := conf.Hardware.ContactPins, conf.Display.LightSegments
	conf.Hardware.ContactPins, conf.Display.LightSegments = nil, nil

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(conf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("can't decode config file %s: %w", cfile, err)
	}
	if conf.Hardware.ContactPins == nil {
		conf.Hardware.ContactPins = pins
	}
	if conf.Display.LightSegments == nil {
		conf.Display.LightSegments = segments
	}
	conf.Configfile = cfile

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", cfile, err)
	}
	return conf, nil
}

// GestureContacts returns the two contacts that toggle the mode.
// Only valid on a validated config.
func (c *Config) GestureContacts() (contact.Contact, contact.Contact) {
	first, _ := contact.Parse(c.Gesture.Contacts[0])
	second, _ := contact.Parse(c.Gesture.Contacts[1])
	return first, second
}

// Log returns the logging section for the platform in use.
func (c *Config) Log() LogConfig {
	if c.RealHW {
		return c.Logging.HW
	}
	return c.Logging.TUI
}

// Validate returns the first violation found.
func (c *Config) Validate() error {
	a := c.Animation
	// a zero rate would keep admitted lights below the ceiling forever
	if a.MinRate < 0 || a.MaxRate < a.MinRate || a.MaxRate == 0 {
		return fmt.Errorf("Animation.MinRate (%d) and Animation.MaxRate (%d) must satisfy 0 <= MinRate <= MaxRate and MaxRate > 0", a.MinRate, a.MaxRate)
	}
	if a.MaxLitLimit < 0 || a.MaxLit < 0 || a.MaxLit > a.MaxLitLimit {
		return fmt.Errorf("Animation.MaxLit (%d) must be between 0 and Animation.MaxLitLimit (%d)", a.MaxLit, a.MaxLitLimit)
	}
	if a.MaxLitDemo < 0 {
		return fmt.Errorf("Animation.MaxLitDemo (%d) must not be negative", a.MaxLitDemo)
	}
	if a.Ceiling <= 0 || a.Ceiling > maxIntensity {
		return fmt.Errorf("Animation.Ceiling (%d) must be between 1 and %d", a.Ceiling, maxIntensity)
	}
	for key, v := range map[string]uint16{
		"Animation.BaseIntensity":  a.BaseIntensity,
		"Animation.FlashIntensity": a.FlashIntensity,
		"Animation.HoldCeiling":    a.HoldCeiling,
		"Blink.ForceIntensity":     c.Blink.ForceIntensity,
		"Blink.DiagIntensity":      c.Blink.DiagIntensity,
	} {
		if v > maxIntensity {
			return fmt.Errorf("%s (%d) must be between 0 and %d", key, v, maxIntensity)
		}
	}
	if a.DebounceDelay < 0 {
		return fmt.Errorf("Animation.DebounceDelay (%s) must not be negative", a.DebounceDelay)
	}

	g := c.Gesture
	if len(g.Contacts) != 2 {
		return fmt.Errorf("Gesture.Contacts must name exactly two contacts, got %d", len(g.Contacts))
	}
	var gesture [2]contact.Contact
	for i, name := range g.Contacts {
		cont, err := contact.Parse(name)
		if err != nil {
			return fmt.Errorf("Gesture.Contacts: %w", err)
		}
		gesture[i] = cont
	}
	if gesture[0] == gesture[1] {
		return fmt.Errorf("Gesture.Contacts must name two different contacts, got %s twice", gesture[0])
	}
	if g.Threshold == 0 {
		return fmt.Errorf("Gesture.Threshold must be greater than 0")
	}
	if g.TickPeriod <= 0 {
		return fmt.Errorf("Gesture.TickPeriod (%s) must be greater than 0", g.TickPeriod)
	}

	if c.Blink.Phases < 0 || c.Blink.PhaseHold < 0 || c.Blink.DiagHold <= 0 {
		return fmt.Errorf("Blink.Phases, Blink.PhaseHold must not be negative and Blink.DiagHold must be greater than 0")
	}

	d := c.Driver
	if d.ChannelsTotal <= 0 {
		return fmt.Errorf("Driver.ChannelsTotal (%d) must be greater than 0", d.ChannelsTotal)
	}
	if d.UsableChannels <= 0 || d.UsableChannels > d.ChannelsTotal {
		return fmt.Errorf("Driver.UsableChannels (%d) must be between 1 and Driver.ChannelsTotal (%d)", d.UsableChannels, d.ChannelsTotal)
	}
	if d.CommitTimeout <= 0 || d.PollInterval <= 0 {
		return fmt.Errorf("Driver.CommitTimeout (%s) and Driver.PollInterval (%s) must be greater than 0", d.CommitTimeout, d.PollInterval)
	}
	if d.TransferTime < 0 {
		return fmt.Errorf("Driver.TransferTime (%s) must not be negative", d.TransferTime)
	}

	pins := make(map[int]string, len(c.Hardware.ContactPins))
	for name, pin := range c.Hardware.ContactPins {
		if _, err := contact.Parse(name); err != nil {
			return fmt.Errorf("Hardware.ContactPins: %w", err)
		}
		if pin < 0 || pin > 27 {
			return fmt.Errorf("Hardware.ContactPins.%s: GPIO %d must be between 0 and 27", name, pin)
		}
		if other, dup := pins[pin]; dup {
			return fmt.Errorf("Hardware.ContactPins: GPIO %d used by %s and %s", pin, other, name)
		}
		pins[pin] = name
	}
	if c.Hardware.SPIFrequency <= 0 {
		return fmt.Errorf("Hardware.SPIFrequency (%d) must be greater than 0", c.Hardware.SPIFrequency)
	}
	if c.Hardware.LatchGPIO < 0 || c.Hardware.LatchGPIO > 27 {
		return fmt.Errorf("Hardware.LatchGPIO: GPIO %d must be between 0 and 27", c.Hardware.LatchGPIO)
	}
	if other, dup := pins[c.Hardware.LatchGPIO]; dup {
		return fmt.Errorf("Hardware.LatchGPIO %d already used by contact %s", c.Hardware.LatchGPIO, other)
	}

	for name, segs := range c.Display.LightSegments {
		for i, seg := range segs {
			if seg.FirstLight < 0 || seg.LastLight < 0 || seg.FirstLight >= d.UsableChannels || seg.LastLight >= d.UsableChannels {
				return fmt.Errorf("Display.LightSegments.%s[%d]: lights must be between 0 and %d", name, i, d.UsableChannels-1)
			}
		}
	}
	if c.Display.HistorySize <= 0 {
		return fmt.Errorf("Display.HistorySize (%d) must be greater than 0", c.Display.HistorySize)
	}

	for key, lc := range map[string]LogConfig{"Logging.TUI": c.Logging.TUI, "Logging.HW": c.Logging.HW} {
		switch strings.ToUpper(lc.Level) {
		case "", "DEBUG", "INFO", "WARN", "ERROR":
		default:
			return fmt.Errorf("%s.Level %q must be one of DEBUG, INFO, WARN, ERROR", key, lc.Level)
		}
		switch strings.ToLower(lc.Format) {
		case "", "text", "json":
		default:
			return fmt.Errorf("%s.Format %q must be text or json", key, lc.Format)
		}
	}
	return nil
}

// Watch reports changes to cfile on the returned channel until stop is
// closed. The containing directory is watched so that a file replaced on
// save is still seen.
func Watch(cfile string, stop <-chan struct{}) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(cfile)
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve %s: %w", cfile, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfile, err)
	}

	changed := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				slog.Debug("Ending config watcher go-routine...")
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				slog.Info("Config file changed", "file", cfile, "op", ev.Op.String())
				select {
				case changed <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Config watcher error", "error", err)
			}
		}
	}()
	return changed, nil
}
