package platform

import (
	"lautenbacher.net/goglove/contact"
	"lautenbacher.net/goglove/driver"
	"lautenbacher.net/goglove/scheduler"
	"lautenbacher.net/goglove/util"
)

// Platform defines the interface for abstracting away the real hardware
// from the TUI simulation.
type Platform interface {
	// Start initializes the platform (e.g., opens GPIO/SPI, or starts the TUI).
	Start() error

	// Stop cleans up all platform resources.
	Stop()

	// Ready is closed once the platform can be used.
	Ready() <-chan bool

	// Contacts returns the raw contact lines of the glove.
	Contacts() contact.Reader

	// Driver returns the grayscale light driver.
	Driver() driver.Driver

	// Observe consumes the frame reports of the control loop.
	Observe(reports *util.AtomicEvent[scheduler.Report])
}
