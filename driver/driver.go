package driver

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MaxValue is the largest 12 bit grayscale value a channel accepts.
const MaxValue = 4095

// ErrBusyTimeout is returned when the driver stays busy longer than the
// allowed commit timeout.
var ErrBusyTimeout = errors.New("driver still busy transferring the previous frame")

// ChannelWriter stages one light value.
type ChannelWriter interface {
	SetChannel(ch int, value uint16)
}

// Driver is the grayscale LED driver the control loop talks to. Values
// are staged with SetChannel/SetAll and become visible after
// RequestCommit. While Busy reports true the previous frame is still
// being transferred and no value may be staged.
type Driver interface {
	ChannelWriter
	Init() error
	SetAll(value uint16)
	RequestCommit()
	Busy() bool
	UsableChannels() int
}

// AwaitIdle polls d until it is no longer busy. It gives up after timeout
// with ErrBusyTimeout, or earlier when ctx is done.
func AwaitIdle(ctx context.Context, d Driver, timeout, poll time.Duration) error {
	if !d.Busy() {
		return nil
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if !d.Busy() {
				return nil
			}
			return fmt.Errorf("waited %s: %w", timeout, ErrBusyTimeout)
		case <-ticker.C:
			if !d.Busy() {
				return nil
			}
		}
	}
}
