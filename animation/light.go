package animation

import "fmt"

// Phase is the animation phase of one light.
type Phase uint8

const (
	Inactive Phase = iota
	// Rising lights carry their current intensity in Light.Value.
	Rising
	// CeilingPending lights crossed the ceiling and flash next.
	CeilingPending
	// Flashed lights showed the flash and switch off next.
	Flashed
)

func (p Phase) String() string {
	switch p {
	case Inactive:
		return "inactive"
	case Rising:
		return "rising"
	case CeilingPending:
		return "ceiling-pending"
	case Flashed:
		return "flashed"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Light is the bubble pop state of one channel.
type Light struct {
	Phase Phase
	Value int
}

// Active is true for every phase but Inactive.
func (l Light) Active() bool {
	return l.Phase != Inactive
}

// Output is the value the light shows in its current phase.
func (l Light) Output(flash uint16) uint16 {
	switch l.Phase {
	case Rising:
		return uint16(l.Value)
	case Flashed:
		return flash
	default:
		return 0
	}
}
