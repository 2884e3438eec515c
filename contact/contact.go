package contact

import (
	"fmt"
	"strings"
)

// Contact identifies one of the six touch contacts of the glove.
type Contact int

const (
	Thumb Contact = iota
	Pointer
	Middle
	Ring
	Pinky
	Palm
)

// Total is the number of physical contacts.
const Total = 6

var names = [Total]string{"thumb", "pointer", "middle", "ring", "pinky", "palm"}

func (c Contact) String() string {
	if c < 0 || int(c) >= Total {
		return fmt.Sprintf("contact(%d)", int(c))
	}
	return names[c]
}

// Parse maps a case-insensitive contact name to its Contact.
func Parse(name string) (Contact, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	for i, n := range names {
		if n == lower {
			return Contact(i), nil
		}
	}
	return 0, fmt.Errorf("unknown contact %q", name)
}

// All returns the contacts in index order.
func All() [Total]Contact {
	return [Total]Contact{Thumb, Pointer, Middle, Ring, Pinky, Palm}
}

// Reader reports the raw, undebounced state of a contact line. Closed
// means the contact is grounded.
type Reader interface {
	Closed(c Contact) bool
}
