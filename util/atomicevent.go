package util

import (
	"sync"
)

// AtomicEvent holds the latest published value and a pending flag.
// Publishing never blocks, only the most recent value is retained and
// any number of publications collapse into one notification.
type AtomicEvent[T any] struct {
	mu     sync.Mutex    // Protects access to 'value'
	value  T             // The latest value
	notify chan struct{} // Buffered channel of size 1 for notification
}

// NewAtomicEvent creates a new AtomicEvent instance.
func NewAtomicEvent[T any]() *AtomicEvent[T] {
	return &AtomicEvent[T]{
		notify: make(chan struct{}, 1),
	}
}

// Send replaces the latest value. It is non-blocking.
func (ae *AtomicEvent[T]) Send(event T) {
	ae.mu.Lock()
	defer ae.mu.Unlock()

	ae.value = event

	select {
	case ae.notify <- struct{}{}:
	default:
		// a notification is already pending
	}
}

// Channel returns the notification channel for use in select statements.
func (ae *AtomicEvent[T]) Channel() <-chan struct{} {
	return ae.notify
}

// Value returns the latest value without consuming the notification.
func (ae *AtomicEvent[T]) Value() T {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.value
}

// HasPending checks if a notification is waiting to be consumed.
func (ae *AtomicEvent[T]) HasPending() bool {
	return len(ae.notify) > 0
}
