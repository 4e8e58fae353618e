package util

import (
	"sync"
)

// Event is a one-shot flag. Once notified it stays notified; it is used as
// the cancellation token of a single pipeline run.
type Event struct {
	once sync.Once
	done chan struct{}
}

func NewEvent() *Event {
	return &Event{
		done: make(chan struct{}),
	}
}

// Notify sets the event. Calling it more than once is harmless.
func (e *Event) Notify() {
	e.once.Do(func() {
		close(e.done)
	})
}

// Done returns a channel closed on notification, for use in select.
func (e *Event) Done() <-chan struct{} {
	return e.done
}

func (e *Event) HasBeenNotified() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
