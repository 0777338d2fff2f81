// Package channel is the in-process audit transport: a bounded Go channel
// between the change-capture listener and the sink worker.
package channel

import (
	"context"
	"errors"
	"sync"

	audit "ezclaim/pkg/platform/audit"
	"ezclaim/pkg/platform/sentinel"
)

// ErrFull is returned when the buffer has no room; the event is not retained.
var ErrFull = errors.New("audit channel full")

// DefaultSize is the buffer used when New is given a non-positive size.
const DefaultSize = 1024

// Channel is a bounded, non-blocking audit.Publisher. Events from one
// goroutine are delivered in the order they were published.
type Channel struct {
	mu     sync.RWMutex
	events chan audit.Event
	closed bool
}

// New creates a channel holding up to size pending events.
func New(size int) *Channel {
	if size <= 0 {
		size = DefaultSize
	}
	return &Channel{events: make(chan audit.Event, size)}
}

// Publish enqueues event without waiting. It fails with ErrFull when the
// buffer is exhausted and sentinel.ErrClosed after Close.
func (c *Channel) Publish(_ context.Context, event audit.Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return sentinel.ErrClosed
	}
	select {
	case c.events <- event:
		return nil
	default:
		return ErrFull
	}
}

// Events is the receive side consumed by the sink worker.
func (c *Channel) Events() <-chan audit.Event {
	return c.events
}

// Len reports the number of pending events.
func (c *Channel) Len() int {
	return len(c.events)
}

// Close stops accepting events. Pending events stay readable until drained.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}
