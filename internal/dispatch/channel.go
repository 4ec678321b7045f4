// Package dispatch carries UI events from background translation requests to
// the presentation loop.
//
// The queue is unbounded: producers never block, so a slow or paused consumer
// can never stall a request. Event volume is one small message per streamed
// fragment, which keeps the backlog modest even when nothing drains it.
package dispatch

import (
	"context"
	"sync"

	"aitranslate/internal/domain"
)

// Envelope tags an event with the request it belongs to.
type Envelope struct {
	Handle domain.Handle  `json:"handle"`
	Event  domain.UiEvent `json:"event"`
}

// Channel is an ordered multi-producer, single-consumer queue.
type Channel struct {
	mu     sync.Mutex
	queue  []Envelope
	closed bool
	ready  chan struct{}
	done   chan struct{}
}

func New() *Channel {
	return &Channel{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Dispatch enqueues event. It returns false once the channel is closed.
func (c *Channel) Dispatch(handle domain.Handle, event domain.UiEvent) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, Envelope{Handle: handle, Event: event})
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return true
}

// TryDrain returns everything queued so far without blocking.
func (c *Channel) TryDrain() []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	drained := c.queue
	c.queue = nil
	return drained
}

// Ready is signalled after new events are queued. A signal may cover several events.
func (c *Channel) Ready() <-chan struct{} {
	return c.ready
}

// Done is closed when the channel is closed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Close stops accepting events. Already queued events can still be drained.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

// Pump delivers events to deliver until ctx ends or the channel is closed and empty.
func Pump(ctx context.Context, c *Channel, deliver func(Envelope)) {
	for {
		for _, envelope := range c.TryDrain() {
			deliver(envelope)
		}

		select {
		case <-ctx.Done():
			return
		case <-c.Ready():
		case <-c.Done():
			for _, envelope := range c.TryDrain() {
				deliver(envelope)
			}
			return
		}
	}
}
