package queue

import (
	"sync"

	"github.com/mattjoyce/convhost/internal/message"
)

// DefaultCapacity is the number of slots in a channel created with capacity <= 0.
const DefaultCapacity = 16

// Channel is a fixed-capacity single-producer/single-consumer message queue.
//
// Valid slots are the circular range [head, head+size) mod len(slots). head,
// tail and size are only touched while mu is held.
type Channel struct {
	mu       sync.Mutex
	notEmpty *sync.Cond

	slots  []*message.Message
	head   int
	tail   int
	size   int
	closed bool
}

// New creates a channel with the given capacity.
func New(capacity int) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Channel{slots: make([]*message.Message, capacity)}
	c.notEmpty = sync.NewCond(&c.mu)
	return c
}

// TrySend places m at the tail without blocking. It returns false when the
// channel is full or closed; in that case m still belongs to the caller.
func (c *Channel) TrySend(m *message.Message) bool {
	c.mu.Lock()

	// Never block the producer waiting for room.
	if c.closed || c.fullLocked() {
		c.mu.Unlock()
		return false
	}

	c.slots[c.tail] = m
	c.tail = (c.tail + 1) % len(c.slots)
	c.size++

	c.notEmpty.Signal()
	c.mu.Unlock()
	return true
}

// Receive blocks until a message is available and returns it, transferring
// ownership to the caller. It returns false only once the channel is closed.
//
// There is no timeout; Close is the only way to wake a parked receiver
// without a message.
func (c *Channel) Receive() (*message.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.size == 0 && !c.closed {
		c.notEmpty.Wait()
	}
	if c.closed {
		return nil, false
	}

	m := c.slots[c.head]
	c.slots[c.head] = nil
	c.head = (c.head + 1) % len(c.slots)
	c.size--
	return m, true
}

// Close wakes the receiver and rejects further sends. Messages still queued
// are returned oldest first and become the caller's to release. Closing an
// already closed channel returns nil.
func (c *Channel) Close() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var pending []*message.Message
	for c.size > 0 {
		pending = append(pending, c.slots[c.head])
		c.slots[c.head] = nil
		c.head = (c.head + 1) % len(c.slots)
		c.size--
	}

	c.notEmpty.Broadcast()
	return pending
}

// Len returns the number of queued messages.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Cap returns the fixed capacity.
func (c *Channel) Cap() int {
	return len(c.slots)
}

// Closed reports whether Close has been called.
func (c *Channel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) fullLocked() bool { return c.size == len(c.slots) }
