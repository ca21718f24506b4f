// Package message defines the opaque, reference-counted unit of work that
// crosses from the producer goroutine to the worker.
//
// A Message is created holding one reference. Whoever holds the message owns
// that reference and must either hand it on (TrySend into a channel) or
// Release it. Releasing a message that has no references left panics; this
// mirrors sync.WaitGroup's negative counter panic and surfaces a double
// release at the call site.
package message

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Message is an opaque handle to host-owned data. The payload is never
// inspected by the queue.
type Message struct {
	id         string
	payload    any
	receivedAt time.Time

	refs    atomic.Int32
	tracker *Tracker
}

// New returns a message holding one reference, not tied to any tracker.
func New(payload any) *Message {
	return newMessage(payload, nil)
}

func newMessage(payload any, tracker *Tracker) *Message {
	m := &Message{
		id:         uuid.NewString(),
		payload:    payload,
		receivedAt: time.Now().UTC(),
		tracker:    tracker,
	}
	m.refs.Store(1)
	return m
}

// ID returns the message identifier assigned at creation.
func (m *Message) ID() string { return m.id }

// Payload returns the opaque payload.
func (m *Message) Payload() any { return m.payload }

// ReceivedAt is the time the host event was turned into a message.
func (m *Message) ReceivedAt() time.Time { return m.receivedAt }

// Release drops one reference. It returns true when the last reference was
// dropped and the payload has been let go.
func (m *Message) Release() bool {
	n := m.refs.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("message: release of released message %s", m.id))
	}
	if n > 0 {
		return false
	}
	m.payload = nil
	if m.tracker != nil {
		m.tracker.released.Add(1)
	}
	return true
}
