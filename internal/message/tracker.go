package message

import "sync/atomic"

// Tracker creates messages and counts how many are still alive. A host
// module owns one tracker; a non-zero Live count after shutdown is a leak.
type Tracker struct {
	created  atomic.Uint64
	released atomic.Uint64
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// New creates a tracked message holding one reference.
func (t *Tracker) New(payload any) *Message {
	t.created.Add(1)
	return newMessage(payload, t)
}

// Created is the number of messages created by t.
func (t *Tracker) Created() uint64 { return t.created.Load() }

// ReleasedCount is the number of tracked messages whose last reference was dropped.
func (t *Tracker) ReleasedCount() uint64 { return t.released.Load() }

// Live is the number of tracked messages not yet released.
func (t *Tracker) Live() int64 {
	return int64(t.created.Load()) - int64(t.released.Load())
}
