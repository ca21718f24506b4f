// Package events is an in-memory pub/sub used to carry notifications from
// the worker to host-facing surfaces (SSE, the watch TUI).
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultCapacity   = 256
	defaultSubBuffer  = 128
	TypeDropped       = "message.dropped"
	TypeProgress      = "progress"
	TypeNotifyPrefix  = "notify."
	TypeWorkerStarted = "worker.started"
	TypeWorkerStopped = "worker.stopped"
)

type Event struct {
	ID   int64     `json:"id"`
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data []byte    `json:"data"` // JSON payload
}

// Stats is a snapshot of hub counters.
type Stats struct {
	Published   uint64 `json:"published"`
	Undelivered uint64 `json:"undelivered"`
	Subscribers int    `json:"subscribers"`
}

// Hub keeps a ring of recent events for late clients and fans new events out
// to subscribers. Publish never blocks: a subscriber whose buffer is full
// misses the event.
type Hub struct {
	nextID      atomic.Int64
	undelivered atomic.Uint64

	mu    sync.Mutex
	ring  []Event
	start int
	size  int

	subs      map[int]chan Event
	nextSubID int
}

// NewHub returns a hub keeping the last capacity events (<= 0 picks a default).
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Hub{
		ring: make([]Event, capacity),
		subs: make(map[int]chan Event),
	}
}

// Publish records an event with data encoded as JSON and returns it.
func (h *Hub) Publish(eventType string, data any) Event {
	payload := []byte("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	ev := Event{
		Type: eventType,
		At:   time.Now().UTC(),
		Data: payload,
	}

	// IDs are assigned under mu so ring and subscriber order match ID order.
	h.mu.Lock()
	ev.ID = h.nextID.Add(1)
	h.pushLocked(ev)
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.undelivered.Add(1)
		}
	}
	h.mu.Unlock()
	return ev
}

// Subscribe registers a subscriber with the given buffer size (<= 0 picks a
// default). The returned cancel func closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextSubID
	h.nextSubID++
	ch := make(chan Event, buffer)
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
			h.mu.Unlock()
		})
	}

	return ch, cancel
}

// SnapshotSince returns buffered events with ID > lastID, oldest-first.
// If lastID is 0, the full ring buffer snapshot is returned.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Event, 0, h.size)
	for i := 0; i < h.size; i++ {
		ev := h.ring[(h.start+i)%len(h.ring)]
		if lastID == 0 || ev.ID > lastID {
			out = append(out, ev)
		}
	}
	return out
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	subs := len(h.subs)
	h.mu.Unlock()

	return Stats{
		Published:   uint64(h.nextID.Load()),
		Undelivered: h.undelivered.Load(),
		Subscribers: subs,
	}
}

func (h *Hub) pushLocked(ev Event) {
	capacity := len(h.ring)

	if h.size < capacity {
		h.ring[(h.start+h.size)%capacity] = ev
		h.size++
		return
	}

	// Overwrite oldest.
	h.ring[h.start] = ev
	h.start = (h.start + 1) % capacity
}
