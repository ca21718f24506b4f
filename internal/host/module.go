// Package host is the explicit handle an embedding application holds: it
// owns the channel, the single worker goroutine and the producer side.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/mattjoyce/convhost/internal/dispatch"
	"github.com/mattjoyce/convhost/internal/events"
	"github.com/mattjoyce/convhost/internal/message"
	"github.com/mattjoyce/convhost/internal/notify"
	"github.com/mattjoyce/convhost/internal/protocol"
	"github.com/mattjoyce/convhost/internal/queue"
)

type Options struct {
	Capacity int
	Commands dispatch.CommandLookup
	Journal  dispatch.Journal
	Hub      *events.Hub
	Decoder  protocol.Decoder
	Logger   *slog.Logger
}

// Module is created once at startup and passed to every producer.
type Module struct {
	ch        *queue.Channel
	submitter *dispatch.Submitter
	worker    *dispatch.Worker
	hub       *events.Hub
	tracker   *message.Tracker
	logger    *slog.Logger

	// producerMu keeps the channel single-producer when several goroutines
	// (HTTP handlers) submit. It is held only across TrySend.
	producerMu sync.Mutex

	startOnce sync.Once
	started   atomic.Bool
	done      chan struct{}
	discarded atomic.Uint64
}

func New(opts Options) (*Module, error) {
	if opts.Commands == nil {
		return nil, fmt.Errorf("host: no command lookup configured")
	}
	if opts.Capacity <= 0 {
		opts.Capacity = queue.DefaultCapacity
	}
	if opts.Hub == nil {
		opts.Hub = events.NewHub(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	sink := notify.Multi(notify.NewHubSink(opts.Hub), notify.NewLogSink(opts.Logger.With("component", "notify")))
	ch := queue.New(opts.Capacity)

	workerOpts := []dispatch.WorkerOption{dispatch.WithLogger(opts.Logger.With("component", "worker"))}
	if opts.Journal != nil {
		workerOpts = append(workerOpts, dispatch.WithJournal(opts.Journal))
	}
	if opts.Decoder != nil {
		workerOpts = append(workerOpts, dispatch.WithDecoder(opts.Decoder))
	}

	return &Module{
		ch:        ch,
		submitter: dispatch.NewSubmitter(ch, sink, opts.Logger.With("component", "submit")),
		worker:    dispatch.NewWorker(ch, opts.Commands, sink, workerOpts...),
		hub:       opts.Hub,
		tracker:   message.NewTracker(),
		logger:    opts.Logger.With("component", "host"),
		done:      make(chan struct{}),
	}, nil
}

// StartWorker spawns the consumer goroutine. Later calls do nothing.
func (m *Module) StartWorker() {
	m.startOnce.Do(func() {
		m.started.Store(true)
		m.hub.Publish(events.TypeWorkerStarted, map[string]int{"capacity": m.ch.Cap()})
		go func() {
			defer close(m.done)
			m.worker.Run(context.Background())
			m.hub.Publish(events.TypeWorkerStopped, map[string]uint64{"dispatched": m.worker.Dispatched()})
		}()
	})
}

// Submit wraps payload in a new message and hands it to the worker. It
// returns the message id and whether the message was accepted.
func (m *Module) Submit(payload any) (string, bool) {
	msg := m.tracker.New(payload)
	id := msg.ID()
	return id, m.SubmitMessage(msg)
}

// SubmitMessage hands an existing message over. Ownership of msg passes to
// the module whatever the outcome.
func (m *Module) SubmitMessage(msg *message.Message) bool {
	id := msg.ID()

	m.producerMu.Lock()
	if m.ch.Closed() {
		m.producerMu.Unlock()
		msg.Release()
		m.discarded.Add(1)
		m.logger.Warn("message rejected after shutdown", "message_id", id)
		return false
	}
	accepted := m.submitter.Submit(msg)
	m.producerMu.Unlock()

	if !accepted {
		m.hub.Publish(events.TypeDropped, map[string]any{"message_id": id, "capacity": m.ch.Cap()})
	}
	return accepted
}

// Hub exposes the notification event stream.
func (m *Module) Hub() *events.Hub { return m.hub }

// Shutdown closes the channel, releases undelivered messages and waits for
// the worker to finish its current message. A handler that outlives ctx is
// left running and ctx.Err() is returned.
func (m *Module) Shutdown(ctx context.Context) error {
	m.producerMu.Lock()
	if m.ch.Closed() {
		m.producerMu.Unlock()
		return m.wait(ctx)
	}
	pending := m.ch.Close()
	m.producerMu.Unlock()

	for _, msg := range pending {
		msg.Release()
	}
	m.discarded.Add(uint64(len(pending)))
	if len(pending) > 0 {
		m.logger.Info("released undelivered messages", "count", len(pending))
	}

	return m.wait(ctx)
}

func (m *Module) wait(ctx context.Context) error {
	if !m.started.Load() {
		return nil
	}
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for worker: %w", ctx.Err())
	}
}

// Stats is a point-in-time view of the module.
type Stats struct {
	Depth        int          `json:"depth"`
	Capacity     int          `json:"capacity"`
	Accepted     uint64       `json:"accepted"`
	Dropped      uint64       `json:"dropped"`
	Discarded    uint64       `json:"discarded"`
	Dispatched   uint64       `json:"dispatched"`
	Created      uint64       `json:"created"`
	Released     uint64       `json:"released"`
	LiveMessages int64        `json:"live_messages"`
	Worker       string       `json:"worker"`
	Events       events.Stats `json:"events"`
}

func (m *Module) Stats() Stats {
	sub := m.submitter.Stats()
	return Stats{
		Depth:        m.ch.Len(),
		Capacity:     m.ch.Cap(),
		Accepted:     sub.Accepted,
		Dropped:      sub.Dropped,
		Discarded:    m.discarded.Load(),
		Dispatched:   m.worker.Dispatched(),
		Created:      m.tracker.Created(),
		Released:     m.tracker.ReleasedCount(),
		LiveMessages: m.tracker.Live(),
		Worker:       m.worker.State().String(),
		Events:       m.hub.Stats(),
	}
}
