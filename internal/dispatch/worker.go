package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mattjoyce/convhost/internal/message"
	"github.com/mattjoyce/convhost/internal/notify"
	"github.com/mattjoyce/convhost/internal/protocol"
	"github.com/mattjoyce/convhost/internal/state"
)

const (
	// ParseErrorText is reported when a message does not decode.
	ParseErrorText = "Unable to parse message."

	statusStart = "start"
	statusDone  = "done"
)

// WorkerState is the position of the worker loop.
type WorkerState int32

const (
	StateIdle WorkerState = iota
	StateWaiting
	StateDispatching
	StateStopped
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWaiting:
		return "waiting"
	case StateDispatching:
		return "dispatching"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

// Worker is the single consumer of the channel.
type Worker struct {
	in       Receiver
	commands CommandLookup
	sink     notify.Sink
	decoder  protocol.Decoder
	journal  Journal
	logger   *slog.Logger
	now      func() time.Time

	state      atomic.Int32
	dispatched atomic.Uint64
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithDecoder replaces protocol.Default.
func WithDecoder(d protocol.Decoder) WorkerOption {
	return func(w *Worker) { w.decoder = d }
}

// WithJournal records every iteration's outcome.
func WithJournal(j Journal) WorkerOption {
	return func(w *Worker) { w.journal = j }
}

// WithLogger sets the worker's logger.
func WithLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

// NewWorker returns a worker that receives from in and looks commands up in
// commands. A nil sink discards notifications.
func NewWorker(in Receiver, commands CommandLookup, sink notify.Sink, opts ...WorkerOption) *Worker {
	w := &Worker{
		in:       in,
		commands: commands,
		sink:     sink,
		decoder:  protocol.Default,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.sink == nil {
		w.sink = notify.Discard
	}
	return w
}

// Run receives and dispatches messages until the channel is closed. ctx is
// only used for journal writes; a running handler is never interrupted.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	defer func() {
		w.state.Store(int32(StateStopped))
		w.logger.Info("worker stopped", "dispatched", w.dispatched.Load())
	}()

	for {
		w.state.Store(int32(StateWaiting))
		// Receive is the cancellation point: it reports !ok after Close.
		m, ok := w.in.Receive()
		if !ok {
			return
		}
		w.state.Store(int32(StateDispatching))
		w.handle(ctx, m)
		w.dispatched.Add(1)
	}
}

// State reports the loop position.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Dispatched counts completed iterations.
func (w *Worker) Dispatched() uint64 {
	return w.dispatched.Load()
}

func (w *Worker) handle(ctx context.Context, m *message.Message) {
	defer m.Release()

	entry := state.Entry{
		MessageID:     m.ID(),
		PayloadDigest: state.PayloadDigest(m.Payload()),
		ReceivedAt:    m.ReceivedAt(),
		StartedAt:     w.now(),
	}
	logger := w.logger.With("message_id", m.ID())
	logger.Debug("received message")

	inv, err := w.decoder.Decode(m)
	if err != nil {
		logger.Debug("decode failed", "error", err)
		w.sink.Notify(protocol.CategoryError, ParseErrorText)
		entry.Outcome = state.OutcomeDecodeError
		entry.Error = err.Error()
		w.record(ctx, logger, entry)
		return
	}

	entry.Command = inv.Command
	handler, ok := w.commands.Lookup(inv.Command)
	if !ok {
		logger.Debug("unknown command", "command", inv.Command)
		w.sink.Notify(protocol.CategoryError, `Unknown command "`+inv.Command+`".`)
		entry.Outcome = state.OutcomeUnknownCommand
		w.record(ctx, logger, entry)
		return
	}

	argv := inv.Argv()
	entry.Argv = argv
	logger = logger.With("command", inv.Command)

	w.sink.Notify(protocol.CategoryStatus, statusStart)
	code, err := w.invoke(handler, argv)
	if err != nil {
		logger.Error("command panicked", "error", err)
		w.sink.Notify(protocol.CategoryError, fmt.Sprintf("Command %q failed: %v", inv.Command, err))
		entry.Outcome = state.OutcomeFailed
		entry.Error = err.Error()
		w.record(ctx, logger, entry)
		return
	}
	w.sink.Notify(protocol.CategoryStatus, statusDone)

	logger.Info("command finished", "exit_status", code)
	entry.Outcome = state.OutcomeCompleted
	entry.ExitStatus = &code
	w.record(ctx, logger, entry)
}

func (w *Worker) invoke(h Handler, argv []string) (code int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Invoke(argv, w.sink), nil
}

func (w *Worker) record(ctx context.Context, logger *slog.Logger, e state.Entry) {
	if w.journal == nil {
		return
	}
	e.FinishedAt = w.now()
	if err := w.journal.Record(ctx, e); err != nil {
		logger.Error("failed to journal dispatch", "outcome", e.Outcome, "error", err)
	}
}
