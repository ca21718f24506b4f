package dispatch

import (
	"log/slog"
	"sync/atomic"

	"github.com/mattjoyce/convhost/internal/message"
	"github.com/mattjoyce/convhost/internal/notify"
	"github.com/mattjoyce/convhost/internal/protocol"
)

// DroppedText is the error notification sent when the channel is full.
const DroppedText = "dropped message because the queue was full."

// Submitter wraps TrySend with the drop policy.
type Submitter struct {
	out    Sender
	sink   notify.Sink
	logger *slog.Logger

	accepted atomic.Uint64
	dropped  atomic.Uint64
}

// NewSubmitter returns a Submitter that sends to out and reports drops to sink.
func NewSubmitter(out Sender, sink notify.Sink, logger *slog.Logger) *Submitter {
	if sink == nil {
		sink = notify.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{out: out, sink: sink, logger: logger}
}

// Submit hands m to the channel. On success ownership of m moves to the
// consumer. On failure m is released here, the drop is reported, and Submit
// returns false. Submit never blocks on the consumer.
func (s *Submitter) Submit(m *message.Message) bool {
	if s.out.TrySend(m) {
		s.accepted.Add(1)
		return true
	}

	id := m.ID()
	m.Release()
	s.dropped.Add(1)
	s.logger.Warn("message dropped", "message_id", id, "reason", "queue full")
	s.sink.Notify(protocol.CategoryError, DroppedText)
	return false
}

// SubmitStats counts Submit outcomes.
type SubmitStats struct {
	Accepted uint64 `json:"accepted"`
	Dropped  uint64 `json:"dropped"`
}

func (s *Submitter) Stats() SubmitStats {
	return SubmitStats{Accepted: s.accepted.Load(), Dropped: s.dropped.Load()}
}
