package dispatch

import (
	"context"

	"github.com/mattjoyce/convhost/internal/message"
	"github.com/mattjoyce/convhost/internal/notify"
	"github.com/mattjoyce/convhost/internal/state"
)

//go:generate mockgen -destination=mocks/mock_dispatch.go -package=mocks github.com/mattjoyce/convhost/internal/dispatch Handler,CommandLookup,Journal

// Sender is the producer half of the channel.
type Sender interface {
	TrySend(m *message.Message) bool
}

// Receiver is the consumer half of the channel. ok is false once the channel
// has been closed.
type Receiver interface {
	Receive() (m *message.Message, ok bool)
}

// Handler runs one recognized command. argv[0] is the command name. Invoke
// is synchronous and has no cancellation; the returned exit status is
// journaled but not interpreted.
type Handler interface {
	Invoke(argv []string, report notify.Sink) int
}

// CommandLookup resolves a command name to its handler.
type CommandLookup interface {
	Lookup(name string) (Handler, bool)
}

// Journal records the outcome of each dispatch iteration.
type Journal interface {
	Record(ctx context.Context, e state.Entry) error
}
