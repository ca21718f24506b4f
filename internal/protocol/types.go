package protocol

import "strings"

const (
	// CategoryProgress is the category carried by progress notifications.
	CategoryProgress = "progress"
	// CategoryStatus marks lifecycle notifications ("start", "done").
	CategoryStatus = "status"
	// CategoryError marks recoverable failures reported to the host.
	CategoryError = "error"
	// CategoryDebug marks diagnostic notifications.
	CategoryDebug = "debug"
	// CategoryStdout carries output lines of the conversion routine.
	CategoryStdout = "stdout"
)

// CommandMessage is the structured shape a message payload must have:
//
//	{"cmd": "k2pdfopt", "args": ["in.pdf", "-o", "out.pdf"]}
type CommandMessage struct {
	Cmd  string   `json:"cmd"`
	Args []string `json:"args"`
}

// Invocation is a decoded command: a name plus its ordered arguments.
type Invocation struct {
	Command string
	Args    []string
}

// Argv returns the command-line style vector [Command, Args...]. Index 0 is
// reserved for the command name, like a program name in os.Args.
func (inv Invocation) Argv() []string {
	argv := make([]string, 0, len(inv.Args)+1)
	argv = append(argv, inv.Command)
	return append(argv, inv.Args...)
}

func (inv Invocation) String() string {
	return strings.Join(inv.Argv(), " ")
}

// Notification is the envelope posted back to the host for a text notice.
type Notification struct {
	Category string `json:"category"`
	Msg      string `json:"msg"`
}

// Progress is the envelope posted back to the host for page progress.
type Progress struct {
	Category string `json:"category"` // always "progress"
	Current  int    `json:"current"`
	Total    int    `json:"total"`
}

// NewProgress builds a progress envelope.
func NewProgress(current, total int) Progress {
	return Progress{Category: CategoryProgress, Current: current, Total: total}
}
