package protocol

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mattjoyce/convhost/internal/message"
)

// DecodeError reports a message payload that does not have the command shape.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "decode message: " + e.Reason
}

// Decoder turns a message into an invocation.
type Decoder interface {
	Decode(m *message.Message) (Invocation, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(m *message.Message) (Invocation, error)

func (f DecoderFunc) Decode(m *message.Message) (Invocation, error) { return f(m) }

// Default is the decoder for {"cmd": string, "args": [string...]} payloads.
var Default Decoder = DecoderFunc(Decode)

// Decode extracts the command name and arguments from a message payload.
// The payload must be an object with a string "cmd" and an array "args" of
// strings; anything else is a *DecodeError.
func Decode(m *message.Message) (Invocation, error) {
	if m == nil {
		return Invocation{}, &DecodeError{Reason: "nil message"}
	}

	switch p := m.Payload().(type) {
	case CommandMessage:
		return fromCommandMessage(p)
	case *CommandMessage:
		if p == nil {
			return Invocation{}, &DecodeError{Reason: "nil payload"}
		}
		return fromCommandMessage(*p)
	case map[string]any:
		return fromDict(p)
	default:
		return Invocation{}, &DecodeError{Reason: fmt.Sprintf("payload is %T, not a dictionary", p)}
	}
}

func fromCommandMessage(p CommandMessage) (Invocation, error) {
	if p.Cmd == "" {
		return Invocation{}, &DecodeError{Reason: `"cmd" is empty`}
	}
	if p.Args == nil {
		return Invocation{}, &DecodeError{Reason: `"args" is missing`}
	}
	return Invocation{Command: p.Cmd, Args: append([]string(nil), p.Args...)}, nil
}

func fromDict(dict map[string]any) (Invocation, error) {
	cmd, ok := dict["cmd"].(string)
	if !ok {
		return Invocation{}, &DecodeError{Reason: `"cmd" is not a string`}
	}
	if cmd == "" {
		return Invocation{}, &DecodeError{Reason: `"cmd" is empty`}
	}

	var args []string
	switch raw := dict["args"].(type) {
	case []string:
		args = append([]string(nil), raw...)
	case []any:
		args = make([]string, 0, len(raw))
		for i, v := range raw {
			s, ok := v.(string)
			if !ok {
				return Invocation{}, &DecodeError{Reason: fmt.Sprintf(`"args"[%d] is %T, not a string`, i, v)}
			}
			args = append(args, s)
		}
	default:
		return Invocation{}, &DecodeError{Reason: `"args" is not an array`}
	}

	return Invocation{Command: cmd, Args: args}, nil
}

// ReadPayload decodes one JSON value from r into the generic shape carried
// by messages (objects become map[string]any, arrays []any).
func ReadPayload(r io.Reader) (any, error) {
	var payload any
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("failed to decode payload: trailing data after JSON value")
	}
	return payload, nil
}

// EncodeCommand writes a command message as JSON to w.
func EncodeCommand(w io.Writer, cmd string, args []string) error {
	if cmd == "" {
		return fmt.Errorf("command is empty")
	}
	if args == nil {
		args = []string{}
	}
	if err := json.NewEncoder(w).Encode(CommandMessage{Cmd: cmd, Args: args}); err != nil {
		return fmt.Errorf("failed to encode command: %w", err)
	}
	return nil
}
