package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/mattjoyce/convhost/internal/message"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		payload  any
		wantCmd  string
		wantArgs []string
		wantErr  string
	}{
		{
			name:     "json dictionary",
			payload:  map[string]any{"cmd": "k2pdfopt", "args": []any{"in.pdf", "-o", "out.pdf"}},
			wantCmd:  "k2pdfopt",
			wantArgs: []string{"in.pdf", "-o", "out.pdf"},
		},
		{
			name:     "go string slice",
			payload:  map[string]any{"cmd": "k2pdfopt", "args": []string{"-mode", "2col"}},
			wantCmd:  "k2pdfopt",
			wantArgs: []string{"-mode", "2col"},
		},
		{
			name:     "empty args",
			payload:  map[string]any{"cmd": "k2pdfopt", "args": []any{}},
			wantCmd:  "k2pdfopt",
			wantArgs: []string{},
		},
		{
			name:     "typed command message",
			payload:  CommandMessage{Cmd: "k2pdfopt", Args: []string{"a.pdf"}},
			wantCmd:  "k2pdfopt",
			wantArgs: []string{"a.pdf"},
		},
		{
			name:    "plain string",
			payload: "k2pdfopt in.pdf",
			wantErr: "not a dictionary",
		},
		{
			name:    "nil payload",
			payload: nil,
			wantErr: "not a dictionary",
		},
		{
			name:    "missing cmd",
			payload: map[string]any{"args": []any{}},
			wantErr: `"cmd" is not a string`,
		},
		{
			name:    "numeric cmd",
			payload: map[string]any{"cmd": 3.0, "args": []any{}},
			wantErr: `"cmd" is not a string`,
		},
		{
			name:    "missing args",
			payload: map[string]any{"cmd": "k2pdfopt"},
			wantErr: `"args" is not an array`,
		},
		{
			name:    "args is object",
			payload: map[string]any{"cmd": "k2pdfopt", "args": map[string]any{}},
			wantErr: `"args" is not an array`,
		},
		{
			name:    "non-string argument",
			payload: map[string]any{"cmd": "k2pdfopt", "args": []any{"in.pdf", 2.0}},
			wantErr: `"args"[1]`,
		},
		{
			name:    "typed message without args",
			payload: CommandMessage{Cmd: "k2pdfopt"},
			wantErr: `"args" is missing`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv, err := Decode(message.New(tt.payload))
			if tt.wantErr != "" {
				var decErr *DecodeError
				if !errors.As(err, &decErr) {
					t.Fatalf("expected *DecodeError, got %v", err)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error %q does not contain %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if inv.Command != tt.wantCmd {
				t.Errorf("command = %q, want %q", inv.Command, tt.wantCmd)
			}
			if strings.Join(inv.Args, "|") != strings.Join(tt.wantArgs, "|") || len(inv.Args) != len(tt.wantArgs) {
				t.Errorf("args = %q, want %q", inv.Args, tt.wantArgs)
			}
		})
	}
}

func TestInvocationArgv(t *testing.T) {
	inv := Invocation{Command: "k2pdfopt", Args: []string{"in.pdf", "-o", "out.pdf"}}

	argv := inv.Argv()
	want := []string{"k2pdfopt", "in.pdf", "-o", "out.pdf"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %q, want %q", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Fatalf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}

	// Argv must not alias the invocation's argument slice.
	argv[1] = "changed"
	if inv.Args[0] != "in.pdf" {
		t.Fatal("Argv aliased Args")
	}
}

func TestEncodeCommandRoundTripsThroughReadPayload(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeCommand(&buf, "k2pdfopt", []string{"in.pdf"}); err != nil {
		t.Fatalf("EncodeCommand: %v", err)
	}

	payload, err := ReadPayload(&buf)
	if err != nil {
		t.Fatalf("ReadPayload: %v", err)
	}

	inv, err := Decode(message.New(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if inv.String() != "k2pdfopt in.pdf" {
		t.Fatalf("invocation = %q", inv.String())
	}
}

func TestEncodeCommandRejectsEmptyCommand(t *testing.T) {
	if err := EncodeCommand(&bytes.Buffer{}, "", nil); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestReadPayloadRejectsTrailingData(t *testing.T) {
	if _, err := ReadPayload(strings.NewReader(`{"cmd":"x"} {"cmd":"y"}`)); err == nil {
		t.Fatal("expected error for trailing data")
	}
	if _, err := ReadPayload(strings.NewReader(`{`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestReadPayloadKeepsPlainStrings(t *testing.T) {
	payload, err := ReadPayload(strings.NewReader(`"hello"`))
	if err != nil {
		t.Fatalf("ReadPayload: %v", err)
	}
	if payload != "hello" {
		t.Fatalf("payload = %#v", payload)
	}
}
