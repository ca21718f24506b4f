package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/convhost/internal/api"
	"github.com/mattjoyce/convhost/internal/config"
	"github.com/mattjoyce/convhost/internal/host"
	"github.com/mattjoyce/convhost/internal/log"
	"github.com/mattjoyce/convhost/internal/state"
	"github.com/mattjoyce/convhost/internal/storage"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	require.NoError(t, err)
	stderrR, stderrW, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = stdoutW
	os.Stderr = stderrW

	// Drain concurrently so large outputs cannot fill the pipes.
	var stdoutBytes, stderrBytes []byte
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); stdoutBytes, _ = io.ReadAll(stdoutR) }()
	go func() { defer wg.Done(); stderrBytes, _ = io.ReadAll(stderrR) }()

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	wg.Wait()
	os.Stdout = oldStdout
	os.Stderr = oldStderr
	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion, origCommit, origBuildDate := version, gitCommit, buildDate
	version, gitCommit, buildDate = v, commit, built

	t.Cleanup(func() {
		version, gitCommit, buildDate = origVersion, origCommit, origBuildDate
	})
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "0123456789abcdef0123", "2026-01-02T03:04:05.5+02:00")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"version", "--json"})
	})
	require.Equal(t, 0, code)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, versionInfo{Version: "1.2.3", Commit: "0123456789ab", BuildTime: "2026-01-02T01:04:05Z"}, info)
}

func TestRunVersionRejectsArgs(t *testing.T) {
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"version", "extra"})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Usage: convhost version")
}

func TestRunCLIUnknownCommand(t *testing.T) {
	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"frobnicate"})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Unknown command: frobnicate")
	assert.Contains(t, stdout, "Usage:")
}

func TestRunCLIHelp(t *testing.T) {
	for _, args := range [][]string{{"help"}, {"start", "--help"}, {"config", "check", "-h"}, {"config", "help"}} {
		code, stdout, _ := captureOutputWithExitCode(t, func() int { return runCLI(args) })
		assert.Equal(t, 0, code, args)
		assert.Contains(t, stdout, "Usage", args)
	}
}

func TestConfigCheckFingerprint(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "queue:\n  capacity: 4\nstate:\n  path: "+filepath.Join(dir, "convhost.db")+"\n")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := config.Fingerprint(data)

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", path, "--json"})
	})
	require.Equal(t, 0, code)

	var result configCheckResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &result))
	assert.True(t, result.Valid)
	assert.Equal(t, want, result.Fingerprint)
	assert.Equal(t, []string{"k2pdfopt"}, result.Commands)

	code, stdout, _ = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", dir, "--expect", want})
	})
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "PASSED")

	code, stdout, _ = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", path, "--expect", strings.Repeat("0", 64)})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "hash mismatch")
	assert.Contains(t, stdout, "FAILED")
}

func TestConfigCheckInvalid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "queue:\n  capacity: 0\n")

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"config", "check", "--config", path})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, "queue.capacity")
}

func TestConfigCheckDefaultsWithoutFile(t *testing.T) {
	t.Setenv(envConfig, "")

	result := checkConfig("", "")
	assert.True(t, result.Valid)
	assert.Equal(t, "(built-in defaults)", result.Source)

	result = checkConfig("", "abc")
	assert.False(t, result.Valid)
}

func seedJournal(t *testing.T, dbPath string) {
	t.Helper()
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, dbPath)
	require.NoError(t, err)
	defer db.Close()

	j := state.NewJournal(db)
	exit := 0
	base := time.Now().Add(-time.Minute)
	require.NoError(t, j.Record(ctx, state.Entry{
		MessageID:  "11111111-aaaa",
		Command:    "k2pdfopt",
		Argv:       []string{"k2pdfopt", "in.pdf"},
		Outcome:    state.OutcomeCompleted,
		ExitStatus: &exit,
		FinishedAt: base,
	}))
	require.NoError(t, j.Record(ctx, state.Entry{
		MessageID:  "22222222-bbbb",
		Outcome:    state.OutcomeDecodeError,
		Error:      "decode message: payload is string, not a dictionary",
		FinishedAt: base.Add(time.Second),
	}))
}

func TestRunHistory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "convhost.db")
	seedJournal(t, dbPath)
	t.Setenv(envConfig, "")

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"history", "--state", dbPath, "--json"})
	})
	require.Equal(t, 0, code, stderr)

	var entries []state.Entry
	require.NoError(t, json.Unmarshal([]byte(stdout), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, state.OutcomeDecodeError, entries[0].Outcome, "newest first")
	assert.Equal(t, state.OutcomeCompleted, entries[1].Outcome)

	code, stdout, _ = captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"history", "--state", dbPath})
	})
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "OUTCOME")
	assert.Contains(t, stdout, "k2pdfopt in.pdf")
	assert.Contains(t, stdout, "completed=1 failed=0 decode_error=1 unknown_command=0")
}

func TestRunHistoryMissingJournal(t *testing.T) {
	t.Setenv(envConfig, "")
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"history", "--state", filepath.Join(t.TempDir(), "missing.db")})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Journal not found")
}

func TestRunSubmit(t *testing.T) {
	var got map[string]any
	accept := true
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		if accept {
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(api.SubmitResponse{MessageID: "m-1", Status: api.StatusAccepted})
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(api.SubmitResponse{MessageID: "m-2", Status: api.StatusDropped, Error: "queue full"})
	}))
	defer ts.Close()

	code, stdout, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"submit", "--api-url", ts.URL, "--api-key", "secret", "k2pdfopt", "in.pdf", "-o", "out.pdf"})
	})
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "accepted m-1")
	assert.Equal(t, map[string]any{"cmd": "k2pdfopt", "args": []any{"in.pdf", "-o", "out.pdf"}}, got)

	accept = false
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"submit", "--api-url", ts.URL, "--api-key", "secret", "--payload", `{"cmd":"x","args":[]}`})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "dropped m-2: queue full")
}

func TestRunSubmitRequiresKey(t *testing.T) {
	t.Setenv(envAPIKey, "")
	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"submit", "k2pdfopt"})
	})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "API key required")
}

type fakeSubmitter struct {
	payloads []any
}

func (f *fakeSubmitter) Submit(payload any) (string, bool) {
	f.payloads = append(f.payloads, payload)
	return "id", true
}

func TestSubmitStream(t *testing.T) {
	f := &fakeSubmitter{}
	n, err := submitStream(strings.NewReader(`{"cmd":"a","args":[]}
"plain"
{"cmd":"b","args":["x"]}`), f, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "plain", f.payloads[1])

	n, err = submitStream(strings.NewReader(`{"cmd":"a","args":[]} {"cmd":`), f, log.Discard())
	assert.Error(t, err)
	assert.Equal(t, 1, n)
}

func TestWaitDrained(t *testing.T) {
	calls := 0
	stats := func() host.Stats {
		calls++
		if calls < 3 {
			return host.Stats{Depth: 1, Accepted: 2, Dispatched: 1}
		}
		return host.Stats{Accepted: 2, Dispatched: 2}
	}
	require.NoError(t, waitDrained(context.Background(), stats))
	assert.Equal(t, 3, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := waitDrained(ctx, func() host.Stats { return host.Stats{Depth: 1} })
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunStartFromStdin(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "fake-k2pdfopt.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"page 1 of 1\"\nexit 0\n"), 0o755))

	dbPath := filepath.Join(dir, "convhost.db")
	cfgPath := writeConfig(t, dir, `service:
  log_level: error
state:
  path: `+dbPath+`
commands:
  k2pdfopt:
    path: `+script+`
    timeout: 10s
    work_dir: `+dir+`
`)

	stdinR, stdinW, err := os.Pipe()
	require.NoError(t, err)
	oldStdin := os.Stdin
	os.Stdin = stdinR
	t.Cleanup(func() { os.Stdin = oldStdin })

	_, err = stdinW.WriteString(`{"cmd":"k2pdfopt","args":["in.pdf"]}` + "\n" + `{"cmd":"pdftk","args":[]}` + "\n")
	require.NoError(t, err)
	require.NoError(t, stdinW.Close())

	code, _, _ := captureOutputWithExitCode(t, func() int {
		return runCLI([]string{"start", "--config", cfgPath, "--stdin"})
	})
	require.Equal(t, 0, code)

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, dbPath)
	require.NoError(t, err)
	defer db.Close()

	counts, err := state.NewJournal(db).Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[state.OutcomeCompleted])
	assert.Equal(t, 1, counts[state.OutcomeUnknownCommand])
}
