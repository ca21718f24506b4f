package plugin

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"github.com/mattjoyce/convhost/internal/config"
	"github.com/mattjoyce/convhost/internal/notify"
	"github.com/mattjoyce/convhost/internal/protocol"
)

const (
	// maxStderrBytes caps the amount of stderr kept from a run.
	maxStderrBytes = 64 * 1024

	// terminationGracePeriod is the time we wait after SIGTERM before sending SIGKILL.
	terminationGracePeriod = 5 * time.Second

	// Exit statuses reported when the binary never produced one.
	ExitStartFailed = 127
	ExitTimedOut    = 124
)

// ExecHandler runs a command as a subprocess: argv[1:] are passed to the
// configured binary, stdout lines are forwarded to the sink.
type ExecHandler struct {
	name     string
	path     string
	workDir  string
	env      []string
	timeout  time.Duration
	grace    time.Duration
	progress *regexp.Regexp
	logger   *slog.Logger
}

func NewExecHandler(name string, cfg config.CommandConfig, logger *slog.Logger) (*ExecHandler, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is empty")
	}
	pattern := cfg.ProgressPattern
	if pattern == "" {
		pattern = config.DefaultProgressPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile progress pattern: %w", err)
	}
	if re.NumSubexp() < 2 {
		return nil, fmt.Errorf("progress pattern %q must capture current and total", pattern)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ExecHandler{
		name:     name,
		path:     cfg.Path,
		workDir:  cfg.WorkDir,
		env:      cfg.Env,
		timeout:  cfg.Timeout,
		grace:    terminationGracePeriod,
		progress: re,
		logger:   logger.With("command", name),
	}, nil
}

// Invoke runs the binary and blocks until it exits or times out. The
// returned value is the process exit status, ExitStartFailed when it could
// not be started, or ExitTimedOut after a timeout.
func (h *ExecHandler) Invoke(argv []string, report notify.Sink) int {
	var args []string
	if len(argv) > 1 {
		args = argv[1:]
	}

	// Not CommandContext: termination is managed below.
	cmd := exec.Command(h.path, args...)
	cmd.Dir = h.workDir
	cmd.Env = append(os.Environ(), h.env...)
	cmd.WaitDelay = h.grace

	// exec copies stdout into pw; WaitDelay bounds that copy once the
	// process has exited, even if a child still holds the descriptor.
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	stderr := &cappedBuffer{limit: maxStderrBytes}
	cmd.Stderr = stderr

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		h.forward(pr, report)
	}()

	h.logger.Debug("spawning command", "path", h.path, "args", args, "work_dir", h.workDir, "timeout", h.timeout)
	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		<-forwarded
		h.logger.Error("failed to start command", "error", err)
		report.Notify(protocol.CategoryError, fmt.Sprintf("Unable to start %s: %v", h.name, err))
		return ExitStartFailed
	}

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		_ = pw.Close()
		<-forwarded
		waitErr <- err
	}()

	var timeout <-chan time.Time
	if h.timeout > 0 {
		timer := time.NewTimer(h.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-timeout:
		h.logger.Warn("command timed out, sending SIGTERM", "timeout", h.timeout)
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			h.logger.Error("failed to send SIGTERM", "error", err)
		}

		grace := time.NewTimer(h.grace)
		defer grace.Stop()

		select {
		case <-waitErr:
			h.logger.Info("command exited after SIGTERM")
		case <-grace.C:
			h.logger.Warn("command did not exit after SIGTERM, sending SIGKILL")
			if err := cmd.Process.Kill(); err != nil {
				h.logger.Error("failed to send SIGKILL", "error", err)
			}
			<-waitErr
		}

		report.Notify(protocol.CategoryError, fmt.Sprintf("%s timed out after %s.", h.name, h.timeout))
		return ExitTimedOut

	case err := <-waitErr:
		if err == nil {
			return 0
		}
		if errors.Is(err, exec.ErrWaitDelay) {
			h.logger.Warn("command left output open after exit", "error", err)
			return cmd.ProcessState.ExitCode()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			h.logger.Warn("command exited with non-zero status", "exit_code", code, "stderr", stderr.String())
			return code
		}
		h.logger.Error("wait for command", "error", err, "stderr", stderr.String())
		return 1
	}
}

// forward turns output lines into notifications until r is exhausted.
func (h *ExecHandler) forward(r io.Reader, report notify.Sink) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	scanner.Split(scanLines)

	for scanner.Scan() {
		line := string(bytes.TrimRight(scanner.Bytes(), " \t"))
		if line == "" {
			continue
		}
		if cur, total, ok := h.parseProgress(line); ok {
			report.NotifyProgress(cur, total)
			continue
		}
		report.Notify(protocol.CategoryStdout, line)
	}
	if err := scanner.Err(); err != nil {
		h.logger.Warn("stopped reading command output", "error", err)
		// Keep the pipe drained so the child is not blocked on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

func (h *ExecHandler) parseProgress(line string) (int, int, bool) {
	m := h.progress.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	cur, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	total, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return cur, total, true
}

// scanLines splits on \n or \r so carriage-return progress updates are seen
// as separate lines.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// cappedBuffer keeps the first limit bytes written to it.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }
