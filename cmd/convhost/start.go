package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattjoyce/convhost/internal/api"
	"github.com/mattjoyce/convhost/internal/dispatch"
	"github.com/mattjoyce/convhost/internal/doctor"
	"github.com/mattjoyce/convhost/internal/events"
	"github.com/mattjoyce/convhost/internal/host"
	"github.com/mattjoyce/convhost/internal/lock"
	"github.com/mattjoyce/convhost/internal/log"
	"github.com/mattjoyce/convhost/internal/plugin"
	"github.com/mattjoyce/convhost/internal/state"
	"github.com/mattjoyce/convhost/internal/storage"
	"github.com/mattjoyce/convhost/internal/webhook"
)

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	statePath := fs.String("state", "", "Override state.path")
	fromStdin := fs.Bool("stdin", false, "Read JSON message payloads from stdin")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *statePath != "" {
		cfg.State.Path = *statePath
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("convhost starting",
		"version", version,
		"config", cfg.SourcePath,
		"fingerprint", cfg.Fingerprint,
	)

	report := doctor.New(cfg).Validate()
	for _, issue := range report.Warnings {
		logger.Warn("config warning", "issue", issue.String())
	}
	if !report.Valid {
		for _, issue := range report.Errors {
			logger.Error("config error", "issue", issue.String())
		}
		return 1
	}

	lockPath := lock.PathFor(cfg.State.Path)
	pidLock, err := lock.AcquirePIDLock(lockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", lockPath, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", lockPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var journal *state.Journal
	if cfg.State.Enabled {
		db, err := storage.OpenSQLite(ctx, cfg.State.Path)
		if err != nil {
			logger.Error("failed to open journal database", "path", cfg.State.Path, "error", err)
			return 1
		}
		defer db.Close()
		journal = state.NewJournal(db)
		logger.Info("journal opened", "path", cfg.State.Path)
	} else {
		logger.Info("journal disabled")
	}

	registry, err := plugin.FromConfig(cfg.Commands, log.WithComponent("plugin"))
	if err != nil {
		logger.Error("failed to configure commands", "error", err)
		return 1
	}
	logger.Info("commands registered", "commands", registry.Names())

	hub := events.NewHub(cfg.Events.Buffer)

	// Interface values stay nil when the journal is disabled.
	var (
		workerJournal dispatch.Journal
		history       api.History
	)
	if journal != nil {
		workerJournal = journal
		history = journal
	}

	module, err := host.New(host.Options{
		Capacity: cfg.Queue.Capacity,
		Commands: registry,
		Journal:  workerJournal,
		Hub:      hub,
		Logger:   log.Get(),
	})
	if err != nil {
		logger.Error("failed to create host module", "error", err)
		return 1
	}
	module.StartWorker()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 2)
	inputDone := make(chan struct{})

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen:   cfg.API.Listen,
			APIKey:   cfg.API.Auth.APIKey,
			Tokens:   api.TokensFromConfig(cfg.API.Auth.Tokens),
			Commands: registry.Names(),
		}, module, hub, history, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	if len(cfg.Webhooks.Endpoints) > 0 {
		webhookConfig, err := webhook.FromConfig(cfg.Webhooks)
		if err != nil {
			logger.Error("failed to configure webhooks", "error", err)
			return 1
		}
		webhookServer := webhook.New(webhookConfig, module, log.WithComponent("webhook"))
		go func() {
			if err := webhookServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("webhook: %w", err)
			}
		}()
		logger.Info("webhook server enabled", "listen", webhookConfig.Listen, "endpoints", len(webhookConfig.Endpoints))
	}

	if *fromStdin {
		go func() {
			defer close(inputDone)
			n, err := submitStream(os.Stdin, module, logger)
			if err != nil {
				logger.Error("stdin input stopped", "error", err, "submitted", n)
				return
			}
			logger.Info("stdin closed", "submitted", n)
		}()
	}

	logger.Info("convhost running (press Ctrl+C to stop)", "capacity", module.Stats().Capacity)

	code := 0
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		code = 1
	case <-inputDone:
		logger.Info("waiting for queued messages to finish")
		drainCtx, drainCancel := context.WithCancel(ctx)
		go func() {
			select {
			case sig := <-sigCh:
				logger.Info("received shutdown signal", "signal", sig)
				drainCancel()
			case <-drainCtx.Done():
			}
		}()
		if err := waitDrained(drainCtx, module.Stats); err != nil {
			logger.Warn("stopped before the queue drained", "depth", module.Stats().Depth)
		}
		drainCancel()
	}
	cancel()

	timeout := cfg.Service.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()
	if err := module.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker did not stop in time", "error", err)
		code = 1
	}

	stats := module.Stats()
	logger.Info("convhost stopped",
		"accepted", stats.Accepted,
		"dropped", stats.Dropped,
		"discarded", stats.Discarded,
		"dispatched", stats.Dispatched,
	)
	return code
}

const (
	drainPollInterval      = 100 * time.Millisecond
	defaultShutdownTimeout = 30 * time.Second
)

// waitDrained blocks until every accepted message has been dispatched.
func waitDrained(ctx context.Context, stats func() host.Stats) error {
	ticker := time.NewTicker(drainPollInterval)
	defer ticker.Stop()
	for {
		s := stats()
		if s.Depth == 0 && s.Dispatched >= s.Accepted {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// submitter is the producer side used by submitStream.
type submitter interface {
	Submit(payload any) (string, bool)
}

// submitStream submits every JSON value read from r until EOF and returns
// how many were handed over. Dropped messages count as handed over.
func submitStream(r io.Reader, s submitter, logger *slog.Logger) (int, error) {
	dec := json.NewDecoder(r)
	n := 0
	for {
		var payload any
		if err := dec.Decode(&payload); err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("decode payload %d: %w", n+1, err)
		}
		id, accepted := s.Submit(payload)
		n++
		logger.Debug("submitted message from stdin", "message_id", id, "accepted", accepted)
	}
}
