package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/convhost/internal/api"
	"github.com/mattjoyce/convhost/internal/protocol"
	"github.com/mattjoyce/convhost/internal/state"
	"github.com/mattjoyce/convhost/internal/storage"
	"github.com/mattjoyce/convhost/internal/tui/watch"
)

func runSubmit(args []string) int {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	apiURL := fs.String("api-url", envOr(envAPIURL, defaultAPIURL), "convhost API URL")
	apiKey := fs.String("api-key", os.Getenv(envAPIKey), "API Bearer Token")
	raw := fs.String("payload", "", "Raw JSON payload (instead of <cmd> [args...])")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	var body bytes.Buffer
	switch {
	case *raw != "" && fs.NArg() > 0:
		fmt.Fprintln(os.Stderr, "Error: use either --payload or <cmd> [args...], not both")
		return 1
	case *raw != "":
		body.WriteString(*raw)
	case fs.NArg() > 0:
		if err := protocol.EncodeCommand(&body, fs.Arg(0), fs.Args()[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	default:
		printSubmitHelp()
		return 1
	}

	if *apiKey == "" {
		fmt.Fprintf(os.Stderr, "Error: API key required. Use --api-key or %s env var.\n", envAPIKey)
		return 1
	}

	resp, err := postMessage(*apiURL, *apiKey, &body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Submit failed: %v\n", err)
		return 1
	}

	switch resp.Status {
	case api.StatusAccepted:
		fmt.Printf("accepted %s\n", resp.MessageID)
		return 0
	case api.StatusDropped:
		fmt.Fprintf(os.Stderr, "dropped %s: %s\n", resp.MessageID, resp.Error)
		return 1
	default:
		fmt.Fprintf(os.Stderr, "Submit failed: %s\n", resp.Error)
		return 1
	}
}

func postMessage(apiURL, apiKey string, body io.Reader) (api.SubmitResponse, error) {
	var out api.SubmitResponse

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(apiURL, "/")+"/messages", body)
	if err != nil {
		return out, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return out, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusServiceUnavailable:
		if err := json.Unmarshal(data, &out); err != nil {
			return out, fmt.Errorf("decode response: %w", err)
		}
		return out, nil
	default:
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return out, fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return out, fmt.Errorf("unexpected status %s", resp.Status)
	}
}

func runHistory(args []string) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	statePath := fs.String("state", "", "Override state.path")
	limit := fs.Int("limit", state.DefaultRecentLimit, "Number of entries to show")
	jsonOut := fs.Bool("json", false, "Output entries as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}
	if *statePath != "" {
		cfg.State.Path = *statePath
	}
	if _, err := os.Stat(cfg.State.Path); err != nil {
		fmt.Fprintf(os.Stderr, "Journal not found at %s\n", cfg.State.Path)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open journal: %v\n", err)
		return 1
	}
	defer db.Close()

	journal := state.NewJournal(db)
	entries, err := journal.Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read journal: %v\n", err)
		return 1
	}

	if *jsonOut {
		if entries == nil {
			entries = []state.Entry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	if len(entries) == 0 {
		fmt.Println("No dispatches recorded.")
		return 0
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tMESSAGE\tOUTCOME\tEXIT\tCOMMAND")
	for _, e := range entries {
		exit := "-"
		if e.ExitStatus != nil {
			exit = fmt.Sprintf("%d", *e.ExitStatus)
		}
		command := strings.Join(e.Argv, " ")
		if command == "" {
			command = e.Command
		}
		if e.Error != "" {
			command = strings.TrimSpace(command + " (" + e.Error + ")")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.FinishedAt.Local().Format(time.DateTime),
			shortID(e.MessageID),
			e.Outcome,
			exit,
			command,
		)
	}
	_ = tw.Flush()

	if counts, err := journal.Counts(ctx); err == nil {
		fmt.Printf("\ncompleted=%d failed=%d decode_error=%d unknown_command=%d\n",
			counts[state.OutcomeCompleted],
			counts[state.OutcomeFailed],
			counts[state.OutcomeDecodeError],
			counts[state.OutcomeUnknownCommand],
		)
	}
	return 0
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	apiURL := fs.String("api-url", envOr(envAPIURL, defaultAPIURL), "convhost API URL")
	apiKey := fs.String("api-key", os.Getenv(envAPIKey), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *apiKey == "" {
		fmt.Fprintf(os.Stderr, "Error: API key required. Use --api-key or %s env var.\n", envAPIKey)
		return 1
	}

	m := watch.New(strings.TrimRight(*apiURL, "/"), *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}
