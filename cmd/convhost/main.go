package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mattjoyce/convhost/internal/config"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

const (
	envConfig = "CONVHOST_CONFIG"
	envAPIURL = "CONVHOST_API_URL"
	envAPIKey = "CONVHOST_API_KEY"

	defaultAPIURL = "http://127.0.0.1:8080"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		if hasHelpFlag(args) {
			printStartHelp()
			return 0
		}
		return runStart(args)
	case "submit":
		if hasHelpFlag(args) {
			printSubmitHelp()
			return 0
		}
		return runSubmit(args)
	case "history":
		if hasHelpFlag(args) {
			printHistoryHelp()
			return 0
		}
		return runHistory(args)
	case "watch":
		if hasHelpFlag(args) {
			printWatchHelp()
			return 0
		}
		return runWatch(args)
	case "config":
		return runConfigNoun(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if fs.NArg() > 0 {
		fmt.Fprintln(os.Stderr, "Usage: convhost version [--json]")
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("convhost %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}

	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		info.Commit = shortenCommit(resolvedCommit)
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if normalized, ok := normalizeBuildTimeUTC(resolvedBuildTime); ok {
		info.BuildTime = normalized
	}

	return info
}

func shortenCommit(commit string) string {
	if len(commit) <= 12 {
		return commit
	}
	return commit[:12]
}

func normalizeBuildTimeUTC(raw string) (string, bool) {
	if raw == "" || raw == "unknown" {
		return "", false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(time.RFC3339), true
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// loadConfig resolves the config path (flag, then $CONVHOST_CONFIG) and
// loads it. With neither set the built-in defaults are used.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = os.Getenv(envConfig)
	}
	if configPath == "" {
		return config.Parse(nil)
	}
	return config.Load(configPath)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Print(`convhost - queue host for document conversion commands

Usage:
  convhost <command> [flags]

Commands:
  start           Run the worker (and the HTTP API when enabled) in the foreground
  submit          Submit a command message to a running convhost
  history         Show recent dispatch outcomes from the journal
  watch           Real-time monitoring TUI
  config check    Validate configuration and print its fingerprint
  version         Show version information
  help            Show this help message

Use 'convhost <command> --help' for command flags.
`)
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: convhost config <action> [flags]")
	fmt.Fprintln(w, "Actions: check")
}

func printStartHelp() {
	fmt.Println("Usage: convhost start [--config PATH] [--state PATH] [--stdin]")
	fmt.Println("Run the worker in the foreground until SIGINT/SIGTERM.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --config PATH    Config file or directory (or CONVHOST_CONFIG)")
	fmt.Println("  --state PATH     Override state.path (journal database)")
	fmt.Println("  --stdin          Read JSON message payloads from stdin; exit after EOF")
}

func printSubmitHelp() {
	fmt.Println("Usage: convhost submit [--api-url URL] [--api-key KEY] [--payload JSON] [<cmd> [args...]]")
	fmt.Println("Send one message to POST /messages.")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  convhost submit k2pdfopt in.pdf -o out.pdf")
	fmt.Println(`  convhost submit --payload '{"cmd":"k2pdfopt","args":["in.pdf"]}'`)
}

func printHistoryHelp() {
	fmt.Println("Usage: convhost history [--config PATH] [--state PATH] [--limit N] [--json]")
	fmt.Println("Show recent dispatch outcomes, newest first, read from the journal database.")
}

func printWatchHelp() {
	fmt.Println("Usage: convhost watch [flags]")
	fmt.Println()
	fmt.Println("Real-time monitoring TUI: queue depth, worker state, conversion progress and events.")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  --api-url URL    convhost API URL (or CONVHOST_API_URL)")
	fmt.Println("  --api-key KEY    API Bearer Token (or CONVHOST_API_KEY)")
	fmt.Println()
	fmt.Println("Keybindings:")
	fmt.Println("  q, Ctrl+C        Quit")
	fmt.Println("  c                Clear event stream")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: convhost config check [--config PATH] [--expect HASH] [--json]")
	fmt.Println("Validate configuration. Prints the BLAKE3 fingerprint of the config file;")
	fmt.Println("with --expect, fails when the fingerprint differs.")
}
