package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/mattjoyce/convhost/internal/config"
	"github.com/mattjoyce/convhost/internal/doctor"
)

type configCheckResult struct {
	Valid       bool     `json:"valid"`
	Source      string   `json:"source"`
	Fingerprint string   `json:"fingerprint,omitempty"`
	Commands    []string `json:"commands,omitempty"`
	Journal     string   `json:"journal,omitempty"`
	API         string   `json:"api,omitempty"`
	Webhooks    int      `json:"webhooks,omitempty"`
	Error       string   `json:"error,omitempty"`

	Errors   []doctor.Issue `json:"errors,omitempty"`
	Warnings []doctor.Issue `json:"warnings,omitempty"`
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	expect := fs.String("expect", "", "Expected BLAKE3 fingerprint of the config file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	result := checkConfig(*configPath, *expect)

	if *jsonOut {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
	} else {
		printConfigCheck(result)
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func checkConfig(configPath, expect string) configCheckResult {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return configCheckResult{Source: configPath, Error: err.Error()}
	}

	result := configCheckResult{
		Valid:       true,
		Source:      cfg.SourcePath,
		Fingerprint: cfg.Fingerprint,
		Commands:    cfg.CommandNames(),
		Journal:     "disabled",
		API:         "disabled",
		Webhooks:    len(cfg.Webhooks.Endpoints),
	}
	if result.Source == "" {
		result.Source = "(built-in defaults)"
	}
	if cfg.State.Enabled {
		result.Journal = cfg.State.Path
	}
	if cfg.API.Enabled {
		result.API = cfg.API.Listen
	}

	report := doctor.New(cfg).Validate()
	result.Errors = report.Errors
	result.Warnings = report.Warnings
	if !report.Valid {
		result.Valid = false
		result.Error = fmt.Sprintf("%d configuration error(s)", len(report.Errors))
	}

	if expect != "" {
		if cfg.SourcePath == "" {
			result.Valid = false
			result.Error = "--expect needs a config file"
			return result
		}
		if err := config.VerifyFileHash(cfg.SourcePath, expect); err != nil {
			result.Valid = false
			result.Error = err.Error()
		}
	}
	return result
}

func printConfigCheck(r configCheckResult) {
	fmt.Printf("Config:      %s\n", r.Source)
	if r.Fingerprint != "" {
		fmt.Printf("Fingerprint: %s\n", r.Fingerprint)
	}
	if len(r.Commands) > 0 {
		fmt.Printf("Commands:    %v\n", r.Commands)
	}
	if r.Journal != "" {
		fmt.Printf("Journal:     %s\n", r.Journal)
	}
	if r.API != "" {
		fmt.Printf("API:         %s\n", r.API)
	}
	if r.Webhooks > 0 {
		fmt.Printf("Webhooks:    %d endpoint(s)\n", r.Webhooks)
	}
	for _, issue := range r.Errors {
		fmt.Printf("ERROR   %s\n", issue)
	}
	for _, issue := range r.Warnings {
		fmt.Printf("WARNING %s\n", issue)
	}
	if r.Valid {
		fmt.Println("Status: Configuration check PASSED.")
		return
	}
	fmt.Printf("Error: %s\n", r.Error)
	fmt.Println("Status: Configuration check FAILED.")
}
