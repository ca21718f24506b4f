package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "empty file uses defaults",
			yaml: ``,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Queue.Capacity != 16 {
					t.Errorf("queue.capacity = %d, want 16", cfg.Queue.Capacity)
				}
				if !cfg.State.Enabled || cfg.State.Path != "./data/convhost.db" {
					t.Errorf("state defaults not applied: %+v", cfg.State)
				}
				k2, ok := cfg.Commands["k2pdfopt"]
				if !ok {
					t.Fatal("default k2pdfopt command missing")
				}
				if k2.Path != "k2pdfopt" || k2.Timeout != 30*time.Minute || k2.ProgressPattern != DefaultProgressPattern {
					t.Errorf("k2pdfopt defaults not applied: %+v", k2)
				}
			},
		},
		{
			name: "full config",
			yaml: `
service:
  name: converter
  log_level: DEBUG
  log_format: text
queue:
  capacity: 2
state:
  path: ./test.db
api:
  enabled: true
  listen: 127.0.0.1:9090
  auth:
    tokens:
      - token: abc
        scopes: ["messages:rw"]
commands:
  k2pdfopt:
    path: /opt/k2pdfopt/bin/k2pdfopt
    timeout: 90s
    work_dir: /srv/scratch
    env: ["K2PDFOPT=-ui-"]
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Service.LogLevel != "debug" || cfg.Service.LogFormat != "text" {
					t.Errorf("service not normalised: %+v", cfg.Service)
				}
				if cfg.Queue.Capacity != 2 {
					t.Error("queue.capacity not parsed")
				}
				if !cfg.API.Enabled || cfg.API.Listen != "127.0.0.1:9090" {
					t.Errorf("api not parsed: %+v", cfg.API)
				}
				if len(cfg.API.Auth.Tokens) != 1 || cfg.API.Auth.Tokens[0].Scopes[0] != "messages:rw" {
					t.Errorf("tokens not parsed: %+v", cfg.API.Auth.Tokens)
				}
				k2 := cfg.Commands["k2pdfopt"]
				if k2.Timeout != 90*time.Second || k2.WorkDir != "/srv/scratch" {
					t.Errorf("command not parsed: %+v", k2)
				}
				if k2.ProgressPattern != DefaultProgressPattern {
					t.Error("default progress pattern not applied")
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: `
state:
  path: ${DB_PATH}
api:
  enabled: true
  auth:
    api_key: ${API_KEY}
`,
			env: map[string]string{
				"DB_PATH": "/tmp/convhost-test.db",
				"API_KEY": "secret123",
			},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.State.Path != "/tmp/convhost-test.db" {
					t.Errorf("env var not interpolated in state.path: %s", cfg.State.Path)
				}
				if cfg.API.Auth.APIKey != "secret123" {
					t.Errorf("env var not interpolated in api_key: %s", cfg.API.Auth.APIKey)
				}
			},
		},
		{
			name: "missing env var fails validation",
			yaml: `
api:
  enabled: true
  auth:
    api_key: ${CONVHOST_TEST_MISSING_VAR}
`,
			wantErr: "${CONVHOST_TEST_MISSING_VAR} is not set",
		},
		{
			name: "invalid log level",
			yaml: `
service:
  log_level: invalid
`,
			wantErr: "service.log_level",
		},
		{
			name: "invalid log format",
			yaml: `
service:
  log_format: xml
`,
			wantErr: "service.log_format",
		},
		{
			name: "zero capacity",
			yaml: `
queue:
  capacity: 0
`,
			wantErr: "queue.capacity",
		},
		{
			name: "journal disabled without path",
			yaml: `
state:
  enabled: false
  path: ""
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.State.Enabled {
					t.Error("state.enabled should be false")
				}
			},
		},
		{
			name: "journal enabled without path",
			yaml: `
state:
  path: ""
`,
			wantErr: "state.path is required",
		},
		{
			name: "token without scopes",
			yaml: `
api:
  enabled: true
  auth:
    tokens:
      - token: abc
`,
			wantErr: "scopes must be non-empty",
		},
		{
			name: "progress pattern without groups",
			yaml: `
commands:
  k2pdfopt:
    progress_pattern: "page \\d+"
`,
			wantErr: "must capture current and total",
		},
		{
			name: "bad progress pattern",
			yaml: `
commands:
  k2pdfopt:
    progress_pattern: "("
`,
			wantErr: "progress_pattern",
		},
		{
			name: "bad env entry",
			yaml: `
commands:
  k2pdfopt:
    env: ["NOEQUALS"]
`,
			wantErr: "KEY=VALUE",
		},
		{
			name: "webhook endpoints",
			yaml: `
webhooks:
  listen: 127.0.0.1:9091
  endpoints:
    - path: /hooks/scanner
      secret: ${HOOK_SECRET}
      max_body_size: 64KB
`,
			env: map[string]string{"HOOK_SECRET": "s3cret"},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Webhooks.Listen != "127.0.0.1:9091" || len(cfg.Webhooks.Endpoints) != 1 {
					t.Fatalf("webhooks not parsed: %+v", cfg.Webhooks)
				}
				if ep := cfg.Webhooks.Endpoints[0]; ep.Secret != "s3cret" || ep.MaxBodySize != "64KB" {
					t.Errorf("endpoint not parsed: %+v", ep)
				}
			},
		},
		{
			name: "webhook without secret",
			yaml: `
webhooks:
  endpoints:
    - path: /hooks/scanner
`,
			wantErr: "webhooks.endpoints[0].secret is required",
		},
		{
			name: "duplicate webhook path",
			yaml: `
webhooks:
  endpoints:
    - {path: /hooks/a, secret: x}
    - {path: /hooks/a, secret: y}
`,
			wantErr: "used by another endpoint",
		},
		{
			name: "webhook path without slash",
			yaml: `
webhooks:
  endpoints:
    - {path: hooks, secret: x}
`,
			wantErr: "must start with /",
		},
		{
			name: "invalid yaml",
			yaml: `queue: [`,
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error %q does not contain %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if cfg.SourcePath != path {
				t.Errorf("SourcePath = %q, want %q", cfg.SourcePath, path)
			}
			if len(cfg.Fingerprint) != 64 {
				t.Errorf("Fingerprint = %q, want 64 hex chars", cfg.Fingerprint)
			}
			if tt.checkFn != nil {
				tt.checkFn(t, cfg)
			}
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("queue:\n  capacity: 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(dir) error = %v", err)
	}
	if cfg.Queue.Capacity != 4 {
		t.Errorf("queue.capacity = %d, want 4", cfg.Queue.Capacity)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestCommandNamesSorted(t *testing.T) {
	cfg, err := Parse([]byte(`
commands:
  zeta: {path: /bin/true}
  alpha: {path: /bin/true}
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	got := strings.Join(cfg.CommandNames(), ",")
	if got != "alpha,k2pdfopt,zeta" {
		t.Fatalf("CommandNames() = %s", got)
	}
	if cfg.Commands["zeta"].WorkDir != "." {
		t.Error("defaults not applied to added command")
	}
}
