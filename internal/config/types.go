package config

import "time"

// DefaultProgressPattern matches k2pdfopt lines such as
// "SOURCE PAGE 3 (of 12) ...". Group 1 is the current page, group 2 the total.
const DefaultProgressPattern = `(?i)page\s+(\d+)\s*\(?\s*of\s+(\d+)`

// Config represents the complete convhost configuration.
type Config struct {
	Service  ServiceConfig            `yaml:"service"`
	Queue    QueueConfig              `yaml:"queue"`
	State    StateConfig              `yaml:"state"`
	API      APIConfig                `yaml:"api,omitempty"`
	Events   EventsConfig             `yaml:"events"`
	Webhooks WebhooksConfig           `yaml:"webhooks,omitempty"`
	Commands map[string]CommandConfig `yaml:"commands"`

	// SourcePath and Fingerprint describe the file Load read.
	SourcePath  string `yaml:"-"`
	Fingerprint string `yaml:"-"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name            string        `yaml:"name"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// QueueConfig sizes the handoff channel.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// StateConfig defines dispatch journal settings.
type StateConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	// APIKey is a single bearer token with full access.
	// Prefer Tokens for scoped access.
	APIKey string     `yaml:"api_key"`
	Tokens []APIToken `yaml:"tokens,omitempty"`
}

// APIToken defines a bearer token and its scopes.
type APIToken struct {
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// WebhooksConfig defines the HMAC-signed submission server. It runs only
// when endpoints are configured.
type WebhooksConfig struct {
	Listen    string            `yaml:"listen"`
	Endpoints []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookEndpoint is one signed submission path.
type WebhookEndpoint struct {
	Path            string `yaml:"path"`
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header,omitempty"`
	// MaxBodySize accepts "64KB", "1MB" or a byte count.
	MaxBodySize string `yaml:"max_body_size,omitempty"`
}

// EventsConfig sizes the in-memory event history.
type EventsConfig struct {
	Buffer int `yaml:"buffer"`
}

// CommandConfig describes how a recognized command is executed.
type CommandConfig struct {
	Path            string        `yaml:"path"`
	Timeout         time.Duration `yaml:"timeout"`
	WorkDir         string        `yaml:"work_dir"`
	ProgressPattern string        `yaml:"progress_pattern"`
	Env             []string      `yaml:"env,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:            "convhost",
			LogLevel:        "info",
			LogFormat:       "json",
			ShutdownTimeout: 30 * time.Second,
		},
		Queue: QueueConfig{
			Capacity: 16,
		},
		State: StateConfig{
			Enabled: true,
			Path:    "./data/convhost.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8080",
		},
		Events: EventsConfig{
			Buffer: 256,
		},
		Webhooks: WebhooksConfig{
			Listen: "127.0.0.1:8081",
		},
		Commands: map[string]CommandConfig{
			"k2pdfopt": DefaultCommandConfig("k2pdfopt"),
		},
	}
}

// DefaultCommandConfig returns the defaults applied to every command entry.
func DefaultCommandConfig(path string) CommandConfig {
	return CommandConfig{
		Path:            path,
		Timeout:         30 * time.Minute,
		WorkDir:         ".",
		ProgressPattern: DefaultProgressPattern,
	}
}
