package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, interpolates, defaults and validates the config file at
// configPath. A directory is accepted if it contains config.yaml.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}
	if info.IsDir() {
		absPath = filepath.Join(absPath, "config.yaml")
		if _, err := os.Stat(absPath); err != nil {
			return nil, fmt.Errorf("directory provided but config.yaml not found: %s", absPath)
		}
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.SourcePath = absPath
	cfg.Fingerprint = Fingerprint(data)
	return cfg, nil
}

// Parse decodes YAML over Defaults, then applies per-command defaults and
// validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()

	interpolated := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg = applyConfigDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// CommandNames returns the configured command names, sorted.
func (c *Config) CommandNames() []string {
	names := make([]string, 0, len(c.Commands))
	for name := range c.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func applyConfigDefaults(cfg *Config) *Config {
	for name, cmd := range cfg.Commands {
		def := DefaultCommandConfig(name)
		if cmd.Path == "" {
			cmd.Path = def.Path
		}
		if cmd.Timeout == 0 {
			cmd.Timeout = def.Timeout
		}
		if cmd.WorkDir == "" {
			cmd.WorkDir = def.WorkDir
		}
		if cmd.ProgressPattern == "" {
			cmd.ProgressPattern = def.ProgressPattern
		}
		cfg.Commands[name] = cmd
	}
	cfg.Service.LogLevel = strings.ToLower(cfg.Service.LogLevel)
	cfg.Service.LogFormat = strings.ToLower(cfg.Service.LogFormat)
	return cfg
}

// interpolateEnv replaces ${VAR} with environment variable values.
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Left in place so validation can name the missing variable.
		return match
	})
}

func unresolved(field, value string) error {
	matches := envVarPattern.FindStringSubmatch(value)
	if len(matches) > 1 {
		return fmt.Errorf("%s: environment variable ${%s} is not set", field, matches[1])
	}
	return nil
}

// validate performs basic validation on the configuration.
func validate(cfg *Config) error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[cfg.Service.LogLevel] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}
	if cfg.Service.LogFormat != "json" && cfg.Service.LogFormat != "text" {
		return fmt.Errorf("service.log_format must be json or text (got %q)", cfg.Service.LogFormat)
	}
	if cfg.Service.ShutdownTimeout < 0 {
		return fmt.Errorf("service.shutdown_timeout must not be negative")
	}

	if cfg.Queue.Capacity <= 0 {
		return fmt.Errorf("queue.capacity must be positive (got %d)", cfg.Queue.Capacity)
	}
	if cfg.Events.Buffer <= 0 {
		return fmt.Errorf("events.buffer must be positive (got %d)", cfg.Events.Buffer)
	}

	if cfg.State.Enabled {
		if cfg.State.Path == "" {
			return fmt.Errorf("state.path is required when state.enabled is true")
		}
		if err := unresolved("state.path", cfg.State.Path); err != nil {
			return err
		}
	}

	if cfg.API.Enabled {
		if cfg.API.Listen == "" {
			return fmt.Errorf("api.listen is required when api.enabled is true")
		}
		if err := unresolved("api.auth.api_key", cfg.API.Auth.APIKey); err != nil {
			return err
		}
		for i, tok := range cfg.API.Auth.Tokens {
			if tok.Token == "" {
				return fmt.Errorf("api.auth.tokens[%d].token is required", i)
			}
			if err := unresolved(fmt.Sprintf("api.auth.tokens[%d].token", i), tok.Token); err != nil {
				return err
			}
			if len(tok.Scopes) == 0 {
				return fmt.Errorf("api.auth.tokens[%d].scopes must be non-empty", i)
			}
		}
	}

	seenHooks := make(map[string]bool)
	for i, ep := range cfg.Webhooks.Endpoints {
		field := fmt.Sprintf("webhooks.endpoints[%d]", i)
		if !strings.HasPrefix(ep.Path, "/") {
			return fmt.Errorf("%s.path must start with / (got %q)", field, ep.Path)
		}
		if seenHooks[ep.Path] {
			return fmt.Errorf("%s.path %q is used by another endpoint", field, ep.Path)
		}
		seenHooks[ep.Path] = true
		if ep.Secret == "" {
			return fmt.Errorf("%s.secret is required", field)
		}
		if err := unresolved(field+".secret", ep.Secret); err != nil {
			return err
		}
	}
	if len(cfg.Webhooks.Endpoints) > 0 && cfg.Webhooks.Listen == "" {
		return fmt.Errorf("webhooks.listen is required when endpoints are configured")
	}

	if len(cfg.Commands) == 0 {
		return fmt.Errorf("commands: at least one command is required")
	}
	for _, name := range cfg.CommandNames() {
		cmd := cfg.Commands[name]
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("commands: command name is empty")
		}
		if err := unresolved(fmt.Sprintf("commands.%s.path", name), cmd.Path); err != nil {
			return err
		}
		if cmd.Timeout < 0 {
			return fmt.Errorf("commands.%s.timeout must not be negative", name)
		}
		re, err := regexp.Compile(cmd.ProgressPattern)
		if err != nil {
			return fmt.Errorf("commands.%s.progress_pattern: %w", name, err)
		}
		if re.NumSubexp() < 2 {
			return fmt.Errorf("commands.%s.progress_pattern must capture current and total pages", name)
		}
		for i, kv := range cmd.Env {
			if !strings.Contains(kv, "=") || strings.HasPrefix(kv, "=") {
				return fmt.Errorf("commands.%s.env[%d] must be KEY=VALUE (got %q)", name, i, kv)
			}
			if err := unresolved(fmt.Sprintf("commands.%s.env[%d]", name, i), kv); err != nil {
				return err
			}
		}
	}

	return nil
}
