// Package doctor checks a loaded convhost configuration against the host it
// will run on.
package doctor

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mattjoyce/convhost/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return fmt.Sprintf("[%s] %s", i.Category, i.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", i.Category, i.Field, i.Message)
}

// Doctor validates configuration beyond what config.Load enforces.
type Doctor struct {
	cfg      *config.Config
	lookPath func(file string) (string, error)
}

// New creates a Doctor for a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg, lookPath: exec.LookPath}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateCommands(r)
	d.validateState(r)
	d.validateAPIConfig(r)
	d.validateTokenScopes(r)
	d.validateWebhooks(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateCommands checks that each command's binary and work_dir exist.
func (d *Doctor) validateCommands(r *Result) {
	for _, name := range d.cfg.CommandNames() {
		cmd := d.cfg.Commands[name]
		field := "commands." + name

		if _, err := d.lookPath(cmd.Path); err != nil {
			d.addWarning(r, "commands", field+".path",
				fmt.Sprintf("binary %q not found; dispatches of %q will fail", cmd.Path, name))
		}

		if cmd.WorkDir != "" {
			info, err := os.Stat(cmd.WorkDir)
			switch {
			case err != nil:
				d.addError(r, "commands", field+".work_dir", fmt.Sprintf("work_dir %q does not exist", cmd.WorkDir))
			case !info.IsDir():
				d.addError(r, "commands", field+".work_dir", fmt.Sprintf("work_dir %q is not a directory", cmd.WorkDir))
			}
		}

		if cmd.Timeout == 0 {
			d.addWarning(r, "commands", field+".timeout", "no timeout; a hung conversion blocks the worker")
		}
	}
}

func (d *Doctor) validateState(r *Result) {
	if !d.cfg.State.Enabled {
		d.addWarning(r, "state", "state.enabled", "journal disabled; history is unavailable")
	}
}

// validateAPIConfig checks API server settings.
func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		if len(d.cfg.Webhooks.Endpoints) == 0 {
			d.addWarning(r, "api", "api.enabled", "neither the API nor webhooks are enabled; only --stdin can submit messages")
		}
		return
	}
	if d.cfg.API.Auth.APIKey == "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addWarning(r, "api", "api.auth", "API enabled but no authentication configured; every request will be rejected")
	}
}

var scopeResources = map[string]bool{"messages": true, "events": true, "history": true}

// validateTokenScopes checks scope syntax against the resources the API
// serves.
func (d *Doctor) validateTokenScopes(r *Result) {
	for i, token := range d.cfg.API.Auth.Tokens {
		for j, scope := range token.Scopes {
			field := fmt.Sprintf("api.auth.tokens[%d].scopes[%d]", i, j)
			if scope == "*" {
				continue
			}
			resource, access, ok := strings.Cut(scope, ":")
			if !ok {
				d.addError(r, "token_scopes", field,
					fmt.Sprintf("invalid scope %q (expected resource:ro, resource:rw or *)", scope))
				continue
			}
			if !scopeResources[resource] {
				d.addError(r, "token_scopes", field,
					fmt.Sprintf("scope %q references unknown resource %q", scope, resource))
				continue
			}
			if access != "ro" && access != "rw" {
				d.addError(r, "token_scopes", field,
					fmt.Sprintf("scope %q: invalid access type %q (expected ro or rw)", scope, access))
			}
		}
	}
}

// validateWebhooks checks for listener conflicts.
func (d *Doctor) validateWebhooks(r *Result) {
	if len(d.cfg.Webhooks.Endpoints) == 0 {
		return
	}
	if d.cfg.API.Enabled && d.cfg.Webhooks.Listen == d.cfg.API.Listen {
		d.addError(r, "webhooks", "webhooks.listen",
			fmt.Sprintf("webhooks and API both listen on %s", d.cfg.API.Listen))
	}
	for i, ep := range d.cfg.Webhooks.Endpoints {
		if strings.Contains(ep.Secret, "${") {
			continue
		}
		if len(ep.Secret) < 16 {
			d.addWarning(r, "webhooks", fmt.Sprintf("webhooks.endpoints[%d].secret", i),
				"secret is shorter than 16 characters")
		}
	}
}
