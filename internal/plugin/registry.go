// Package plugin holds the recognized commands and the handler that runs
// them as subprocesses.
package plugin

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mattjoyce/convhost/internal/config"
	"github.com/mattjoyce/convhost/internal/dispatch"
	"github.com/mattjoyce/convhost/internal/notify"
)

// HandlerFunc adapts a function to dispatch.Handler.
type HandlerFunc func(argv []string, report notify.Sink) int

func (f HandlerFunc) Invoke(argv []string, report notify.Sink) int { return f(argv, report) }

// Registry holds command handlers indexed by name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]dispatch.Handler
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]dispatch.Handler),
	}
}

// FromConfig builds an ExecHandler for every configured command.
func FromConfig(commands map[string]config.CommandConfig, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry()
	for name, cmd := range commands {
		h, err := NewExecHandler(name, cmd, logger)
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", name, err)
		}
		if err := r.Add(name, h); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers a handler under name.
func (r *Registry) Add(name string, h dispatch.Handler) error {
	if name == "" {
		return fmt.Errorf("command name is empty")
	}
	if h == nil {
		return fmt.Errorf("command %q has no handler", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Lookup implements dispatch.CommandLookup.
func (r *Registry) Lookup(name string) (dispatch.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
