// Package notify carries notifications from the worker back to the host.
package notify

import (
	"log/slog"
	"sync"

	"github.com/mattjoyce/convhost/internal/events"
	"github.com/mattjoyce/convhost/internal/protocol"
)

// Sink receives notifications. Implementations must not block the caller for
// long and must be safe for use from the worker goroutine.
type Sink interface {
	Notify(category, text string)
	NotifyProgress(current, total int)
}

// Discard drops every notification.
var Discard Sink = discard{}

type discard struct{}

func (discard) Notify(string, string)  {}
func (discard) NotifyProgress(int, int) {}

// HubSink publishes notifications as events on a hub.
type HubSink struct {
	hub *events.Hub
}

// NewHubSink returns a sink publishing to hub.
func NewHubSink(hub *events.Hub) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Notify(category, text string) {
	s.hub.Publish(events.TypeNotifyPrefix+category, protocol.Notification{Category: category, Msg: text})
}

func (s *HubSink) NotifyProgress(current, total int) {
	s.hub.Publish(events.TypeProgress, protocol.NewProgress(current, total))
}

// LogSink writes notifications to a structured logger at a level derived
// from the category.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink writing to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(category, text string) {
	switch category {
	case protocol.CategoryError:
		s.logger.Warn("notification", "category", category, "msg", text)
	case protocol.CategoryDebug, protocol.CategoryStdout:
		s.logger.Debug("notification", "category", category, "msg", text)
	default:
		s.logger.Info("notification", "category", category, "msg", text)
	}
}

func (s *LogSink) NotifyProgress(current, total int) {
	s.logger.Debug("progress", "current", current, "total", total)
}

// Multi fans notifications out to every sink in order.
func Multi(sinks ...Sink) Sink {
	out := make(multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

type multi []Sink

func (m multi) Notify(category, text string) {
	for _, s := range m {
		s.Notify(category, text)
	}
}

func (m multi) NotifyProgress(current, total int) {
	for _, s := range m {
		s.NotifyProgress(current, total)
	}
}

// Record is one captured notification.
type Record struct {
	Category string
	Text     string
	Current  int
	Total    int
}

// Recorder keeps every notification in memory, in order.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func (r *Recorder) Notify(category, text string) {
	r.mu.Lock()
	r.records = append(r.records, Record{Category: category, Text: text})
	r.mu.Unlock()
}

func (r *Recorder) NotifyProgress(current, total int) {
	r.mu.Lock()
	r.records = append(r.records, Record{Category: protocol.CategoryProgress, Current: current, Total: total})
	r.mu.Unlock()
}

// Records returns a copy of everything captured so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record(nil), r.records...)
}

// Category returns the captured notifications of one category.
func (r *Recorder) Category(category string) []Record {
	var out []Record
	for _, rec := range r.Records() {
		if rec.Category == category {
			out = append(out, rec)
		}
	}
	return out
}
