package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/convhost/internal/events"
)

const (
	eventLogSize  = 50
	eventsVisible = 10
)

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= eventsVisible {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		eventsText,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch e.Type {
	case "notify.error", events.TypeDropped, events.TypeWorkerStopped:
		typeStyle = theme.StatusFailed
	case "notify.status", events.TypeWorkerStarted:
		typeStyle = theme.StatusRunning
	case events.TypeProgress:
		typeStyle = theme.Progress
	default:
		typeStyle = theme.Dim
	}

	typeName := typeStyle.Render(fmt.Sprintf("%-16s", e.Type))
	return fmt.Sprintf("%s %s %s", ts, typeName, extractEventDesc(e))
}

func extractEventDesc(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	if msg, ok := data["msg"].(string); ok {
		return msg
	}

	var parts []string
	if current, ok := data["current"].(float64); ok {
		total, _ := data["total"].(float64)
		parts = append(parts, fmt.Sprintf("page %d of %d", int(current), int(total)))
	}
	if id, ok := data["message_id"].(string); ok {
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, fmt.Sprintf("[%s]", id))
	}
	if n, ok := data["dispatched"].(float64); ok {
		parts = append(parts, fmt.Sprintf("dispatched=%d", int(n)))
	}
	if n, ok := data["capacity"].(float64); ok {
		parts = append(parts, fmt.Sprintf("capacity=%d", int(n)))
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}
	return strings.Join(parts, " ")
}
