package watch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/convhost/internal/events"
	"github.com/mattjoyce/convhost/internal/protocol"
)

const progressBarWidth = 30

// ConversionState follows the worker through notifications: one conversion
// runs between a "start" and a "done" status.
type ConversionState struct {
	Running   bool
	StartedAt time.Time
	Current   int
	Total     int
	LastLine  string

	Completed int
	Errors    int
	Dropped   int
	LastError string
}

// apply folds one hub event into the state.
func (c *ConversionState) apply(e events.Event) {
	switch {
	case e.Type == events.TypeProgress:
		var p protocol.Progress
		if json.Unmarshal(e.Data, &p) == nil {
			c.Current, c.Total = p.Current, p.Total
		}
	case e.Type == events.TypeDropped:
		c.Dropped++
	case strings.HasPrefix(e.Type, events.TypeNotifyPrefix):
		var n protocol.Notification
		if json.Unmarshal(e.Data, &n) != nil {
			return
		}
		switch n.Category {
		case protocol.CategoryStatus:
			switch n.Msg {
			case "start":
				c.Running = true
				c.StartedAt = e.At
				c.Current, c.Total = 0, 0
				c.LastLine = ""
			case "done":
				c.Running = false
				c.Completed++
			}
		case protocol.CategoryError:
			c.Errors++
			c.LastError = n.Msg
		case protocol.CategoryStdout:
			c.LastLine = n.Msg
		}
	}
}

func renderConversion(c ConversionState, spin spinner.Model, theme Theme, width int) string {
	innerWidth := width - 4

	var status string
	if c.Running {
		elapsed := time.Since(c.StartedAt).Round(time.Second)
		status = fmt.Sprintf(" %s %s  %s", spin.View(), theme.StatusRunning.Render("CONVERTING"), theme.Dim.Render(elapsed.String()))
	} else {
		status = " " + theme.StatusQueued.Render("IDLE")
	}

	lines := []string{
		theme.Title.Render("CONVERSION"),
		status,
		" " + renderProgressBar(c.Current, c.Total, theme),
	}
	if c.LastLine != "" {
		lines = append(lines, " "+theme.Dim.Render(truncate(c.LastLine, innerWidth-4)))
	}
	lines = append(lines, fmt.Sprintf(" Completed: %s  Errors: %s  Dropped: %s",
		theme.StatusOK.Render(fmt.Sprintf("%d", c.Completed)),
		countStyle(c.Errors, theme).Render(fmt.Sprintf("%d", c.Errors)),
		countStyle(c.Dropped, theme).Render(fmt.Sprintf("%d", c.Dropped)),
	))
	if c.LastError != "" {
		lines = append(lines, " "+theme.StatusFailed.Render("Last error: "+truncate(c.LastError, innerWidth-16)))
	}

	return theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderProgressBar(current, total int, theme Theme) string {
	if total <= 0 {
		return theme.Dim.Render("page -/-")
	}
	current = min(max(current, 0), total)
	filled := current * progressBarWidth / total
	bar := theme.Progress.Render(strings.Repeat("█", filled)) +
		theme.TickerInactive.Render(strings.Repeat("░", progressBarWidth-filled))
	return fmt.Sprintf("%s page %d/%d", bar, current, total)
}

func countStyle(n int, theme Theme) lipgloss.Style {
	if n > 0 {
		return theme.StatusFailed
	}
	return theme.Dim
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
