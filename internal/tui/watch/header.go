package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/convhost/internal/host"
)

// HealthState tracks host health from /healthz polling.
type HealthState struct {
	Status        string
	UptimeSeconds int64
	Commands      []string
	Queue         host.Stats
	Connected     bool
	LastCheck     time.Time
}

func renderHeader(health HealthState, ticker Ticker, activity Activity, theme Theme, width int) string {
	innerWidth := width - 4

	statusText := theme.StatusOK.Render("HEALTHY")
	if !health.Connected {
		statusText = theme.StatusFailed.Render("CONNECTING")
	} else if health.Status != "ok" && health.Status != "" {
		statusText = theme.StatusFailed.Render("DEGRADED")
	}

	uptime := formatDuration(time.Duration(health.UptimeSeconds) * time.Second)

	lastEventStr := "never"
	if !activity.LastEvent().IsZero() {
		lastEventStr = fmt.Sprintf("%s ago", time.Since(activity.LastEvent()).Round(time.Second))
	}

	tickerStr := theme.Highlight.Render(ticker.Current())
	clock := theme.Dim.Render(time.Now().Format("15:04:05"))
	titleText := fmt.Sprintf(" CONVHOST WATCH %s", tickerStr)

	pad := max(1, innerWidth-lipgloss.Width(titleText)-lipgloss.Width(clock)-4)
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	q := health.Queue
	queueLine := fmt.Sprintf(" %s  ⏱ %s  Queue: %s  Worker: %s",
		statusText,
		uptime,
		renderQueueGauge(q.Depth, q.Capacity, theme),
		workerStyle(q.Worker, theme).Render(orDash(q.Worker)),
	)

	countersLine := fmt.Sprintf(" Accepted: %d  Dropped: %s  Dispatched: %d  Commands: %s",
		q.Accepted,
		droppedStyle(q.Dropped, theme).Render(fmt.Sprintf("%d", q.Dropped)),
		q.Dispatched,
		orDash(strings.Join(health.Commands, ",")),
	)

	activityLine := fmt.Sprintf(" Last event: %s %s", lastEventStr, activity.Render(theme))

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleLine,
		queueLine,
		countersLine,
		activityLine,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

// renderQueueGauge draws one cell per channel slot.
func renderQueueGauge(depth, capacity int, theme Theme) string {
	if capacity <= 0 {
		return "-"
	}
	depth = min(max(depth, 0), capacity)
	style := theme.StatusOK
	if depth == capacity {
		style = theme.StatusFailed
	} else if depth*2 >= capacity {
		style = theme.StatusRunning
	}
	gauge := style.Render(strings.Repeat("▮", depth)) + theme.TickerInactive.Render(strings.Repeat("▯", capacity-depth))
	return fmt.Sprintf("%s %d/%d", gauge, depth, capacity)
}

func workerStyle(state string, theme Theme) lipgloss.Style {
	switch state {
	case "dispatching":
		return theme.StatusRunning
	case "waiting", "idle":
		return theme.StatusOK
	case "stopped":
		return theme.StatusFailed
	default:
		return theme.Dim
	}
}

func droppedStyle(dropped uint64, theme Theme) lipgloss.Style {
	if dropped > 0 {
		return theme.StatusFailed
	}
	return theme.Dim
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
