package tui

import (
	"fmt"
	"strings"

	"agentos-cli/internal/app"

	"github.com/charmbracelet/lipgloss"
)

// maxActivityLines caps the activity panel so long orchestration turns do not
// push the input off screen.
const maxActivityLines = 6

func (m *Model) renderActivity(snap app.State) string {
	if len(snap.ActivityLog) == 0 {
		return ""
	}

	events := snap.ActivityLog
	if len(events) > maxActivityLines {
		events = events[len(events)-maxActivityLines:]
	}

	var b strings.Builder
	b.WriteString(activityTitleStyle.Render("activity · " + strings.Join(snap.ActiveAgents, ", ")))
	b.WriteString("\n")
	for _, ev := range events {
		b.WriteString(activityLineStyle.Render(formatActivityLine(ev)))
		b.WriteString("\n")
	}
	return activityPanelStyle.Width(m.width - 4).Render(strings.TrimRight(b.String(), "\n"))
}

func formatActivityLine(ev app.ActivityEvent) string {
	switch ev.Type {
	case "thinking":
		return fmt.Sprintf("… %s is thinking", ev.AgentName)
	case "tool_call":
		line := fmt.Sprintf("→ %s calls %s", ev.AgentName, ev.ToolName)
		if ev.Args != "" {
			line += " " + truncateLine(ev.Args, 60)
		}
		return line
	case "tool_result":
		return fmt.Sprintf("← %s · %s: %s", ev.AgentName, ev.ToolName, truncateLine(ev.Result, 60))
	default:
		return fmt.Sprintf("• %s %s", ev.AgentName, ev.Type)
	}
}

func truncateLine(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func (m *Model) renderWorkflow(snap app.State) string {
	wf := snap.PendingWorkflow
	if wf == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(workflowTitleStyle.Render("plan: " + wf.PlanName))
	b.WriteString("\n")
	if wf.Description != "" {
		b.WriteString(mutedStyle.Render(wf.Description))
		b.WriteString("\n")
	}
	for i, step := range wf.Steps {
		who := step.AgentName
		if who == "" {
			who = step.AgentID
		}
		b.WriteString(fmt.Sprintf("  %d. %s — %s\n", i+1, who, step.Task))
	}
	b.WriteString(mutedStyle.Render("ctrl+y run · esc dismiss"))
	return workflowPanelStyle.Width(m.width - 4).Render(strings.TrimRight(b.String(), "\n"))
}

var (
	activityTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWarn))
	activityLineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	activityPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color(colorBorder)).
				Padding(0, 1)

	workflowTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAssistant))
	workflowPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(lipgloss.Color(colorAssistant)).
				Padding(0, 1)
)
