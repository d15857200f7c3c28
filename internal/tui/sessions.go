package tui

import (
	"fmt"
	"strings"
	"time"

	"agentos-cli/internal/app"

	"github.com/charmbracelet/bubbletea"
)

func (m *Model) openSessions() {
	contextID := m.store.CurrentContextID()
	if contextID == "" {
		m.status = "select an agent or group first"
		return
	}
	m.sessions = m.store.Sessions().ListSessions(contextID)
	m.sessionCursor = 0
	m.view = viewSessions
}

func (m *Model) updateSessions(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.view = viewChat
	case "up", "k":
		if m.sessionCursor > 0 {
			m.sessionCursor--
		}
	case "down", "j":
		if m.sessionCursor < len(m.sessions)-1 {
			m.sessionCursor++
		}
	case "d":
		if m.sessionCursor < len(m.sessions) {
			contextID := m.store.CurrentContextID()
			m.store.Sessions().DeleteSession(contextID, m.sessions[m.sessionCursor].ID)
			m.sessions = m.store.Sessions().ListSessions(contextID)
			if m.sessionCursor >= len(m.sessions) && m.sessionCursor > 0 {
				m.sessionCursor--
			}
		}
	case "enter":
		if m.sessionCursor < len(m.sessions) {
			m.store.SwitchSession(m.sessions[m.sessionCursor].ID)
			m.view = viewChat
		}
	}
	return m, nil
}

func (m *Model) sessionsView() string {
	var b strings.Builder
	b.WriteString(helpTitleStyle.Render("saved sessions"))
	b.WriteString("\n\n")

	if len(m.sessions) == 0 {
		b.WriteString(mutedStyle.Render("No saved sessions for this context."))
		b.WriteString("\n")
	}
	now := time.Now()
	for i, meta := range m.sessions {
		cursor := "  "
		if i == m.sessionCursor {
			cursor = "> "
		}
		b.WriteString(cursor + sessionLabel(meta, now))
		b.WriteString("\n")
		if meta.Preview != "" {
			b.WriteString("    " + mutedStyle.Render(meta.Preview))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpFooterStyle.Render("enter resume | d delete | esc back"))
	return b.String()
}

// sessionLabel is the one-line list entry: title, message count, relative age.
func sessionLabel(meta app.SessionMeta, now time.Time) string {
	return fmt.Sprintf("%s · %d messages · %s", meta.Title, meta.MessageCount, app.FormatRelativeTime(meta.UpdatedAt, now))
}
