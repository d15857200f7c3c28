package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

type keyMap struct {
	Quit          key.Binding
	Send          key.Binding
	Help          key.Binding
	NextAgent     key.Binding
	NextGroup     key.Binding
	NextWorkspace key.Binding
	NewSession    key.Binding
	Sessions      key.Binding
	ToggleMode    key.Binding
	Approve       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send message"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h"),
			key.WithHelp("ctrl+h", "toggle help"),
		),
		NextAgent: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next agent"),
		),
		NextGroup: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "next group"),
		),
		NextWorkspace: key.NewBinding(
			key.WithKeys("ctrl+w"),
			key.WithHelp("ctrl+w", "next workspace"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new session"),
		),
		Sessions: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "resume session"),
		),
		ToggleMode: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("ctrl+t", "toggle workflow mode"),
		),
		Approve: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "run pending workflow"),
		),
	}
}

func (m *Model) helpView() string {
	var b strings.Builder

	b.WriteString(helpTitleStyle.Render("agentos help"))
	b.WriteString("\n\n")

	b.WriteString(helpSectionStyle.Render("chat"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s  send message\n", helpKeyStyle.Render("enter")))
	b.WriteString(fmt.Sprintf("  %s  switch to the next agent\n", helpKeyStyle.Render("tab")))
	b.WriteString(fmt.Sprintf("  %s  switch to the next group\n", helpKeyStyle.Render("shift+tab")))
	b.WriteString(fmt.Sprintf("  %s  switch workspace\n", helpKeyStyle.Render("ctrl+w")))

	b.WriteString("\n")
	b.WriteString(helpSectionStyle.Render("sessions"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s  start a new session\n", helpKeyStyle.Render("ctrl+n")))
	b.WriteString(fmt.Sprintf("  %s  resume a saved session\n", helpKeyStyle.Render("ctrl+r")))

	b.WriteString("\n")
	b.WriteString(helpSectionStyle.Render("workflows"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s  toggle legacy/workflow chat mode\n", helpKeyStyle.Render("ctrl+t")))
	b.WriteString(fmt.Sprintf("  %s  run the pending plan\n", helpKeyStyle.Render("ctrl+y")))
	b.WriteString(fmt.Sprintf("  %s  dismiss the pending plan\n", helpKeyStyle.Render("esc")))

	b.WriteString("\n")
	b.WriteString(helpFooterStyle.Render("ctrl+h back | ctrl+c quit"))
	return b.String()
}

var (
	helpTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWarn))
	helpSectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorPrimary))
	helpKeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorUser))
	helpFooterStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorBorder)).Italic(true)
)
