package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agentos-cli/internal/app"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type view int

const (
	viewChat view = iota
	viewSessions
	viewLogin
	viewHelp
)

// Model is the terminal chat client over the shared application store. The
// store owns all conversation state; the model only holds presentation state
// (focus, cursors, window size) and re-reads a snapshot after every commit.
type Model struct {
	store  *app.Store
	client *app.Client

	view    view
	input   textarea.Model
	login   loginModel
	keys    keyMap
	md      *Renderer
	changes <-chan struct{}

	sessions      []app.SessionMeta
	sessionCursor int

	width   int
	height  int
	busy    int
	spinner int
	status  string
}

func New(store *app.Store, client *app.Client) *Model {
	ta := textarea.New()
	ta.Placeholder = "Message the current agent or group..."
	ta.Focus()
	ta.CharLimit = 8000
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.Prompt = "▍ "
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	ta.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))

	return &Model{
		store:   store,
		client:  client,
		input:   ta,
		login:   newLoginModel(),
		keys:    defaultKeyMap(),
		md:      NewRenderer(),
		changes: store.Watch(),
		width:   80,
		height:  24,
	}
}

type (
	storeChangedMsg struct{}
	opDoneMsg       struct{}
	spinMsg         struct{}
	loginResultMsg  struct {
		resp app.AuthResponse
		err  error
	}
)

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForChange(), m.bootstrapCmd(), m.spinCmd())
}

// waitForChange bridges store commits into the bubbletea event loop.
func (m *Model) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-m.changes
		return storeChangedMsg{}
	}
}

func (m *Model) bootstrapCmd() tea.Cmd {
	return m.runOp(func(ctx context.Context) {
		m.store.InitAuth()
		m.store.LoadWorkspaces(ctx)
	})
}

// runOp executes a store operation off the UI goroutine.
func (m *Model) runOp(fn func(ctx context.Context)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		fn(ctx)
		return opDoneMsg{}
	}
}

func (m *Model) spinCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg { return spinMsg{} })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.SetWidth(msg.Width - 8)
		return m, nil

	case storeChangedMsg:
		snap := m.store.Snapshot()
		if snap.ShowLoginModal && m.view != viewLogin {
			m.openLogin()
		}
		return m, m.waitForChange()

	case opDoneMsg:
		// The bootstrap op is not tracked, so guard against underflow.
		if m.busy > 0 {
			m.busy--
		}
		return m, nil

	case spinMsg:
		m.spinner++
		return m, m.spinCmd()

	case loginResultMsg:
		return m.handleLoginResult(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	switch m.view {
	case viewLogin:
		return m.updateLogin(msg)
	case viewSessions:
		return m.updateSessions(msg)
	case viewHelp:
		if key.Matches(msg, m.keys.Help) || msg.String() == "esc" {
			m.view = viewChat
		}
		return m, nil
	}

	snap := m.store.Snapshot()

	switch {
	case key.Matches(msg, m.keys.Help):
		m.view = viewHelp
		return m, nil

	case key.Matches(msg, m.keys.Send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		m.busy++
		return m, m.runOp(func(ctx context.Context) {
			m.store.SendChatMessage(ctx, text)
		})

	case key.Matches(msg, m.keys.NextAgent):
		if id := nextID(agentIDs(snap.Agents), snap.CurrentAgentID); id != "" {
			m.store.SetCurrentAgentID(id)
		}
		return m, nil

	case key.Matches(msg, m.keys.NextGroup):
		ids := groupIDs(snap.Groups)
		if id := nextID(ids, snap.CurrentGroupID); id != "" {
			m.busy++
			return m, m.runOp(func(ctx context.Context) {
				m.store.SetCurrentGroupID(ctx, id)
			})
		}
		return m, nil

	case key.Matches(msg, m.keys.NextWorkspace):
		if id := nextID(workspaceIDs(snap.Workspaces), snap.CurrentWorkspaceID); id != "" {
			m.busy++
			return m, m.runOp(func(ctx context.Context) {
				m.store.SetCurrentWorkspaceID(ctx, id)
			})
		}
		return m, nil

	case key.Matches(msg, m.keys.NewSession):
		m.busy++
		return m, m.runOp(func(ctx context.Context) {
			m.store.StartNewSession(ctx)
		})

	case key.Matches(msg, m.keys.Sessions):
		m.openSessions()
		return m, nil

	case key.Matches(msg, m.keys.ToggleMode):
		if snap.ChatMode == app.ChatModeWorkflow {
			m.store.SetChatMode(app.ChatModeLegacy)
		} else {
			m.store.SetChatMode(app.ChatModeWorkflow)
		}
		return m, nil

	case key.Matches(msg, m.keys.Approve):
		if snap.PendingWorkflow != nil {
			m.busy++
			return m, m.runOp(func(ctx context.Context) {
				m.store.ExecuteWorkflow(ctx)
			})
		}
		return m, nil

	case msg.String() == "esc":
		if snap.PendingWorkflow != nil {
			m.store.CancelWorkflow()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	switch m.view {
	case viewLogin:
		return m.loginView()
	case viewSessions:
		return m.sessionsView()
	case viewHelp:
		return m.helpView()
	}

	snap := m.store.Snapshot()
	var b strings.Builder

	b.WriteString(m.renderHeader(snap))
	b.WriteString("\n")
	b.WriteString(m.renderMessages(snap))

	if panel := m.renderActivity(snap); panel != "" {
		b.WriteString(panel)
		b.WriteString("\n")
	}
	if panel := m.renderWorkflow(snap); panel != "" {
		b.WriteString(panel)
		b.WriteString("\n")
	}

	b.WriteString(inputStyle.Width(m.width - 4).Render(m.input.View()))
	b.WriteString("\n")

	if m.busy > 0 || snap.IsLoading {
		frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
		b.WriteString(loadingStyle.Render(frames[m.spinner%len(frames)] + " Working..."))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(footerStyle.Render("enter send | tab agent | shift+tab group | ctrl+w workspace | ctrl+r sessions | ctrl+h help"))

	return b.String()
}

func (m *Model) renderHeader(snap app.State) string {
	ws := "no workspace"
	for _, w := range snap.Workspaces {
		if w.ID == snap.CurrentWorkspaceID {
			ws = w.Name
		}
	}

	target := "no context"
	if snap.CurrentAgentID != "" {
		for _, a := range snap.Agents {
			if a.ID == snap.CurrentAgentID {
				target = "@" + a.Name
			}
		}
	} else if snap.CurrentGroupID != "" {
		for _, g := range snap.Groups {
			if g.ID == snap.CurrentGroupID {
				target = "#" + g.Name
			}
		}
	}

	mode := ""
	if snap.CurrentGroupID != "" {
		mode = " · " + string(snap.ChatMode)
	}
	user := ""
	if snap.User != nil {
		user = " · " + snap.User.Username
	}
	return headerStyle.Width(m.width - 4).Render(fmt.Sprintf("AgentOS · %s · %s%s%s", ws, target, mode, user))
}

func (m *Model) renderMessages(snap app.State) string {
	persona := ""
	for _, a := range snap.Agents {
		if a.ID == snap.CurrentAgentID {
			persona = a.PersonaMode
		}
	}

	var b strings.Builder
	for _, msg := range snap.Messages {
		switch msg.Role {
		case "user":
			b.WriteString(userLabelStyle.Render("You"))
			b.WriteString("\n")
			b.WriteString(contentStyle.Width(m.width - 4).Render(msg.Content))
		case "assistant":
			name := msg.Name
			if name == "" {
				name = "Assistant"
			}
			b.WriteString(assistantLabelStyle.Render(name))
			b.WriteString("\n")
			parsed := app.ParseMessage(msg.Content, persona)
			b.WriteString(contentStyle.Width(m.width - 4).Render(m.md.Render(parsed.Answer, m.width-8)))
			if parsed.Reasoning != "" {
				b.WriteString("\n")
				b.WriteString(reasoningStyle.Width(m.width - 4).Render("思考: " + parsed.Reasoning))
			}
		default:
			b.WriteString(mutedStyle.Render(msg.Content))
		}
		b.WriteString("\n\n")
	}
	if len(snap.Messages) == 0 {
		b.WriteString(mutedStyle.Render("No messages yet."))
		b.WriteString("\n\n")
	}
	return b.String()
}

// --- list cycling helpers ---

func agentIDs(agents []app.Agent) []string {
	ids := make([]string, 0, len(agents))
	for _, a := range agents {
		ids = append(ids, a.ID)
	}
	return ids
}

func groupIDs(groups []app.Group) []string {
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, g.ID)
	}
	return ids
}

func workspaceIDs(workspaces []app.Workspace) []string {
	ids := make([]string, 0, len(workspaces))
	for _, w := range workspaces {
		ids = append(ids, w.ID)
	}
	return ids
}

// nextID returns the element after current, wrapping around; with no current
// selection it returns the first element.
func nextID(ids []string, current string) string {
	if len(ids) == 0 {
		return ""
	}
	for i, id := range ids {
		if id == current {
			return ids[(i+1)%len(ids)]
		}
	}
	return ids[0]
}

// --- styles ---

const (
	colorMuted     = "#6272A4"
	colorPrimary   = "#BD93F9"
	colorUser      = "#8BE9FD"
	colorAssistant = "#50FA7B"
	colorWarn      = "#FFB86C"
	colorErr       = "#FF5555"
	colorBorder    = "#44475A"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary)).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color(colorBorder))

	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorUser))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorAssistant))
	contentStyle        = lipgloss.NewStyle().PaddingLeft(2)
	reasoningStyle      = lipgloss.NewStyle().PaddingLeft(2).Italic(true).Foreground(lipgloss.Color(colorMuted))
	mutedStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(colorBorder)).
			Padding(0, 1)

	loadingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorPrimary))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWarn))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted)).Italic(true)
)
