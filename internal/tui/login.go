package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbletea"
)

type loginModel struct {
	phone    textinput.Model
	password textinput.Model
	focus    int
	err      string
}

func newLoginModel() loginModel {
	phone := textinput.New()
	phone.Placeholder = "phone"
	phone.CharLimit = 32
	phone.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 64
	password.EchoMode = textinput.EchoPassword

	return loginModel{phone: phone, password: password}
}

func (m *Model) openLogin() {
	m.login = newLoginModel()
	m.view = viewLogin
}

func (m *Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "shift+tab", "up", "down":
		m.login.focus = (m.login.focus + 1) % 2
		if m.login.focus == 0 {
			m.login.phone.Focus()
			m.login.password.Blur()
		} else {
			m.login.phone.Blur()
			m.login.password.Focus()
		}
		return m, nil

	case "enter":
		phone := strings.TrimSpace(m.login.phone.Value())
		password := m.login.password.Value()
		if phone == "" || password == "" {
			m.login.err = "phone and password are required"
			return m, nil
		}
		m.busy++
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			resp, err := m.client.Login(ctx, phone, password)
			return loginResultMsg{resp: resp, err: err}
		}
	}

	var cmd tea.Cmd
	if m.login.focus == 0 {
		m.login.phone, cmd = m.login.phone.Update(msg)
	} else {
		m.login.password, cmd = m.login.password.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleLoginResult(msg loginResultMsg) (tea.Model, tea.Cmd) {
	m.busy--
	if msg.err != nil {
		m.login.err = msg.err.Error()
		return m, nil
	}

	m.store.SetAuth(msg.resp.Token, msg.resp.User)
	m.view = viewChat
	m.busy++
	return m, m.runOp(func(ctx context.Context) {
		m.store.LoadWorkspaces(ctx)
	})
}

func (m *Model) loginView() string {
	var b strings.Builder
	b.WriteString(helpTitleStyle.Render("sign in to agentos"))
	b.WriteString("\n\n")
	b.WriteString("  " + m.login.phone.View())
	b.WriteString("\n")
	b.WriteString("  " + m.login.password.View())
	b.WriteString("\n\n")
	if m.login.err != "" {
		b.WriteString("  " + statusStyle.Render(m.login.err))
		b.WriteString("\n")
	}
	b.WriteString(helpFooterStyle.Render("tab switch field | enter sign in | ctrl+c quit"))
	return b.String()
}
