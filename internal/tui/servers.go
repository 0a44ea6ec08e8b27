package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ferdousbhai/llm-terminal/internal/config"
	"github.com/ferdousbhai/llm-terminal/internal/domain"
)

const (
	serverFieldName = iota
	serverFieldCommand
	serverFieldArgs
	serverFieldEnv
	serverFieldCount
)

// serversModel is the tool-server manager: a list with enable toggles
// plus an add/edit form.
type serversModel struct {
	cfg *config.Config

	editing bool
	cursor  int
	editID  string
	inputs  []textinput.Model
	focus   int
	status  string
}

func newServersModel(cfg *config.Config) serversModel {
	labels := []string{"Name", "Command", "Args (space separated)", "Env (KEY=VALUE ...)"}
	inputs := make([]textinput.Model, serverFieldCount)
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = labels[i]
		ti.CharLimit = 500
		ti.Width = 50
		inputs[i] = ti
	}
	return serversModel{cfg: cfg, inputs: inputs}
}

func (s *serversModel) open() {
	s.editing = false
	s.cursor = 0
	s.status = ""
}

func (s *serversModel) openForm(sc domain.ServerConfig) {
	s.editing = true
	s.editID = sc.ID
	s.inputs[serverFieldName].SetValue(sc.Name)
	s.inputs[serverFieldCommand].SetValue(sc.Command)
	s.inputs[serverFieldArgs].SetValue(strings.Join(sc.Args, " "))
	s.inputs[serverFieldEnv].SetValue(formatEnv(sc.Env))
	s.setFocus(serverFieldName)
	s.status = ""
}

func (s *serversModel) setFocus(focus int) {
	s.focus = focus
	for i := range s.inputs {
		if i == focus {
			s.inputs[i].Focus()
		} else {
			s.inputs[i].Blur()
		}
	}
}

func (m ChatModel) updateServers(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.servers.editing {
		return m.updateServerForm(msg)
	}
	return m.updateServerList(msg)
}

func (m ChatModel) updateServerList(msg tea.Msg) (tea.Model, tea.Cmd) {
	s := &m.servers

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "esc", "ctrl+c", "ctrl+t":
		m.mode = modeChat
		return m, nil

	case "up", "k":
		if s.cursor > 0 {
			s.cursor--
		}

	case "down", "j":
		if s.cursor < len(m.cfg.Servers)-1 {
			s.cursor++
		}

	case " ", "enter":
		if s.cursor < len(m.cfg.Servers) {
			return m.toggleServer(m.cfg.Servers[s.cursor])
		}

	case "a":
		s.openForm(domain.ServerConfig{})
		s.editID = ""

	case "e":
		if s.cursor < len(m.cfg.Servers) {
			s.openForm(m.cfg.Servers[s.cursor])
		}

	case "d":
		if s.cursor < len(m.cfg.Servers) {
			return m.deleteServer(m.cfg.Servers[s.cursor])
		}
	}
	return m, nil
}

func (m ChatModel) toggleServer(sc domain.ServerConfig) (tea.Model, tea.Cmd) {
	s := &m.servers
	enabled := !sc.Enabled
	if err := m.cfg.SetServerEnabled(sc.ID, enabled); err != nil {
		s.status = errorStyle.Render(err.Error())
		return m, nil
	}
	if err := m.cfg.Save(); err != nil {
		s.status = errorStyle.Render(err.Error())
		return m, nil
	}

	if enabled {
		sc.Enabled = true
		s.status = thinkingStyle.Render("connecting " + sc.Name + "...")
		return m, m.connectServer(sc)
	}

	m.manager.Disconnect(sc.ID)
	s.status = dimStyle.Render(sc.Name + " disabled")
	return m, nil
}

func (m ChatModel) deleteServer(sc domain.ServerConfig) (tea.Model, tea.Cmd) {
	s := &m.servers
	m.manager.Disconnect(sc.ID)
	if err := m.cfg.RemoveServer(sc.ID); err != nil {
		s.status = errorStyle.Render(err.Error())
		return m, nil
	}
	if err := m.cfg.Save(); err != nil {
		s.status = errorStyle.Render(err.Error())
		return m, nil
	}
	if s.cursor >= len(m.cfg.Servers) && s.cursor > 0 {
		s.cursor--
	}
	s.status = dimStyle.Render(sc.Name + " removed")
	return m, nil
}

func (m ChatModel) updateServerForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	s := &m.servers

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "ctrl+c":
			s.editing = false
			return m, nil

		case "tab", "down":
			s.setFocus((s.focus + 1) % serverFieldCount)
			return m, nil

		case "shift+tab", "up":
			s.setFocus((s.focus + serverFieldCount - 1) % serverFieldCount)
			return m, nil

		case "enter":
			return m.saveServerForm()
		}
	}

	var cmd tea.Cmd
	s.inputs[s.focus], cmd = s.inputs[s.focus].Update(msg)
	return m, cmd
}

func (m ChatModel) saveServerForm() (tea.Model, tea.Cmd) {
	s := &m.servers

	name := strings.TrimSpace(s.inputs[serverFieldName].Value())
	command := strings.TrimSpace(s.inputs[serverFieldCommand].Value())
	if name == "" || command == "" {
		s.status = errorStyle.Render("name and command are required")
		return m, nil
	}

	env, err := parseEnv(s.inputs[serverFieldEnv].Value())
	if err != nil {
		s.status = errorStyle.Render(err.Error())
		return m, nil
	}
	args := strings.Fields(s.inputs[serverFieldArgs].Value())

	var sc domain.ServerConfig
	if s.editID == "" {
		sc = domain.NewServerConfig(name, command, args)
		sc.Env = env
		if err := m.cfg.AddServer(sc); err != nil {
			s.status = errorStyle.Render(err.Error())
			return m, nil
		}
	} else {
		sc = domain.ServerConfig{
			ID:      s.editID,
			Name:    name,
			Command: command,
			Args:    args,
			Env:     env,
			Enabled: true,
		}
		m.manager.Disconnect(sc.ID)
		if err := m.cfg.UpdateServer(sc); err != nil {
			s.status = errorStyle.Render(err.Error())
			return m, nil
		}
	}

	if err := m.cfg.Save(); err != nil {
		s.status = errorStyle.Render(err.Error())
		return m, nil
	}

	s.editing = false
	s.status = thinkingStyle.Render("connecting " + sc.Name + "...")
	return m, m.connectServer(sc)
}

func (m ChatModel) serversView() string {
	s := m.servers
	if s.editing {
		return s.formView()
	}

	connected := make(map[string]bool)
	for _, sess := range m.manager.Sessions() {
		connected[sess.ServerID] = true
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Tool Servers") + "\n\n")

	if len(m.cfg.Servers) == 0 {
		b.WriteString(dimStyle.Render("No servers configured. Press 'a' to add one.") + "\n")
	}
	for i, sc := range m.cfg.Servers {
		mark := "  "
		if i == s.cursor {
			mark = selectedStyle.Render("› ")
		}
		state := dimStyle.Render("○ off")
		if sc.Enabled {
			if connected[sc.ID] {
				state = successStyle.Render("● connected")
			} else {
				state = errorStyle.Render("● not connected")
			}
		}
		b.WriteString(fmt.Sprintf("%s%-20s %s  %s\n",
			mark, sc.Name, state, dimStyle.Render(sc.Command+" "+strings.Join(sc.Args, " "))))
	}

	b.WriteString("\n" + dimStyle.Render("Space: toggle │ a: add │ e: edit │ d: delete │ Esc: close"))
	if s.status != "" {
		b.WriteString("\n\n" + s.status)
	}
	return modalStyle.Render(b.String())
}

func (s serversModel) formView() string {
	title := "Add Server"
	if s.editID != "" {
		title = "Edit Server"
	}

	labels := []string{"Name   ", "Command", "Args   ", "Env    "}
	var b strings.Builder
	b.WriteString(titleStyle.Render(title) + "\n\n")
	for i, input := range s.inputs {
		mark := "  "
		if i == s.focus {
			mark = selectedStyle.Render("› ")
		}
		b.WriteString(mark + labelStyle.Render(labels[i]+" ") + input.View() + "\n\n")
	}
	b.WriteString(dimStyle.Render("Tab: next field │ Enter: save │ Esc: back"))
	if s.status != "" {
		b.WriteString("\n\n" + s.status)
	}
	return modalStyle.Render(b.String())
}

func formatEnv(env map[string]string) string {
	pairs := make([]string, 0, len(env))
	for k, v := range env {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, " ")
}

// parseEnv splits "KEY=VALUE KEY2=VALUE2" into a map.
func parseEnv(s string) (map[string]string, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid env entry %q, want KEY=VALUE", f)
		}
		env[k] = v
	}
	return env, nil
}
