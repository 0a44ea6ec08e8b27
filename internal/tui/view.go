package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m ChatModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return fmt.Sprintf("\n  %s starting...", m.spinner.View())
	}

	switch m.mode {
	case modeSettings:
		return m.overlay(m.settings.view())
	case modeServers:
		return m.overlay(m.serversView())
	case modeConfirmNew:
		return m.overlay(m.confirmNewView())
	}

	var b strings.Builder

	header := titleStyle.Render("llm-terminal") + "  " + dimStyle.Render(m.cfg.Model)
	b.WriteString(header + "\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	b.WriteString(m.renderStatus() + "\n")
	b.WriteString(m.renderInput())

	return b.String()
}

func (m ChatModel) overlay(content string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m ChatModel) confirmNewView() string {
	body := titleStyle.Render("New Conversation") + "\n\n" +
		"Discard the current conversation?\n\n" +
		dimStyle.Render("y: confirm │ n/Esc: cancel")
	return modalStyle.Render(body)
}

func (m ChatModel) renderStatus() string {
	var parts []string

	if m.usage.InputTokens > 0 || m.usage.OutputTokens > 0 {
		parts = append(parts, fmt.Sprintf("In:%d Out:%d", m.usage.InputTokens, m.usage.OutputTokens))
	}

	if sessions := m.manager.Sessions(); len(sessions) > 0 {
		tools := 0
		for _, s := range sessions {
			tools += len(s.Tools())
		}
		parts = append(parts, fmt.Sprintf("Servers:%d Tools:%d", len(sessions), tools))
	}

	if m.flash != "" {
		parts = append(parts, m.flash)
	}

	if m.active {
		parts = append(parts, "Esc: stop │ Ctrl+C: quit")
	} else {
		parts = append(parts, "Enter: send │ Ctrl+N: new │ Ctrl+S: settings │ Ctrl+T: servers")
	}

	return statusStyle.Width(m.width).Render(strings.Join(parts, " │ "))
}

func (m ChatModel) renderInput() string {
	if m.active {
		return fmt.Sprintf("  %s thinking...", m.spinner.View())
	}
	if m.input.Focused() {
		return focusedInputStyle.Width(m.width - 4).Render(m.input.View())
	}
	return inputBorderStyle.Width(m.width - 4).Render(m.input.View())
}
