package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ferdousbhai/llm-terminal/internal/config"
	"github.com/ferdousbhai/llm-terminal/internal/provider"
	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

const (
	settingsFocusModel = iota
	settingsFocusPrompt
	settingsFocusKey
	settingsFocusCount
)

// settingsModel is the settings form: model picker, system prompt, and
// the API key for the picked model's vendor.
type settingsModel struct {
	cfg      *config.Config
	registry *llm.Registry

	catalog  []string
	modelIdx int
	focus    int

	prompt textinput.Model
	apiKey textinput.Model

	status    string
	verifying bool
}

func newSettingsModel(cfg *config.Config, registry *llm.Registry) settingsModel {
	prompt := textinput.New()
	prompt.Placeholder = "System prompt"
	prompt.CharLimit = 2000
	prompt.Width = 60

	apiKey := textinput.New()
	apiKey.Placeholder = "API key"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.CharLimit = 200
	apiKey.Width = 60

	return settingsModel{
		cfg:      cfg,
		registry: registry,
		prompt:   prompt,
		apiKey:   apiKey,
	}
}

func (s *settingsModel) open() {
	s.catalog = nil
	for _, p := range s.registry.List() {
		for _, model := range p.Models() {
			s.catalog = append(s.catalog, p.ID()+":"+model.ID)
		}
	}

	s.modelIdx = 0
	for i, id := range s.catalog {
		if id == s.cfg.Model {
			s.modelIdx = i
			break
		}
	}

	s.prompt.SetValue(s.cfg.SystemPrompt)
	s.apiKey.SetValue(s.cfg.APIKey(s.selectedProvider()))
	s.status = ""
	s.verifying = false
	s.setFocus(settingsFocusModel)
}

func (s *settingsModel) selectedModel() string {
	if len(s.catalog) == 0 {
		return s.cfg.Model
	}
	return s.catalog[s.modelIdx]
}

func (s *settingsModel) selectedProvider() string {
	providerID, _, err := llm.ParseModelID(s.selectedModel())
	if err != nil {
		return ""
	}
	return providerID
}

func (s *settingsModel) setFocus(focus int) {
	s.focus = focus
	s.prompt.Blur()
	s.apiKey.Blur()
	switch focus {
	case settingsFocusPrompt:
		s.prompt.Focus()
	case settingsFocusKey:
		s.apiKey.Focus()
	}
}

func (s *settingsModel) cycleModel(delta int) {
	if len(s.catalog) == 0 {
		return
	}
	before := s.selectedProvider()
	s.modelIdx = (s.modelIdx + delta + len(s.catalog)) % len(s.catalog)
	if after := s.selectedProvider(); after != before {
		s.apiKey.SetValue(s.cfg.APIKey(after))
	}
}

func (s *settingsModel) handleVerifyResult(err error) {
	s.verifying = false
	if err != nil {
		s.status = errorStyle.Render(fmt.Sprintf("✗ verification failed: %v", err))
	} else {
		s.status = successStyle.Render("✓ key verified")
	}
}

func (m ChatModel) updateSettings(msg tea.Msg) (tea.Model, tea.Cmd) {
	s := &m.settings

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc", "ctrl+c":
			m.mode = modeChat
			return m, nil

		case "tab", "down":
			s.setFocus((s.focus + 1) % settingsFocusCount)
			return m, nil

		case "shift+tab", "up":
			s.setFocus((s.focus + settingsFocusCount - 1) % settingsFocusCount)
			return m, nil

		case "left":
			if s.focus == settingsFocusModel {
				s.cycleModel(-1)
				return m, nil
			}

		case "right":
			if s.focus == settingsFocusModel {
				s.cycleModel(1)
				return m, nil
			}

		case "ctrl+v":
			return m.verifyKey()

		case "enter":
			return m.saveSettings()
		}
	}

	var cmd tea.Cmd
	switch s.focus {
	case settingsFocusPrompt:
		s.prompt, cmd = s.prompt.Update(msg)
	case settingsFocusKey:
		s.apiKey, cmd = s.apiKey.Update(msg)
	}
	return m, cmd
}

func (m ChatModel) saveSettings() (tea.Model, tea.Cmd) {
	s := &m.settings

	m.cfg.Model = s.selectedModel()
	m.cfg.SystemPrompt = s.prompt.Value()

	providerID := s.selectedProvider()
	if key := s.apiKey.Value(); key != "" && providerID != "" {
		m.cfg.SetAPIKey(providerID, key)
		// Swap in a provider built with the new credentials
		p, err := m.factory.Create(provider.Type(providerID),
			provider.WithAPIKey(key),
			provider.WithBaseURL(m.cfg.BaseURL(providerID)))
		if err == nil {
			m.registry.Register(p)
		}
	}

	if err := m.cfg.Save(); err != nil {
		s.status = errorStyle.Render(fmt.Sprintf("✗ save failed: %v", err))
		return m, nil
	}

	m.mode = modeChat
	m.flash = successStyle.Render("settings saved")
	return m, nil
}

func (m ChatModel) verifyKey() (tea.Model, tea.Cmd) {
	s := &m.settings
	providerID := s.selectedProvider()
	key := s.apiKey.Value()
	if providerID == "" || key == "" {
		s.status = errorStyle.Render("enter a key first")
		return m, nil
	}

	s.verifying = true
	s.status = thinkingStyle.Render("verifying...")

	factory := m.factory
	baseURL := m.cfg.BaseURL(providerID)
	return m, func() tea.Msg {
		p, err := factory.Create(provider.Type(providerID),
			provider.WithAPIKey(key),
			provider.WithBaseURL(baseURL))
		if err != nil {
			return verifyResultMsg{err: err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return verifyResultMsg{err: p.Verify(ctx)}
	}
}

func (s settingsModel) view() string {
	focusMark := func(focused bool) string {
		if focused {
			return selectedStyle.Render("› ")
		}
		return "  "
	}

	var model string
	if len(s.catalog) == 0 {
		model = dimStyle.Render("no models available")
	} else {
		model = selectedStyle.Render(s.selectedModel()) + dimStyle.Render("  ←/→ to change")
	}

	body := titleStyle.Render("Settings") + "\n\n" +
		focusMark(s.focus == settingsFocusModel) + labelStyle.Render("Model       ") + model + "\n\n" +
		focusMark(s.focus == settingsFocusPrompt) + labelStyle.Render("Prompt      ") + s.prompt.View() + "\n\n" +
		focusMark(s.focus == settingsFocusKey) + labelStyle.Render("API key     ") + s.apiKey.View() + "\n\n" +
		dimStyle.Render("Tab: next field │ Ctrl+V: verify key │ Enter: save │ Esc: cancel")

	if s.status != "" {
		body += "\n\n" + s.status
	}
	return modalStyle.Render(body)
}
