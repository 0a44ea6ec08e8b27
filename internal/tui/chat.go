// Package tui implements the interactive Bubble Tea chat interface.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/ferdousbhai/llm-terminal/internal/agent"
	"github.com/ferdousbhai/llm-terminal/internal/config"
	"github.com/ferdousbhai/llm-terminal/internal/domain"
	"github.com/ferdousbhai/llm-terminal/internal/mcp"
	"github.com/ferdousbhai/llm-terminal/internal/provider"
	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

type mode int

const (
	modeChat mode = iota
	modeSettings
	modeServers
	modeConfirmNew
)

// sharedState survives model copies. The transcript and program handle
// are mutated from Update and read from View, so they live behind one
// pointer instead of being copied with the model.
type sharedState struct {
	program    *tea.Program
	transcript *transcript
}

// ChatModel is the top-level Bubble Tea model.
type ChatModel struct {
	cfg      *config.Config
	registry *llm.Registry
	factory  *provider.Factory
	manager  *mcp.Manager
	ag       *agent.Agent
	worker   *agent.Worker
	logger   *log.Logger

	shared   *sharedState
	renderer *glamour.TermRenderer

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	mode     mode
	settings settingsModel
	servers  serversModel

	width    int
	height   int
	ready    bool
	active   bool
	quitting bool

	usage domain.Usage
	flash string
}

// Messages delivered through program.Send or command results.
type (
	streamEventMsg     domain.StreamEvent
	verifyResultMsg    struct{ err error }
	serverConnectedMsg struct {
		name string
		err  error
	}
)

func NewChat(cfg *config.Config, registry *llm.Registry, factory *provider.Factory, manager *mcp.Manager, ag *agent.Agent, worker *agent.Worker, logger *log.Logger) ChatModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textarea.New()
	ti.Placeholder = "Ask anything... (Enter to send)"
	ti.CharLimit = 8000
	ti.SetWidth(80)
	ti.SetHeight(3)
	ti.ShowLineNumbers = false
	ti.Focus()

	return ChatModel{
		cfg:      cfg,
		registry: registry,
		factory:  factory,
		manager:  manager,
		ag:       ag,
		worker:   worker,
		logger:   logger,
		shared:   &sharedState{transcript: newTranscript()},
		spinner:  s,
		input:    ti,
		settings: newSettingsModel(cfg, registry),
		servers:  newServersModel(cfg),
	}
}

func (m ChatModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg)

	case streamEventMsg:
		return m.handleStreamEvent(domain.StreamEvent(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case verifyResultMsg:
		m.settings.handleVerifyResult(msg.err)
		return m, nil

	case serverConnectedMsg:
		if msg.err != nil {
			m.servers.status = errorStyle.Render(fmt.Sprintf("✗ %s: %v", msg.name, msg.err))
		} else {
			m.servers.status = successStyle.Render(fmt.Sprintf("✓ %s connected", msg.name))
		}
		return m, nil
	}

	switch m.mode {
	case modeSettings:
		return m.updateSettings(msg)
	case modeServers:
		return m.updateServers(msg)
	case modeConfirmNew:
		return m.updateConfirmNew(msg)
	}
	return m.updateChat(msg)
}

func (m ChatModel) updateChat(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			m.worker.Stop()
			m.quitting = true
			return m, tea.Quit

		case "esc":
			if m.active {
				m.worker.Stop()
				return m, nil
			}
			m.quitting = true
			return m, tea.Quit

		case "enter":
			return m.handleSubmit()

		case "alt+enter", "ctrl+j":
			if !m.active {
				m.input.SetValue(m.input.Value() + "\n")
			}
			return m, nil

		case "ctrl+n":
			if !m.active {
				m.mode = modeConfirmNew
			}
			return m, nil

		case "ctrl+s":
			if !m.active {
				m.mode = modeSettings
				m.settings.open()
			}
			return m, nil

		case "ctrl+t":
			if !m.active {
				m.mode = modeServers
				m.servers.open()
			}
			return m, nil

		case "pgup", "pgdown", "ctrl+u", "ctrl+d":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd

		case "up", "down":
			if m.active {
				var cmd tea.Cmd
				m.viewport, cmd = m.viewport.Update(msg)
				return m, cmd
			}
		}
	}

	if !m.active {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m ChatModel) handleSubmit() (tea.Model, tea.Cmd) {
	prompt := strings.TrimSpace(m.input.Value())
	if m.active || prompt == "" {
		return m, nil
	}

	m.input.SetValue("")
	m.active = true
	m.flash = ""
	m.shared.transcript.addUser(prompt)
	m.syncViewport()

	program := m.shared.program
	sink := func(e domain.StreamEvent) {
		if program != nil {
			program.Send(streamEventMsg(e))
		}
	}
	if err := m.worker.Submit(prompt, sink); err != nil {
		m.logger.Warn("prompt submit rejected", "err", err)
		m.active = false
		m.flash = errorStyle.Render(err.Error())
		return m, nil
	}
	return m, m.spinner.Tick
}

func (m ChatModel) handleStreamEvent(event domain.StreamEvent) (tea.Model, tea.Cmd) {
	t := m.shared.transcript
	switch event.Type {
	case domain.StreamEventText:
		t.appendText(event.Content)

	case domain.StreamEventThinking:
		t.appendReasoning(event.Content)

	case domain.StreamEventToolCall:
		if tc, ok := event.Part.(domain.ToolCallPart); ok {
			t.startTool(tc)
		}

	case domain.StreamEventToolDone:
		if tc, ok := event.Part.(domain.ToolCallPart); ok {
			t.finishTool(tc)
		}

	case domain.StreamEventUsage:
		if event.Usage != nil {
			m.usage.Add(*event.Usage)
		}

	case domain.StreamEventError:
		t.setError(event.Error)
		m.active = false

	case domain.StreamEventDone:
		t.finishTurn(m.renderer)
		m.active = false
	}

	m.syncViewport()
	return m, nil
}

func (m ChatModel) updateConfirmNew(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "y", "enter":
			m.ag.NewConversation()
			m.shared.transcript.reset()
			m.usage = domain.Usage{}
			m.mode = modeChat
			m.syncViewport()
		case "n", "esc", "ctrl+c":
			m.mode = modeChat
		}
	}
	return m, nil
}

func (m ChatModel) handleWindowSize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	headerHeight := 2
	statusHeight := 1
	inputHeight := 5
	vpHeight := msg.Height - headerHeight - statusHeight - inputHeight
	if vpHeight < 3 {
		vpHeight = 3
	}

	if !m.ready {
		m.viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
	}

	m.input.SetWidth(msg.Width - 4)

	wrap := msg.Width - 4
	if wrap < 20 {
		wrap = 20
	}
	if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wrap)); err == nil {
		m.renderer = r
	}

	m.syncViewport()
	return m, nil
}

func (m *ChatModel) syncViewport() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.shared.transcript.render())
	m.viewport.GotoBottom()
}

// connectServer spawns one tool server off the UI goroutine.
func (m ChatModel) connectServer(sc domain.ServerConfig) tea.Cmd {
	manager := m.manager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return serverConnectedMsg{name: sc.Name, err: manager.Connect(ctx, sc)}
	}
}
