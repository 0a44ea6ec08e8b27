package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/ferdousbhai/llm-terminal/internal/agent"
	"github.com/ferdousbhai/llm-terminal/internal/config"
	"github.com/ferdousbhai/llm-terminal/internal/mcp"
	"github.com/ferdousbhai/llm-terminal/internal/provider"
	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

// Run starts the interactive chat and blocks until the user quits.
func Run(cfg *config.Config, registry *llm.Registry, factory *provider.Factory, manager *mcp.Manager, ag *agent.Agent, logger *log.Logger) error {
	worker := agent.NewWorker(ag)
	defer worker.Close()

	model := NewChat(cfg, registry, factory, manager, ag, worker, logger)

	p := tea.NewProgram(model, tea.WithAltScreen())

	// The worker sink sends through the program, so the handle has to be
	// visible to model copies before the first Submit.
	model.shared.program = p

	_, err := p.Run()
	return err
}
