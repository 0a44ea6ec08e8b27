// Package main provides the llm-terminal CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ferdousbhai/llm-terminal/internal/agent"
	"github.com/ferdousbhai/llm-terminal/internal/config"
	"github.com/ferdousbhai/llm-terminal/internal/logging"
	"github.com/ferdousbhai/llm-terminal/internal/mcp"
	"github.com/ferdousbhai/llm-terminal/internal/provider"
	"github.com/ferdousbhai/llm-terminal/internal/tui"
	"github.com/ferdousbhai/llm-terminal/pkg/llm"
)

var version = "0.1.0"

var (
	flagConfig string
	flagDebug  bool

	cfg      *config.Config
	logger   *log.Logger
	closeLog func() error
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "llm-terminal",
		Short:   "Chat with LLMs and their tools from the terminal",
		Version: version,
		Long: `llm-terminal is a terminal chat client for OpenAI, Anthropic, and
Gemini models with MCP tool-server support.

Run without arguments to start the interactive chat. Use 'ask' for a
one-shot prompt, and 'servers' to manage tool servers.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg = config.Load(flagConfig)
			logger, closeLog = logging.Setup(config.DataDir(), flagDebug)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if closeLog != nil {
				closeLog()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, factory, err := buildRegistry()
			if err != nil {
				return err
			}

			manager := mcp.NewManager(logger)
			defer manager.Close()
			connectServers(manager)

			ag := agent.New(registry, manager, cfg, logger)
			return tui.Run(cfg, registry, factory, manager, ag, logger)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		askCmd(),
		serversCmd(),
		modelsCmd(),
		configCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildRegistry() (*llm.Registry, *provider.Factory, error) {
	factory := provider.NewFactory()
	registry, err := factory.KeyedRegistry(func(t provider.Type) (string, string) {
		return cfg.APIKey(string(t)), cfg.BaseURL(string(t))
	})
	if err != nil {
		return nil, nil, err
	}
	return registry, factory, nil
}

// connectServers brings up the enabled tool servers, reporting failures
// without blocking startup on any one of them.
func connectServers(manager *mcp.Manager) {
	servers := cfg.EnabledServers()
	if len(servers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for name, err := range manager.ConnectAll(ctx, servers) {
		fmt.Fprintf(os.Stderr, "warning: tool server %s: %v\n", name, err)
	}
}
