package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ferdousbhai/llm-terminal/internal/agent"
	"github.com/ferdousbhai/llm-terminal/internal/domain"
	"github.com/ferdousbhai/llm-terminal/internal/mcp"
)

const timeRounding = 10 * time.Millisecond

func askCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "ask \"prompt\"",
		Short: "Run a one-shot prompt without the TUI",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if model != "" {
				cfg.Model = model
			}
			return runAsk(strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Model to use (provider:model)")
	return cmd
}

func runAsk(prompt string) error {
	registry, _, err := buildRegistry()
	if err != nil {
		return err
	}

	manager := mcp.NewManager(logger)
	defer manager.Close()
	connectServers(manager)

	ag := agent.New(registry, manager, cfg, logger)

	// Ctrl+C aborts the in-flight run instead of killing the process hard
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	fmt.Println(color.HiBlackString("%s %s", cfg.Model, rule()))

	events, err := ag.Run(ctx, prompt)
	if err != nil {
		return err
	}

	for event := range events {
		switch event.Type {
		case domain.StreamEventText:
			fmt.Print(event.Content)

		case domain.StreamEventThinking:
			fmt.Print(color.HiBlackString(event.Content))

		case domain.StreamEventToolCall:
			if tc, ok := event.Part.(domain.ToolCallPart); ok {
				fmt.Printf("\n%s %s\n", color.CyanString("▶ %s", tc.Name), color.HiBlackString(formatCallArgs(tc.Args)))
			}

		case domain.StreamEventToolDone:
			if tc, ok := event.Part.(domain.ToolCallPart); ok {
				if tc.Error != "" {
					fmt.Println(color.RedString("  ✗ %s", tc.Error))
				} else {
					fmt.Println(color.GreenString("  ✓ %s", tc.Duration.Round(timeRounding)))
				}
			}

		case domain.StreamEventError:
			return event.Error

		case domain.StreamEventDone:
			fmt.Println()
		}
	}
	return nil
}

func formatCallArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(args))
	for k, v := range args {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, v))
	}
	s := strings.Join(pairs, " ")
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}

// rule draws a separator sized to the terminal.
func rule() string {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	n := width - len(cfg.Model) - 2
	if n < 4 {
		n = 4
	}
	return strings.Repeat("─", n)
}
