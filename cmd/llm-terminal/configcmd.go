package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(configShowCmd(), configPathCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("%s %s\n", color.CyanString("model:"), cfg.Model)
			fmt.Printf("%s %s\n", color.CyanString("system_prompt:"), cfg.SystemPrompt)
			fmt.Printf("%s %d\n", color.CyanString("max_tool_turns:"), cfg.MaxToolTurns)

			fmt.Println(color.CyanString("providers:"))
			for name, pc := range cfg.Providers {
				key := color.HiBlackString("unset")
				if pc.APIKey != "" {
					key = redactKey(pc.APIKey)
				}
				line := fmt.Sprintf("  %s: key %s", name, key)
				if pc.BaseURL != "" {
					line += ", base_url " + pc.BaseURL
				}
				fmt.Println(line)
			}

			fmt.Println(color.CyanString("servers:"))
			for _, sc := range cfg.Servers {
				state := "disabled"
				if sc.Enabled {
					state = "enabled"
				}
				fmt.Printf("  %s (%s): %s %s\n", sc.Name, state, sc.Command, strings.Join(sc.Args, " "))
			}
			return nil
		},
	}
}

func configPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(cfg.Path())
		},
	}
}

// redactKey shows just enough of a key to recognize it.
func redactKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
