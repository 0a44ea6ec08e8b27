package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ferdousbhai/llm-terminal/internal/domain"
)

func serversCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage MCP tool servers",
	}
	cmd.AddCommand(
		serversListCmd(),
		serversAddCmd(),
		serversRemoveCmd(),
		serversSetEnabledCmd("enable", true),
		serversSetEnabledCmd("disable", false),
	)
	return cmd
}

func serversListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured tool servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(cfg.Servers) == 0 {
				fmt.Println("No tool servers configured. Add one with 'llm-terminal servers add'.")
				return nil
			}
			for _, sc := range cfg.Servers {
				state := color.HiBlackString("disabled")
				if sc.Enabled {
					state = color.GreenString("enabled")
				}
				fmt.Printf("%s  %s\n", color.CyanString("%-20s", sc.Name), state)
				fmt.Printf("  %s %s\n", sc.Command, strings.Join(sc.Args, " "))
				for k, v := range sc.Env {
					fmt.Printf("  %s\n", color.HiBlackString("%s=%s", k, v))
				}
			}
			return nil
		},
	}
}

func serversAddCmd() *cobra.Command {
	var envPairs []string

	cmd := &cobra.Command{
		Use:   "add <name> <command> [args...]",
		Short: "Add a tool server",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := domain.NewServerConfig(args[0], args[1], args[2:])

			for _, pair := range envPairs {
				k, v, ok := strings.Cut(pair, "=")
				if !ok || k == "" {
					return fmt.Errorf("invalid env entry %q, want KEY=VALUE", pair)
				}
				if sc.Env == nil {
					sc.Env = make(map[string]string)
				}
				sc.Env[k] = v
			}

			if err := cfg.AddServer(sc); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Printf("Added %s (%s)\n", sc.Name, sc.ID)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&envPairs, "env", "e", nil, "Environment variable KEY=VALUE (repeatable)")
	return cmd
}

func serversRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a tool server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, ok := cfg.FindServer(args[0])
			if !ok {
				return fmt.Errorf("no server named %q", args[0])
			}
			if err := cfg.RemoveServer(sc.ID); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", sc.Name)
			return nil
		},
	}
}

func serversSetEnabledCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <name>",
		Short: capitalize(use) + " a tool server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, ok := cfg.FindServer(args[0])
			if !ok {
				return fmt.Errorf("no server named %q", args[0])
			}
			if err := cfg.SetServerEnabled(sc.ID, enabled); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Printf("%sd %s\n", capitalize(use), sc.Name)
			return nil
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
