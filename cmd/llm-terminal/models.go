package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the available models",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, _, err := buildRegistry()
			if err != nil {
				return err
			}

			for _, p := range registry.List() {
				keyed := cfg.APIKey(p.ID()) != ""
				header := color.CyanString(p.Name())
				if !keyed {
					header += color.HiBlackString(" (no API key)")
				}
				fmt.Println(header)

				for _, m := range p.Models() {
					id := p.ID() + ":" + m.ID
					marker := "  "
					if id == cfg.Model {
						marker = color.GreenString("* ")
					}
					fmt.Printf("%s%-40s %s\n", marker, id, color.HiBlackString(m.Name))
				}
				fmt.Println()
			}
			return nil
		},
	}
}
