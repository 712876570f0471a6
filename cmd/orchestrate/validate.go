package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Upreak/miv1-sub001/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		configured := 0
		for _, slot := range cfg.Providers {
			if slot.IsConfigured() {
				configured++
			}
		}

		fmt.Printf("%s is valid\n", configPath)
		fmt.Printf("  providers:  %d configured of %d slots\n", configured, len(cfg.Providers))
		fmt.Printf("  strategy:   %s\n", cfg.Routing.Strategy)
		fmt.Printf("  storage:    %s\n", cfg.Storage.Backend)
		return nil
	},
}
