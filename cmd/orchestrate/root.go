package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "orchestrate",
	Short: "Multi-provider LLM orchestration service",
	Long: `orchestrate routes generation requests across a pool of LLM providers,
enforcing daily quotas, failure cooldowns, per-provider concurrency caps,
and health-aware load balancing with automatic fallback.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
