// Command orchestrate runs the provider orchestration service: a pool of
// LLM providers behind daily quotas, cooldowns, health monitoring, and a
// configurable balancing strategy with fallback.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
