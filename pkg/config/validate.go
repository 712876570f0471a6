package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// ValidStrategies lists the recognized load-balancing strategy names.
var ValidStrategies = []string{
	"priority",
	"round-robin",
	"least-busy",
	"fastest-response",
	"cost-optimized",
}

// Validate checks the configuration for errors. It returns an error
// describing the first problem found, or nil if the configuration is valid.
//
// Validation covers structural problems only (bad strategy name, duplicate
// provider names, negative tunables). Whether a provider slot is usable at
// all (missing type or credential) is decided when the registry is built:
// such slots are silently omitted, not rejected here.
func Validate(cfg *Config) error {
	if err := validateProviders(cfg.Providers); err != nil {
		return err
	}

	if !isValidStrategy(cfg.Routing.Strategy) {
		return fmt.Errorf("unknown routing strategy %q (valid: %s)",
			cfg.Routing.Strategy, strings.Join(ValidStrategies, ", "))
	}

	if cfg.Limits.DailyLimit < 0 {
		return fmt.Errorf("limits.daily_limit must not be negative, got %d", cfg.Limits.DailyLimit)
	}
	if cfg.Limits.Cooldown < 0 {
		return fmt.Errorf("limits.cooldown must not be negative, got %s", cfg.Limits.Cooldown)
	}

	switch cfg.Storage.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q (valid: sqlite, memory)", cfg.Storage.Backend)
	}

	if _, err := cron.ParseStandard(cfg.Health.DecaySchedule); err != nil {
		return fmt.Errorf("invalid health.decay_schedule %q: %w", cfg.Health.DecaySchedule, err)
	}

	return nil
}

// validateProviders checks per-slot tunables and name uniqueness.
func validateProviders(providers []ProviderConfig) error {
	seen := make(map[string]bool, len(providers))

	for i, p := range providers {
		if p.Name == "" {
			return fmt.Errorf("provider slot %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true

		if p.Timeout < 0 {
			return fmt.Errorf("provider %q: timeout must not be negative", p.Name)
		}
		if p.MaxRetries != nil && *p.MaxRetries < 0 {
			return fmt.Errorf("provider %q: max_retries must not be negative", p.Name)
		}
		if p.MaxConcurrent != nil && *p.MaxConcurrent < 0 {
			return fmt.Errorf("provider %q: max_concurrent must not be negative", p.Name)
		}
		if p.CostPerUnit < 0 {
			return fmt.Errorf("provider %q: cost_per_unit must not be negative", p.Name)
		}
		if p.DailyLimit < 0 {
			return fmt.Errorf("provider %q: daily_limit must not be negative", p.Name)
		}
	}

	return nil
}

// isValidStrategy reports whether the strategy name is recognized.
func isValidStrategy(name string) bool {
	for _, s := range ValidStrategies {
		if s == name {
			return true
		}
	}
	return false
}
