package config

import "time"

// Config is the root configuration structure for the orchestrator.
// It contains the provider slots, global routing defaults, usage storage
// settings, health monitoring tunables, and telemetry configuration.
type Config struct {
	// Providers is the ordered list of provider slots. Slot order is the
	// static fallback priority when the "priority" strategy is selected.
	Providers []ProviderConfig `yaml:"providers"`

	// Routing contains load-balancing strategy configuration.
	Routing RoutingConfig `yaml:"routing"`

	// Limits contains global quota and cooldown defaults applied to
	// providers that do not override them.
	Limits LimitsConfig `yaml:"limits"`

	// Storage configures persistence of per-provider usage state.
	Storage StorageConfig `yaml:"storage"`

	// Health contains health monitoring configuration.
	Health HealthConfig `yaml:"health"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProviderConfig contains configuration for a single provider slot.
// A slot with an empty Type or empty APIKey is treated as "not configured"
// and silently omitted when the registry is built. A slot with an unknown
// Type is a fatal configuration error at startup.
type ProviderConfig struct {
	// Name is the provider identifier (e.g., "openai", "anthropic").
	// Must be unique across slots.
	Name string `yaml:"name"`

	// Type selects the adapter implementation ("openai", "anthropic", "generic").
	Type string `yaml:"type"`

	// APIKey is the credential for the provider. Supports ${ENV_VAR}
	// expansion at load time.
	APIKey string `yaml:"api_key"`

	// Model is the model identifier sent to the provider.
	Model string `yaml:"model"`

	// BaseURL overrides the adapter's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Timeout is the per-attempt request timeout.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of retries after the first failed attempt.
	// A pointer so an explicit 0 (no retries) survives defaulting.
	// Default: 3
	MaxRetries *int `yaml:"max_retries"`

	// Priority orders providers for the static "priority" strategy.
	// Lower values are tried first. Ties resolve in slot order.
	Priority int `yaml:"priority"`

	// CostPerUnit is the relative cost weight used by the cost-optimized
	// strategy. Units are arbitrary but must be consistent across slots.
	CostPerUnit float64 `yaml:"cost_per_unit"`

	// MaxConcurrent is the per-provider in-flight call ceiling. A pointer
	// so an explicit 0 (unlimited) survives defaulting.
	// Default: 10
	MaxConcurrent *int `yaml:"max_concurrent"`

	// DailyLimit caps successful calls per calendar day for this provider.
	// Zero means use the global default from Limits.DailyLimit.
	DailyLimit int64 `yaml:"daily_limit"`

	// Enabled controls whether the provider participates in routing.
	// Defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
}

// IsEnabled reports whether the slot is enabled, defaulting to true.
func (p *ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// RetryBudget returns the configured retry count, defaulting when unset.
// Zero means a single attempt with no retries.
func (p *ProviderConfig) RetryBudget() int {
	if p.MaxRetries == nil {
		return DefaultProviderMaxRetries
	}
	return *p.MaxRetries
}

// ConcurrencyLimit returns the configured in-flight ceiling, defaulting
// when unset. Zero means unlimited.
func (p *ProviderConfig) ConcurrencyLimit() int {
	if p.MaxConcurrent == nil {
		return DefaultProviderMaxConcurrent
	}
	return *p.MaxConcurrent
}

// IsConfigured reports whether the slot carries enough information to build
// an adapter. Absence of type or credential means "not configured".
func (p *ProviderConfig) IsConfigured() bool {
	return p.Type != "" && p.APIKey != ""
}

// RoutingConfig contains load-balancing configuration.
type RoutingConfig struct {
	// Strategy selects the load-balancing strategy:
	// "priority", "round-robin", "least-busy", "fastest-response",
	// "cost-optimized".
	// Default: "priority"
	Strategy string `yaml:"strategy"`
}

// LimitsConfig contains global quota and cooldown defaults.
type LimitsConfig struct {
	// DailyLimit is the default calendar-day cap on successful calls per
	// provider. Zero means unlimited.
	// Default: 0
	DailyLimit int64 `yaml:"daily_limit"`

	// Cooldown is how long a provider is excluded from selection after
	// its retry budget is exhausted on a call.
	// Default: 5m
	Cooldown time.Duration `yaml:"cooldown"`
}

// StorageConfig configures the usage state backend.
type StorageConfig struct {
	// Backend selects the storage backend ("sqlite" or "memory").
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLitePath is the path to the SQLite database file.
	// Default: "data/usage.db"
	SQLitePath string `yaml:"sqlite_path"`
}

// HealthConfig contains health monitoring configuration.
type HealthConfig struct {
	// ProbeInterval is how often the background monitor probes each
	// enabled provider independently of live traffic.
	// Default: 60s
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// ProbeTimeout bounds each synthetic probe.
	// Default: 5s
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// DecaySchedule is a cron expression for clearing stale windowed
	// counters so scores reflect recent behavior rather than all-time
	// history.
	// Default: "0 * * * *" (hourly)
	DecaySchedule string `yaml:"decay_schedule"`

	// UnhealthyThreshold is the consecutive-failure count beyond which a
	// provider is reported Unhealthy regardless of score.
	// Default: 5
	UnhealthyThreshold int `yaml:"unhealthy_threshold"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus metrics endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json" or "text").
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// ListenAddress is the address for the metrics HTTP server.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Namespace is the Prometheus metric namespace prefix.
	// Default: "orchestrator"
	Namespace string `yaml:"namespace"`
}

// MetricsEnabled reports whether the metrics endpoint should be served,
// defaulting to true.
func (m *MetricsConfig) MetricsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}
