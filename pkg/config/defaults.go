package config

import "time"

// Default values for configuration fields.
const (
	// Provider defaults
	DefaultProviderTimeout       = 60 * time.Second
	DefaultProviderMaxRetries    = 3
	DefaultProviderMaxConcurrent = 10

	// Routing defaults
	DefaultStrategy = "priority"

	// Limits defaults
	DefaultDailyLimit = int64(0) // unlimited
	DefaultCooldown   = 5 * time.Minute

	// Storage defaults
	DefaultStorageBackend = "sqlite"
	DefaultSQLitePath     = "data/usage.db"

	// Health defaults
	DefaultProbeInterval      = 60 * time.Second
	DefaultProbeTimeout       = 5 * time.Second
	DefaultDecaySchedule      = "0 * * * *"
	DefaultUnhealthyThreshold = 5

	// Telemetry defaults
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"
	DefaultMetricsListenAddress = "127.0.0.1:9090"
	DefaultMetricsNamespace     = "orchestrator"
)

// ApplyDefaults fills in default values for any unset configuration fields.
// It modifies the configuration in place.
func ApplyDefaults(cfg *Config) {
	for i := range cfg.Providers {
		p := &cfg.Providers[i]
		if p.Timeout == 0 {
			p.Timeout = DefaultProviderTimeout
		}
		// Pointer fields distinguish "omitted" from an explicit zero:
		// max_retries: 0 means no retries, max_concurrent: 0 unlimited.
		if p.MaxRetries == nil {
			retries := DefaultProviderMaxRetries
			p.MaxRetries = &retries
		}
		if p.MaxConcurrent == nil {
			concurrent := DefaultProviderMaxConcurrent
			p.MaxConcurrent = &concurrent
		}
	}

	if cfg.Routing.Strategy == "" {
		cfg.Routing.Strategy = DefaultStrategy
	}

	if cfg.Limits.Cooldown == 0 {
		cfg.Limits.Cooldown = DefaultCooldown
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = DefaultSQLitePath
	}

	if cfg.Health.ProbeInterval == 0 {
		cfg.Health.ProbeInterval = DefaultProbeInterval
	}
	if cfg.Health.ProbeTimeout == 0 {
		cfg.Health.ProbeTimeout = DefaultProbeTimeout
	}
	if cfg.Health.DecaySchedule == "" {
		cfg.Health.DecaySchedule = DefaultDecaySchedule
	}
	if cfg.Health.UnhealthyThreshold == 0 {
		cfg.Health.UnhealthyThreshold = DefaultUnhealthyThreshold
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
}
