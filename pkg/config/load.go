package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} placeholders in configuration values.
var envVarPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// Load loads configuration from a YAML file at the specified path.
// ${ENV_VAR} placeholders are expanded before parsing, so credentials can be
// kept out of the file. Defaults are applied and the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	return Parse(data)
}

// Parse parses configuration from raw YAML bytes, expanding ${ENV_VAR}
// placeholders, applying defaults, and validating.
func Parse(data []byte) (*Config, error) {
	expanded := expandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// expandEnv replaces ${VAR_NAME} placeholders with environment variable
// values. Unset variables expand to the empty string, which downstream
// treats as an unconfigured slot rather than an error.
func expandEnv(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}
