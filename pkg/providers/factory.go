package providers

import (
	"fmt"
	"log/slog"
)

// NewInvoker creates an adapter instance for the given configuration.
// Dispatch is on the typed ProviderType enum; a configured slot with an
// unrecognized type is a fatal error (UnknownTypeError), never silently
// downgraded to a different adapter.
//
// Supported types:
//   - TypeOpenAI: OpenAI chat completions API
//   - TypeAnthropic: Anthropic messages API
//   - TypeGeneric: any OpenAI-compatible API (requires base_url)
func NewInvoker(config Config) (Invoker, error) {
	slog.Debug("creating provider adapter",
		"name", config.Name,
		"type", config.Type,
		"base_url", config.BaseURL,
	)

	var invoker Invoker
	var err error

	switch config.Type {
	case TypeOpenAI:
		invoker, err = NewOpenAIInvoker(config)

	case TypeAnthropic:
		invoker, err = NewAnthropicInvoker(config)

	case TypeGeneric:
		if config.BaseURL == "" {
			return nil, &ConfigError{Provider: config.Name, Field: "base_url", Message: "generic providers require a base URL"}
		}
		invoker, err = NewOpenAIInvoker(config)

	default:
		return nil, &UnknownTypeError{Provider: config.Name, Type: string(config.Type)}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create provider %q: %w", config.Name, err)
	}

	return invoker, nil
}
