package providers

import "context"

// Invoker is the interface every provider adapter implements. It is the
// boundary between the orchestration core and provider-specific protocol
// code: adapters own credential handling and request/response translation,
// the core owns routing, quotas, retries, and health.
//
// Implementations must respect context cancellation and return promptly
// when the context is cancelled. Any adapter error is treated by the core
// as a failed attempt; adapters never decide retry or fallback policy.
type Invoker interface {
	// Invoke sends the payload to the provider and returns the normalized
	// result. The context carries the per-attempt timeout set by the
	// execution wrapper.
	Invoke(ctx context.Context, payload *Payload) (*Result, error)

	// Probe performs a minimal synthetic health check against the
	// provider. It is called periodically by the health monitor,
	// independently of live traffic. Returns nil if the provider is
	// reachable and responding.
	Probe(ctx context.Context) error

	// Name returns the configured provider name (e.g., "openai").
	Name() string

	// Type returns the adapter type this invoker was built from.
	Type() ProviderType

	// Close releases adapter resources (HTTP connections, etc.).
	Close() error
}

// ProviderType identifies an adapter implementation. The factory dispatches
// on this enum rather than free-form strings from configuration.
type ProviderType string

const (
	// TypeOpenAI is the OpenAI chat completions API.
	TypeOpenAI ProviderType = "openai"

	// TypeAnthropic is the Anthropic messages API.
	TypeAnthropic ProviderType = "anthropic"

	// TypeGeneric is any OpenAI-compatible API (Ollama, vLLM, OpenRouter,
	// LM Studio, and similar).
	TypeGeneric ProviderType = "generic"
)
