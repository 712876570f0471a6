package providers

import "time"

// Message represents a single message in a conversation.
// It is provider-agnostic and transformed to provider-specific formats
// by each adapter.
type Message struct {
	// Role identifies the message sender (system, user, assistant)
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`
}

// Payload is a provider-agnostic generation request.
type Payload struct {
	// Messages is the conversation history to send.
	Messages []Message `json:"messages"`

	// Model optionally overrides the adapter's configured model.
	Model string `json:"model,omitempty"`

	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 2.0).
	Temperature float64 `json:"temperature,omitempty"`

	// Metadata carries request context for logging and routing.
	// It is never sent to the provider.
	Metadata map[string]string `json:"-"`
}

// Usage tracks token consumption for a completed call.
type Usage struct {
	// PromptTokens is the number of tokens in the prompt
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens is the number of tokens in the completion
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the total number of tokens used
	TotalTokens int `json:"total_tokens"`
}

// Result is a provider-agnostic generation result, normalized from the
// provider-specific response format by the adapter.
type Result struct {
	// Text is the generated text content.
	Text string `json:"text"`

	// Model is the model that produced the response.
	Model string `json:"model"`

	// Usage contains token consumption reported by the provider.
	Usage Usage `json:"usage"`

	// Created is the Unix timestamp when the response was created.
	Created int64 `json:"created"`
}

// Config contains the adapter-facing subset of a provider slot's
// configuration. It is immutable after the invoker is constructed.
type Config struct {
	// Name is the provider identifier.
	Name string

	// Type selects the adapter implementation.
	Type ProviderType

	// APIKey is the credential material.
	APIKey string

	// Model is the default model identifier for this provider.
	Model string

	// BaseURL overrides the adapter's default endpoint.
	BaseURL string

	// Timeout bounds each outbound request.
	Timeout time.Duration
}

// Message role constants
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
