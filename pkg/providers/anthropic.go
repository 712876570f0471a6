package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DefaultAnthropicBaseURL is the Anthropic API endpoint used when no base
// URL is configured.
const DefaultAnthropicBaseURL = "https://api.anthropic.com/v1"

// anthropicVersion is the required API version header value.
const anthropicVersion = "2023-06-01"

// AnthropicInvoker is the adapter for the Anthropic messages API.
type AnthropicInvoker struct {
	config Config
	client *http.Client
}

// NewAnthropicInvoker creates an invoker for the Anthropic API.
func NewAnthropicInvoker(config Config) (*AnthropicInvoker, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultAnthropicBaseURL
	}
	if config.APIKey == "" {
		return nil, &ConfigError{Provider: config.Name, Field: "api_key", Message: "credential is required"}
	}

	return &AnthropicInvoker{
		config: config,
		client: newHTTPClient(config.Timeout),
	}, nil
}

// messagesRequest is the Anthropic messages API wire format.
// The system prompt travels in a dedicated field rather than the message list.
type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
}

// messagesResponse is the subset of the messages response the core needs.
type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// defaultAnthropicMaxTokens is used when the payload does not set a limit;
// the messages API requires max_tokens to be present.
const defaultAnthropicMaxTokens = 4096

// Invoke sends a messages request and normalizes the response.
func (p *AnthropicInvoker) Invoke(ctx context.Context, payload *Payload) (*Result, error) {
	model := payload.Model
	if model == "" {
		model = p.config.Model
	}

	maxTokens := payload.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	var system string
	messages := make([]Message, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		messages = append(messages, m)
	}

	reqBody, err := json.Marshal(messagesRequest{
		Model:       model,
		System:      system,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: payload.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := p.config.BaseURL + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.config.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, wrapTransportError(p.config, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &InvocationError{Provider: p.config.Name, Message: "failed to read response body", Cause: err}
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &InvocationError{
			Provider:   p.config.Name,
			StatusCode: resp.StatusCode,
			Message:    "failed to decode response",
			Cause:      err,
		}
	}

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, &InvocationError{Provider: p.config.Name, StatusCode: resp.StatusCode, Message: msg}
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &Result{
		Text:  text,
		Model: parsed.Model,
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

// Probe verifies the endpoint is reachable. The messages API has no cheap
// list endpoint, so the probe sends a minimal single-token request.
func (p *AnthropicInvoker) Probe(ctx context.Context) error {
	_, err := p.Invoke(ctx, &Payload{
		Messages:  []Message{{Role: RoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	return err
}

// Name returns the configured provider name.
func (p *AnthropicInvoker) Name() string { return p.config.Name }

// Type returns the adapter type.
func (p *AnthropicInvoker) Type() ProviderType { return p.config.Type }

// Close releases idle HTTP connections.
func (p *AnthropicInvoker) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
