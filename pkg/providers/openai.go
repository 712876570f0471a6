package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultOpenAIBaseURL is the OpenAI API endpoint used when no base URL
// is configured.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIInvoker is the adapter for the OpenAI chat completions API and any
// OpenAI-compatible endpoint (the "generic" type reuses it with a custom
// base URL).
type OpenAIInvoker struct {
	config Config
	client *http.Client
}

// NewOpenAIInvoker creates an invoker for the OpenAI API.
func NewOpenAIInvoker(config Config) (*OpenAIInvoker, error) {
	if config.BaseURL == "" {
		config.BaseURL = DefaultOpenAIBaseURL
	}
	if config.APIKey == "" {
		return nil, &ConfigError{Provider: config.Name, Field: "api_key", Message: "credential is required"}
	}

	return &OpenAIInvoker{
		config: config,
		client: newHTTPClient(config.Timeout),
	}, nil
}

// chatRequest is the OpenAI chat completions wire format.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

// chatResponse is the subset of the chat completions response the core needs.
type chatResponse struct {
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Invoke sends a chat completion request and normalizes the response.
func (p *OpenAIInvoker) Invoke(ctx context.Context, payload *Payload) (*Result, error) {
	model := payload.Model
	if model == "" {
		model = p.config.Model
	}

	reqBody, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    payload.Messages,
		MaxTokens:   payload.MaxTokens,
		Temperature: payload.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := p.config.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, wrapTransportError(p.config, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &InvocationError{Provider: p.config.Name, Message: "failed to read response body", Cause: err}
	}

	var parsed chatResponse
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

	if len(parsed.Choices) == 0 {
		return nil, &InvocationError{Provider: p.config.Name, Message: "response contained no choices"}
	}

	return &Result{
		Text:    parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Created: parsed.Created,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// Probe verifies the endpoint is reachable by listing models.
func (p *OpenAIInvoker) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.BaseURL+"/models", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return wrapTransportError(p.config, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &InvocationError{Provider: p.config.Name, StatusCode: resp.StatusCode, Message: "probe failed"}
	}
	return nil
}

// Name returns the configured provider name.
func (p *OpenAIInvoker) Name() string { return p.config.Name }

// Type returns the adapter type.
func (p *OpenAIInvoker) Type() ProviderType { return p.config.Type }

// Close releases idle HTTP connections.
func (p *OpenAIInvoker) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// maxResponseBytes bounds how much of a provider response body is read.
const maxResponseBytes = 10 << 20

// newHTTPClient builds an HTTP client with connection pooling suitable for
// repeated calls against a single provider host.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			ForceAttemptHTTP2:   true,
		},
		Timeout: timeout,
	}
}

// wrapTransportError converts low-level transport failures into the
// adapter error taxonomy. Context deadline expiry becomes a TimeoutError so
// callers can distinguish slow providers from broken ones.
func wrapTransportError(cfg Config, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Provider: cfg.Name, Timeout: cfg.Timeout}
	}
	return &InvocationError{Provider: cfg.Name, Message: "request failed", Cause: err}
}
