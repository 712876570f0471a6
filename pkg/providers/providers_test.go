package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewInvoker(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantErr  error
		wantType ProviderType
	}{
		{
			name:     "openai",
			config:   Config{Name: "openai", Type: TypeOpenAI, APIKey: "sk-test"},
			wantType: TypeOpenAI,
		},
		{
			name:     "anthropic",
			config:   Config{Name: "anthropic", Type: TypeAnthropic, APIKey: "ak-test"},
			wantType: TypeAnthropic,
		},
		{
			name:     "generic with base url",
			config:   Config{Name: "ollama", Type: TypeGeneric, APIKey: "none", BaseURL: "http://localhost:11434/v1"},
			wantType: TypeGeneric,
		},
		{
			name:    "unknown type",
			config:  Config{Name: "mystery", Type: "mystery", APIKey: "k"},
			wantErr: ErrUnknownProviderType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoker, err := NewInvoker(tt.config)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NewInvoker() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewInvoker() error = %v", err)
			}
			if invoker.Type() != tt.wantType {
				t.Errorf("Type() = %q, want %q", invoker.Type(), tt.wantType)
			}
			if invoker.Name() != tt.config.Name {
				t.Errorf("Name() = %q, want %q", invoker.Name(), tt.config.Name)
			}
		})
	}
}

func TestNewInvokerGenericRequiresBaseURL(t *testing.T) {
	_, err := NewInvoker(Config{Name: "local", Type: TypeGeneric, APIKey: "k"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("NewInvoker() error = %v, want ConfigError", err)
	}
	if cfgErr.Field != "base_url" {
		t.Errorf("ConfigError field = %q, want base_url", cfgErr.Field)
	}
}

func TestOpenAIInvokerInvoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "gpt-4o-mini",
			"created": 1700000000,
			"choices": [{"message": {"content": "hello there"}}],
			"usage": {"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10}
		}`))
	}))
	defer server.Close()

	invoker, err := NewOpenAIInvoker(Config{
		Name:    "openai",
		Type:    TypeOpenAI,
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAIInvoker() error = %v", err)
	}
	defer invoker.Close()

	result, err := invoker.Invoke(context.Background(), &Payload{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if result.Text != "hello there" {
		t.Errorf("Text = %q, want %q", result.Text, "hello there")
	}
	if result.Usage.TotalTokens != 10 {
		t.Errorf("TotalTokens = %d, want 10", result.Usage.TotalTokens)
	}
	if result.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", result.Model)
	}
}

func TestOpenAIInvokerAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit_error"}}`))
	}))
	defer server.Close()

	invoker, err := NewOpenAIInvoker(Config{
		Name:    "openai",
		Type:    TypeOpenAI,
		APIKey:  "sk-test",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewOpenAIInvoker() error = %v", err)
	}
	defer invoker.Close()

	_, err = invoker.Invoke(context.Background(), &Payload{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})

	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("Invoke() error = %v, want InvocationError", err)
	}
	if invErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", invErr.StatusCode)
	}
	if invErr.Message != "rate limited" {
		t.Errorf("Message = %q, want %q", invErr.Message, "rate limited")
	}
}

func TestAnthropicInvokerInvoke(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "ak-test" {
			t.Errorf("x-api-key = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"model": "claude-3-haiku",
			"content": [{"type": "text", "text": "hi from claude"}],
			"usage": {"input_tokens": 4, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	invoker, err := NewAnthropicInvoker(Config{
		Name:    "anthropic",
		Type:    TypeAnthropic,
		APIKey:  "ak-test",
		BaseURL: server.URL,
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewAnthropicInvoker() error = %v", err)
	}
	defer invoker.Close()

	result, err := invoker.Invoke(context.Background(), &Payload{
		Messages: []Message{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if result.Text != "hi from claude" {
		t.Errorf("Text = %q, want %q", result.Text, "hi from claude")
	}
	if result.Usage.TotalTokens != 9 {
		t.Errorf("TotalTokens = %d, want 9", result.Usage.TotalTokens)
	}
}
