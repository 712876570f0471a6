// Package providertest provides mock provider adapters for tests.
package providertest

import (
	"context"
	"sync/atomic"

	"github.com/Upreak/miv1-sub001/pkg/providers"
)

// MockInvoker is a configurable in-memory Invoker for tests.
type MockInvoker struct {
	// ProviderName is returned by Name().
	ProviderName string

	// InvokeFunc handles Invoke calls. If nil, Invoke returns a fixed
	// successful result.
	InvokeFunc func(ctx context.Context, payload *providers.Payload) (*providers.Result, error)

	// ProbeFunc handles Probe calls. If nil, Probe returns nil.
	ProbeFunc func(ctx context.Context) error

	// invokeCount tracks the number of Invoke calls.
	invokeCount atomic.Int64
}

// NewMockInvoker creates a mock that always succeeds.
func NewMockInvoker(name string) *MockInvoker {
	return &MockInvoker{ProviderName: name}
}

// Invoke implements providers.Invoker.
func (m *MockInvoker) Invoke(ctx context.Context, payload *providers.Payload) (*providers.Result, error) {
	m.invokeCount.Add(1)
	if m.InvokeFunc != nil {
		return m.InvokeFunc(ctx, payload)
	}
	return &providers.Result{
		Text:  "mock response from " + m.ProviderName,
		Model: "mock-model",
		Usage: providers.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
	}, nil
}

// Probe implements providers.Invoker.
func (m *MockInvoker) Probe(ctx context.Context) error {
	if m.ProbeFunc != nil {
		return m.ProbeFunc(ctx)
	}
	return nil
}

// Name implements providers.Invoker.
func (m *MockInvoker) Name() string { return m.ProviderName }

// Type implements providers.Invoker.
func (m *MockInvoker) Type() providers.ProviderType { return providers.TypeGeneric }

// Close implements providers.Invoker.
func (m *MockInvoker) Close() error { return nil }

// InvokeCount returns how many times Invoke was called.
func (m *MockInvoker) InvokeCount() int64 { return m.invokeCount.Load() }
