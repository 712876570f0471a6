package providers

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownProviderType is returned by the factory for a configured slot
// whose type is not recognized. This is fatal at startup.
var ErrUnknownProviderType = errors.New("unknown provider type")

// InvocationError represents a failed call to a provider.
// It includes the provider name, HTTP status code, and underlying error.
type InvocationError struct {
	// Provider is the name of the provider that returned the error
	Provider string

	// StatusCode is the HTTP status code (0 if not applicable)
	StatusCode int

	// Message is the error message
	Message string

	// Cause is the underlying error (if any)
	Cause error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %q error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %q error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// TimeoutError represents a request that exceeded its configured timeout.
type TimeoutError struct {
	// Provider is the name of the provider where the timeout occurred
	Provider string

	// Timeout is the configured timeout duration
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %q request timeout after %s", e.Provider, e.Timeout)
}

// ConfigError represents a fatal provider configuration error at startup.
type ConfigError struct {
	// Provider is the name of the provider with invalid configuration
	Provider string

	// Field is the configuration field that is invalid
	Field string

	// Message describes the configuration error
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("provider %q configuration error for field %q: %s",
		e.Provider, e.Field, e.Message)
}

// UnknownTypeError is returned when a configured slot names a provider type
// the factory does not recognize.
type UnknownTypeError struct {
	// Provider is the slot name.
	Provider string

	// Type is the unrecognized type value.
	Type string
}

// Error implements the error interface.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("provider %q has unknown type %q (supported: openai, anthropic, generic)",
		e.Provider, e.Type)
}

// Is implements error matching for errors.Is().
func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownProviderType
}
