package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoEligibleProviders means every configured provider was excluded
// before any attempt was made (disabled, over quota, in cooldown, or
// unhealthy).
var ErrNoEligibleProviders = errors.New("no eligible providers")

// ErrProviderNotFound means an administrative operation named a provider
// that is not registered.
var ErrProviderNotFound = errors.New("provider not found")

// ExhaustedError means every eligible provider was tried and failed. It
// carries the providers attempted in order and the last provider error.
type ExhaustedError struct {
	Tried   []string
	LastErr error
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("all providers exhausted (tried %s)", strings.Join(e.Tried, ", "))
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}
