package executor

import (
	"time"

	"github.com/Upreak/miv1-sub001/pkg/providers"
)

// Code classifies how an execution against one provider ended.
type Code int

const (
	// Success means the provider returned a usable result.
	Success Code = iota

	// TransientFailure means every attempt failed and the provider was
	// placed in cooldown. The caller should fail over.
	TransientFailure

	// Saturated means the provider's concurrency cap was reached and no
	// attempt was made. The caller should fail over immediately; no
	// cooldown is set.
	Saturated
)

// String returns a stable name for logs.
func (c Code) String() string {
	switch c {
	case Success:
		return "success"
	case TransientFailure:
		return "transient_failure"
	case Saturated:
		return "saturated"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of executing a payload against one
// provider. Exactly one of Result and Err is meaningful, selected by Code.
type Outcome struct {
	// Code tags the outcome.
	Code Code

	// Result holds the provider response when Code is Success.
	Result *providers.Result

	// Err holds the last attempt's error when Code is TransientFailure.
	// It is nil for Saturated: saturation is a local decision, not a
	// provider error.
	Err error

	// Attempts is the number of invocations actually made.
	Attempts int

	// Elapsed is the total wall time spent, including backoff waits.
	Elapsed time.Duration
}
