// Package executor runs a payload against a single provider, enforcing
// its concurrency cap, per-attempt timeout, and retry policy, and feeding
// every attempt's outcome into usage and health tracking.
package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Upreak/miv1-sub001/pkg/health"
	"github.com/Upreak/miv1-sub001/pkg/providers"
	"github.com/Upreak/miv1-sub001/pkg/registry"
	"github.com/Upreak/miv1-sub001/pkg/usage"
)

// initialBackoff is the delay before the first retry; each further retry
// doubles it.
const initialBackoff = time.Second

// Executor wraps provider invocations with concurrency gating, timeouts,
// retries with exponential backoff, and outcome recording.
type Executor struct {
	tracker  *usage.Tracker
	monitor  *health.Monitor
	cooldown time.Duration
	logger   *slog.Logger

	// sleep waits between retries, honoring cancellation. Replaced in
	// tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	gates map[string]*concurrencyGate
}

// NewExecutor creates an executor. Failed providers are placed in cooldown
// for the given duration after exhausting their retries.
func NewExecutor(tracker *usage.Tracker, monitor *health.Monitor, cooldown time.Duration) *Executor {
	return &Executor{
		tracker:  tracker,
		monitor:  monitor,
		cooldown: cooldown,
		logger:   slog.Default().With("component", "executor"),
		sleep:    sleepContext,
		gates:    make(map[string]*concurrencyGate),
	}
}

// Execute runs the payload against one provider. The provider gets up to
// MaxRetries+1 attempts, each bounded by the provider's timeout, with
// exponential backoff between attempts. A saturated provider fails over
// immediately without consuming an attempt.
func (e *Executor) Execute(ctx context.Context, entry *registry.Entry, payload *providers.Payload) Outcome {
	name := entry.Config.Name
	start := time.Now()

	gate := e.gate(name, int64(entry.Config.ConcurrencyLimit()))
	if !gate.TryAcquire() {
		e.logger.Warn("provider saturated",
			"provider", name,
			"in_flight", gate.Current(),
			"max_concurrent", entry.Config.ConcurrencyLimit(),
		)
		return Outcome{Code: Saturated, Elapsed: time.Since(start)}
	}
	defer gate.Release()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = initialBackoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = time.Minute
	policy.MaxElapsedTime = 0
	policy.Reset()

	maxAttempts := entry.Config.RetryBudget() + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptStart := time.Now()
		result, err := e.invoke(ctx, entry, payload)
		e.monitor.RecordOutcome(name, err == nil, time.Since(attemptStart))

		if err == nil {
			e.tracker.RecordSuccess(name)
			e.logger.Info("provider call succeeded",
				"provider", name,
				"attempt", attempt,
				"elapsed", time.Since(start),
			)
			return Outcome{
				Code:     Success,
				Result:   result,
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}
		}

		lastErr = err
		e.logger.Warn("provider call failed",
			"provider", name,
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err,
		)

		if attempt == maxAttempts {
			break
		}
		if err := e.sleep(ctx, policy.NextBackOff()); err != nil {
			// Parent cancelled while waiting. Not the provider's
			// fault, so no cooldown.
			return Outcome{
				Code:     TransientFailure,
				Err:      err,
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}
		}
	}

	// A waterfall cut short because the caller walked away is not the
	// provider's fault; only genuine exhaustion earns a cooldown.
	if ctx.Err() == nil {
		e.tracker.SetCooldown(name, e.cooldown)
	}
	return Outcome{
		Code:     TransientFailure,
		Err:      lastErr,
		Attempts: maxAttempts,
		Elapsed:  time.Since(start),
	}
}

// invoke runs one attempt under the provider's timeout.
func (e *Executor) invoke(ctx context.Context, entry *registry.Entry, payload *providers.Payload) (*providers.Result, error) {
	attemptCtx := ctx
	if entry.Config.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, entry.Config.Timeout)
		defer cancel()
	}
	return entry.Invoker.Invoke(attemptCtx, payload)
}

// InFlight returns the number of requests currently executing against the
// provider.
func (e *Executor) InFlight(provider string) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if gate, ok := e.gates[provider]; ok {
		return gate.Current()
	}
	return 0
}

// Remove drops the concurrency gate of a provider removed from the fleet.
func (e *Executor) Remove(provider string) {
	e.mu.Lock()
	delete(e.gates, provider)
	e.mu.Unlock()
}

// gate returns the provider's gate, creating it on first use and keeping
// its limit in sync with the current configuration.
func (e *Executor) gate(provider string, limit int64) *concurrencyGate {
	e.mu.RLock()
	g, ok := e.gates[provider]
	e.mu.RUnlock()
	if ok {
		g.SetLimit(limit)
		return g
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if g, ok = e.gates[provider]; ok {
		g.SetLimit(limit)
		return g
	}
	g = newConcurrencyGate(limit)
	e.gates[provider] = g
	return g
}

// sleepContext waits for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
