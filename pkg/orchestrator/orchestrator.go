// Package orchestrator ties the provider pool, usage tracking, health
// monitoring, and balancing strategy into a single entry point: hand it a
// payload and it works through eligible providers until one succeeds or
// all are exhausted.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Upreak/miv1-sub001/pkg/balancer"
	"github.com/Upreak/miv1-sub001/pkg/config"
	"github.com/Upreak/miv1-sub001/pkg/executor"
	"github.com/Upreak/miv1-sub001/pkg/health"
	"github.com/Upreak/miv1-sub001/pkg/providers"
	"github.com/Upreak/miv1-sub001/pkg/registry"
	"github.com/Upreak/miv1-sub001/pkg/usage"
)

// Deps are the orchestrator's collaborators, constructed by the caller and
// injected. Nothing here is optional.
type Deps struct {
	Registry *registry.Registry
	Tracker  *usage.Tracker
	Monitor  *health.Monitor
	Executor *executor.Executor
	Strategy balancer.Strategy

	// DailyLimit is the fleet-wide default daily quota. A provider slot
	// with its own DailyLimit overrides it. Zero means unlimited.
	DailyLimit int64
}

// Orchestrator routes generation requests across the provider fleet.
type Orchestrator struct {
	registry *registry.Registry
	tracker  *usage.Tracker
	monitor  *health.Monitor
	executor *executor.Executor
	logger   *slog.Logger

	mu         sync.RWMutex
	strategy   balancer.Strategy
	dailyLimit int64
}

// New validates the dependencies and builds an orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Registry == nil:
		return nil, fmt.Errorf("orchestrator requires a registry")
	case deps.Tracker == nil:
		return nil, fmt.Errorf("orchestrator requires a usage tracker")
	case deps.Monitor == nil:
		return nil, fmt.Errorf("orchestrator requires a health monitor")
	case deps.Executor == nil:
		return nil, fmt.Errorf("orchestrator requires an executor")
	case deps.Strategy == nil:
		return nil, fmt.Errorf("orchestrator requires a balancing strategy")
	}

	return &Orchestrator{
		registry:   deps.Registry,
		tracker:    deps.Tracker,
		monitor:    deps.Monitor,
		executor:   deps.Executor,
		strategy:   deps.Strategy,
		dailyLimit: deps.DailyLimit,
		logger:     slog.Default().With("component", "orchestrator"),
	}, nil
}

// GenerateResult is the tagged outcome of one generation request. Err is
// non-nil exactly when Success is false.
type GenerateResult struct {
	Success   bool
	RequestID string

	// Provider and Model identify who served the request.
	Provider string
	Model    string

	// Text and Usage carry the response when Success is true.
	Text  string
	Usage providers.Usage

	// Attempts is the total number of provider invocations made across
	// the whole waterfall, including retries.
	Attempts int

	Err error
}

// Generate runs the payload through the fleet. The strategy picks a
// provider from the eligible set; on failure the provider is dropped from
// this request's pool and selection repeats. The first success wins and
// ends the waterfall immediately.
func (o *Orchestrator) Generate(ctx context.Context, payload *providers.Payload) GenerateResult {
	requestID := uuid.New().String()
	logger := o.logger.With("request_id", requestID)
	start := time.Now()

	strategy, dailyLimit := o.routing()

	eligible := o.eligibleCandidates(dailyLimit, logger)
	if len(eligible) == 0 {
		logger.Warn("request rejected, no eligible providers")
		return GenerateResult{RequestID: requestID, Err: ErrNoEligibleProviders}
	}

	var (
		tried    []string
		lastErr  error
		attempts int
	)

	for len(eligible) > 0 {
		name, ok := strategy.Select(eligible)
		if !ok {
			break
		}

		entry := o.registry.Get(name)
		if entry == nil {
			// Removed between candidate collection and selection.
			eligible = dropCandidate(eligible, name)
			continue
		}

		logger.Info("routing request to provider",
			"provider", name,
			"strategy", strategy.Name(),
			"remaining", len(eligible),
		)

		outcome := o.executor.Execute(ctx, entry, payload)
		attempts += outcome.Attempts
		tried = append(tried, name)

		if outcome.Code == executor.Success {
			logger.Info("request served",
				"provider", name,
				"attempts", attempts,
				"elapsed", time.Since(start),
			)
			return GenerateResult{
				Success:   true,
				RequestID: requestID,
				Provider:  name,
				Model:     outcome.Result.Model,
				Text:      outcome.Result.Text,
				Usage:     outcome.Result.Usage,
				Attempts:  attempts,
			}
		}

		if outcome.Err != nil {
			lastErr = outcome.Err
		}
		logger.Warn("provider failed, continuing waterfall",
			"provider", name,
			"outcome", outcome.Code.String(),
			"error", outcome.Err,
		)
		eligible = dropCandidate(eligible, name)
	}

	err := &ExhaustedError{Tried: tried, LastErr: lastErr}
	logger.Error("request failed, all providers exhausted",
		"tried", tried,
		"attempts", attempts,
		"error", lastErr,
	)
	return GenerateResult{
		RequestID: requestID,
		Attempts:  attempts,
		Err:       err,
	}
}

// eligibleCandidates collects providers allowed to serve a request right
// now, in priority order.
func (o *Orchestrator) eligibleCandidates(dailyLimit int64, logger *slog.Logger) []balancer.Candidate {
	entries := o.registry.List()
	candidates := make([]balancer.Candidate, 0, len(entries))

	for _, entry := range entries {
		name := entry.Config.Name

		if !entry.Config.IsEnabled() {
			continue
		}

		snap := o.monitor.GetSnapshot(name)
		if !snap.Status.Selectable() {
			logger.Debug("provider excluded by health", "provider", name, "status", snap.Status.String())
			continue
		}

		limit := entry.Config.DailyLimit
		if limit == 0 {
			limit = dailyLimit
		}
		if !o.tracker.CanUse(name, limit) {
			logger.Debug("provider excluded by usage", "provider", name)
			continue
		}

		candidates = append(candidates, balancer.Candidate{
			Name:                name,
			InFlight:            o.executor.InFlight(name),
			AverageResponseTime: snap.AverageResponseTime,
			HasLatencyData:      snap.TotalRequests > 0,
			HealthScore:         snap.HealthScore,
			CostPerUnit:         entry.Config.CostPerUnit,
		})
	}

	return candidates
}

// routing returns the current strategy and fleet-wide daily limit.
func (o *Orchestrator) routing() (balancer.Strategy, int64) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.strategy, o.dailyLimit
}

// SetStrategy switches the balancing strategy at runtime.
func (o *Orchestrator) SetStrategy(name string) error {
	strategy, err := balancer.NewStrategy(name)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.strategy = strategy
	o.mu.Unlock()

	o.logger.Info("balancing strategy changed", "strategy", name)
	return nil
}

// AddProvider registers a new provider at runtime.
func (o *Orchestrator) AddProvider(slot config.ProviderConfig) error {
	return o.registry.Add(slot)
}

// RemoveProvider unregisters a provider and drops all its tracked state.
func (o *Orchestrator) RemoveProvider(name string) error {
	if err := o.registry.Remove(name); err != nil {
		return fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	o.tracker.Remove(name)
	o.monitor.Remove(name)
	o.executor.Remove(name)
	return nil
}

// UpdateProvider replaces a provider's configuration. Tracked usage and
// health state carry over; identity is unchanged.
func (o *Orchestrator) UpdateProvider(name string, slot config.ProviderConfig) error {
	return o.registry.Update(name, slot)
}

// SetMaintenance flags or clears maintenance mode for a provider.
func (o *Orchestrator) SetMaintenance(name string, on bool) error {
	if o.registry.Get(name) == nil {
		return fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	o.monitor.SetMaintenance(name, on)
	return nil
}

// ApplyConfig reconciles the running fleet and routing against a freshly
// loaded configuration, used for hot reload. Providers are added, updated,
// or removed to match; unchanged providers keep their tracked state.
func (o *Orchestrator) ApplyConfig(cfg *config.Config) {
	desired := make(map[string]config.ProviderConfig)
	for _, slot := range cfg.Providers {
		if slot.IsConfigured() {
			desired[slot.Name] = slot
		}
	}

	for _, name := range o.registry.Names() {
		slot, keep := desired[name]
		if !keep {
			if err := o.RemoveProvider(name); err != nil {
				o.logger.Warn("reload: failed to remove provider", "provider", name, "error", err)
			}
			continue
		}
		if err := o.registry.Update(name, slot); err != nil {
			o.logger.Warn("reload: failed to update provider", "provider", name, "error", err)
		}
		delete(desired, name)
	}

	for name, slot := range desired {
		if err := o.registry.Add(slot); err != nil {
			o.logger.Warn("reload: failed to add provider", "provider", name, "error", err)
		}
	}

	if err := o.SetStrategy(cfg.Routing.Strategy); err != nil {
		o.logger.Warn("reload: invalid strategy, keeping previous", "strategy", cfg.Routing.Strategy, "error", err)
	}

	o.mu.Lock()
	o.dailyLimit = cfg.Limits.DailyLimit
	o.mu.Unlock()

	o.logger.Info("configuration applied", "providers", o.registry.Len())
}

// ProviderStatus is the introspection view of one provider.
type ProviderStatus struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Priority int    `json:"priority"`
	Enabled  bool   `json:"enabled"`

	Status      string  `json:"status"`
	HealthScore float64 `json:"health_score"`

	InFlight            int64         `json:"in_flight"`
	TotalRequests       int64         `json:"total_requests"`
	TotalFailures       int64         `json:"total_failures"`
	ConsecutiveFailures int64         `json:"consecutive_failures"`
	AverageResponseTime time.Duration `json:"average_response_time"`
	LastSuccess         time.Time     `json:"last_success,omitzero"`
	LastFailure         time.Time     `json:"last_failure,omitzero"`

	UsageToday    int64     `json:"usage_today"`
	DailyLimit    int64     `json:"daily_limit"`
	CooldownUntil time.Time `json:"cooldown_until,omitzero"`
}

// StatusReport is the introspection view of the whole orchestrator.
type StatusReport struct {
	Strategy  string           `json:"strategy"`
	Providers []ProviderStatus `json:"providers"`
}

// GetMetrics returns the current view of one provider.
func (o *Orchestrator) GetMetrics(name string) (*ProviderStatus, error) {
	entry := o.registry.Get(name)
	if entry == nil {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	status := o.providerStatus(entry)
	return &status, nil
}

// GetStatus returns the current view of every provider plus the active
// strategy, in priority order.
func (o *Orchestrator) GetStatus() StatusReport {
	strategy, _ := o.routing()

	entries := o.registry.List()
	statuses := make([]ProviderStatus, 0, len(entries))
	for _, entry := range entries {
		statuses = append(statuses, o.providerStatus(entry))
	}

	return StatusReport{
		Strategy:  strategy.Name(),
		Providers: statuses,
	}
}

func (o *Orchestrator) providerStatus(entry *registry.Entry) ProviderStatus {
	name := entry.Config.Name
	snap := o.monitor.GetSnapshot(name)
	state := o.tracker.GetState(name)

	_, dailyLimit := o.routing()
	limit := entry.Config.DailyLimit
	if limit == 0 {
		limit = dailyLimit
	}

	return ProviderStatus{
		Name:                name,
		Type:                entry.Config.Type,
		Priority:            entry.Config.Priority,
		Enabled:             entry.Config.IsEnabled(),
		Status:              snap.Status.String(),
		HealthScore:         snap.HealthScore,
		InFlight:            o.executor.InFlight(name),
		TotalRequests:       snap.TotalRequests,
		TotalFailures:       snap.TotalFailures,
		ConsecutiveFailures: snap.ConsecutiveFailures,
		AverageResponseTime: snap.AverageResponseTime,
		LastSuccess:         snap.LastSuccess,
		LastFailure:         snap.LastFailure,
		UsageToday:          state.Count,
		DailyLimit:          limit,
		CooldownUntil:       state.CooldownUntil,
	}
}

// dropCandidate removes one provider from the candidate pool.
func dropCandidate(candidates []balancer.Candidate, name string) []balancer.Candidate {
	for i, c := range candidates {
		if c.Name == name {
			return append(candidates[:i], candidates[i+1:]...)
		}
	}
	return candidates
}
