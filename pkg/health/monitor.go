// Package health observes provider outcomes and active probes, computes a
// numeric health score per provider, and classifies each provider into a
// status used by the selection layer.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Upreak/miv1-sub001/pkg/providers"
)

// healthyScoreThreshold is the minimum score for StatusHealthy. Below it a
// provider that still passes probes is StatusDegraded.
const healthyScoreThreshold = 80

// Recorder receives health observations for export. Implemented by the
// telemetry metrics package; a nil Recorder disables export.
type Recorder interface {
	ObserveRequest(provider string, success bool, elapsed time.Duration)
	SetHealthScore(provider string, score float64)
	SetStatus(provider string, status string)
}

// Snapshot is a point-in-time view of one provider's health.
type Snapshot struct {
	Provider            string
	TotalRequests       int64
	TotalFailures       int64
	ConsecutiveFailures int64
	AverageResponseTime time.Duration
	LastSuccess         time.Time
	LastFailure         time.Time
	HealthScore         float64
	Status              Status
}

// providerHealth is the mutable per-provider record.
type providerHealth struct {
	mu sync.Mutex

	totalRequests       int64
	totalFailures       int64
	consecutiveFailures int64
	totalElapsed        time.Duration
	lastSuccess         time.Time
	lastFailure         time.Time

	// probeFailed is set by the probe loop. A provider that has never
	// been probed is given the benefit of the doubt.
	probeFailed bool
	maintenance bool
}

// Config carries the monitor's tunables and collaborators.
type Config struct {
	// ProbeInterval is how often every provider is actively probed.
	ProbeInterval time.Duration

	// ProbeTimeout bounds each individual probe.
	ProbeTimeout time.Duration

	// DecaySchedule is a cron expression for resetting the windowed
	// counters, so old failures stop dragging the score down forever.
	DecaySchedule string

	// UnhealthyThreshold is the consecutive-failure count above which a
	// provider is classified unhealthy regardless of its score.
	UnhealthyThreshold int

	// Probers returns the current set of provider adapters to probe.
	// Called on each probe cycle so fleet changes take effect without a
	// restart.
	Probers func() []providers.Invoker

	// Recorder receives observations for metrics export. Optional.
	Recorder Recorder
}

// Monitor tracks request outcomes and probe results for all providers.
type Monitor struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	states map[string]*providerHealth

	cron     *cron.Cron
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewMonitor creates a monitor. Start must be called to begin probing and
// decay; outcome recording works immediately.
func NewMonitor(cfg Config) (*Monitor, error) {
	if cfg.DecaySchedule != "" {
		if _, err := cron.ParseStandard(cfg.DecaySchedule); err != nil {
			return nil, fmt.Errorf("invalid decay schedule %q: %w", cfg.DecaySchedule, err)
		}
	}

	return &Monitor{
		cfg:     cfg,
		logger:  slog.Default().With("component", "health"),
		now:     time.Now,
		states:  make(map[string]*providerHealth),
		stopped: make(chan struct{}),
	}, nil
}

// Start launches the probe loop and the decay schedule. It returns
// immediately; both run until ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	if m.cfg.DecaySchedule != "" {
		m.cron = cron.New()
		if _, err := m.cron.AddFunc(m.cfg.DecaySchedule, m.decay); err != nil {
			return fmt.Errorf("failed to schedule health decay: %w", err)
		}
		m.cron.Start()
		m.logger.Info("health decay scheduled", "schedule", m.cfg.DecaySchedule)
	}

	if m.cfg.ProbeInterval > 0 && m.cfg.Probers != nil {
		go m.runProbes(ctx)
		m.logger.Info("health probing started",
			"interval", m.cfg.ProbeInterval,
			"timeout", m.cfg.ProbeTimeout,
		)
	}

	return nil
}

// Stop halts the decay schedule and the probe loop.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopped)
		if m.cron != nil {
			m.cron.Stop()
		}
	})
}

// RecordOutcome records the result of one provider attempt. Every attempt
// counts, including retries and attempts cut short by cancellation.
func (m *Monitor) RecordOutcome(provider string, success bool, elapsed time.Duration) {
	ph := m.state(provider)
	ph.mu.Lock()

	now := m.now()
	ph.totalRequests++
	ph.totalElapsed += elapsed
	if success {
		ph.consecutiveFailures = 0
		ph.lastSuccess = now
	} else {
		ph.totalFailures++
		ph.consecutiveFailures++
		ph.lastFailure = now
	}

	score := ph.scoreLocked()
	status := ph.statusLocked(m.cfg.UnhealthyThreshold)
	ph.mu.Unlock()

	if m.cfg.Recorder != nil {
		m.cfg.Recorder.ObserveRequest(provider, success, elapsed)
		m.cfg.Recorder.SetHealthScore(provider, score)
		m.cfg.Recorder.SetStatus(provider, status.String())
	}
}

// SetMaintenance flags or clears operator-driven maintenance for a
// provider.
func (m *Monitor) SetMaintenance(provider string, on bool) {
	ph := m.state(provider)
	ph.mu.Lock()
	ph.maintenance = on
	status := ph.statusLocked(m.cfg.UnhealthyThreshold)
	ph.mu.Unlock()

	m.logger.Info("provider maintenance flag changed", "provider", provider, "maintenance", on)
	if m.cfg.Recorder != nil {
		m.cfg.Recorder.SetStatus(provider, status.String())
	}
}

// GetSnapshot returns the current health view of one provider.
func (m *Monitor) GetSnapshot(provider string) Snapshot {
	ph := m.state(provider)
	ph.mu.Lock()
	defer ph.mu.Unlock()
	return ph.snapshotLocked(provider, m.cfg.UnhealthyThreshold)
}

// Snapshots returns the health view of every tracked provider.
func (m *Monitor) Snapshots() map[string]Snapshot {
	m.mu.RLock()
	names := make([]string, 0, len(m.states))
	for name := range m.states {
		names = append(names, name)
	}
	m.mu.RUnlock()

	out := make(map[string]Snapshot, len(names))
	for _, name := range names {
		out[name] = m.GetSnapshot(name)
	}
	return out
}

// Remove drops tracking state for a provider removed from the fleet.
func (m *Monitor) Remove(provider string) {
	m.mu.Lock()
	delete(m.states, provider)
	m.mu.Unlock()
}

func (m *Monitor) state(provider string) *providerHealth {
	m.mu.RLock()
	ph, ok := m.states[provider]
	m.mu.RUnlock()
	if ok {
		return ph
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ph, ok = m.states[provider]; ok {
		return ph
	}
	ph = &providerHealth{}
	m.states[provider] = ph
	return ph
}

// runProbes actively probes every provider on a fixed interval.
func (m *Monitor) runProbes(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopped:
			return
		case <-ticker.C:
			m.probeAll(ctx)
		}
	}
}

// probeAll runs one probe cycle across the current fleet. Probe outcomes
// count like any other attempt: they land in the rolling counters and
// failure streaks, so a failing idle provider's score degrades and its
// streak can cross the unhealthy threshold. The probe flag is kept
// separately so a single failed probe forces Unhealthy immediately.
func (m *Monitor) probeAll(ctx context.Context) {
	for _, invoker := range m.cfg.Probers() {
		probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		start := m.now()
		err := invoker.Probe(probeCtx)
		elapsed := m.now().Sub(start)
		cancel()

		name := invoker.Name()
		m.RecordOutcome(name, err == nil, elapsed)

		ph := m.state(name)
		ph.mu.Lock()
		ph.probeFailed = err != nil
		status := ph.statusLocked(m.cfg.UnhealthyThreshold)
		score := ph.scoreLocked()
		ph.mu.Unlock()

		if err != nil {
			m.logger.Warn("provider probe failed", "provider", name, "error", err)
		} else {
			m.logger.Debug("provider probe succeeded", "provider", name)
		}
		if m.cfg.Recorder != nil {
			m.cfg.Recorder.SetHealthScore(name, score)
			m.cfg.Recorder.SetStatus(name, status.String())
		}
	}
}

// decay resets the windowed counters so the score reflects recent traffic
// rather than all-time history. Consecutive failures and timestamps are
// kept; only the rolling totals reset.
func (m *Monitor) decay() {
	m.mu.RLock()
	names := make([]string, 0, len(m.states))
	for name := range m.states {
		names = append(names, name)
	}
	m.mu.RUnlock()

	for _, name := range names {
		ph := m.state(name)
		ph.mu.Lock()
		ph.totalRequests = 0
		ph.totalFailures = 0
		ph.totalElapsed = 0
		ph.mu.Unlock()
	}

	m.logger.Debug("health counters decayed", "providers", len(names))
}

// scoreLocked computes the 0-100 health score. Caller must hold ph.mu.
//
// The score starts at 100 and loses up to 50 points for the failure rate,
// 10 or 20 points for slow average latency, and 10 points per consecutive
// failure.
func (ph *providerHealth) scoreLocked() float64 {
	score := 100.0

	if ph.totalRequests > 0 {
		failureRate := float64(ph.totalFailures) / float64(ph.totalRequests)
		score -= failureRate * 50

		avg := ph.totalElapsed / time.Duration(ph.totalRequests)
		switch {
		case avg > 5*time.Second:
			score -= 20
		case avg > 2*time.Second:
			score -= 10
		}
	}

	score -= float64(ph.consecutiveFailures) * 10

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// statusLocked derives the status. Caller must hold ph.mu.
func (ph *providerHealth) statusLocked(unhealthyThreshold int) Status {
	if ph.maintenance {
		return StatusMaintenance
	}
	if ph.probeFailed {
		return StatusUnhealthy
	}
	if unhealthyThreshold > 0 && ph.consecutiveFailures > int64(unhealthyThreshold) {
		return StatusUnhealthy
	}
	if ph.scoreLocked() >= healthyScoreThreshold {
		return StatusHealthy
	}
	return StatusDegraded
}

// snapshotLocked builds a Snapshot. Caller must hold ph.mu.
func (ph *providerHealth) snapshotLocked(provider string, unhealthyThreshold int) Snapshot {
	var avg time.Duration
	if ph.totalRequests > 0 {
		avg = ph.totalElapsed / time.Duration(ph.totalRequests)
	}

	return Snapshot{
		Provider:            provider,
		TotalRequests:       ph.totalRequests,
		TotalFailures:       ph.totalFailures,
		ConsecutiveFailures: ph.consecutiveFailures,
		AverageResponseTime: avg,
		LastSuccess:         ph.lastSuccess,
		LastFailure:         ph.lastFailure,
		HealthScore:         ph.scoreLocked(),
		Status:              ph.statusLocked(unhealthyThreshold),
	}
}
