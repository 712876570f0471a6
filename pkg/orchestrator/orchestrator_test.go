package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Upreak/miv1-sub001/pkg/balancer"
	"github.com/Upreak/miv1-sub001/pkg/config"
	"github.com/Upreak/miv1-sub001/pkg/executor"
	"github.com/Upreak/miv1-sub001/pkg/health"
	"github.com/Upreak/miv1-sub001/pkg/providers"
	"github.com/Upreak/miv1-sub001/pkg/registry"
	"github.com/Upreak/miv1-sub001/pkg/usage"
)

const successBody = `{
	"model": "test-model",
	"created": 1756600000,
	"choices": [{"message": {"content": "hello"}}],
	"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
}`

// upstream simulates an OpenAI-compatible endpoint that can be toggled
// between success and failure.
type upstream struct {
	server *httptest.Server
	fail   bool
	calls  int
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()

	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.calls++
		if u.fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
			return
		}
		w.Write([]byte(successBody))
	}))
	t.Cleanup(u.server.Close)
	return u
}

func slotFor(name string, u *upstream, priority int) config.ProviderConfig {
	noRetries := 0
	maxConcurrent := 10
	return config.ProviderConfig{
		Name:          name,
		Type:          "generic",
		APIKey:        "test-key",
		BaseURL:       u.server.URL,
		Priority:      priority,
		Timeout:       5 * time.Second,
		MaxRetries:    &noRetries,
		MaxConcurrent: &maxConcurrent,
	}
}

// fixture wires a full orchestrator over httptest upstreams.
type fixture struct {
	orch    *Orchestrator
	tracker *usage.Tracker
	monitor *health.Monitor
}

func newFixture(t *testing.T, dailyLimit int64, slots ...config.ProviderConfig) *fixture {
	t.Helper()

	reg, err := registry.Load(slots)
	if err != nil {
		t.Fatalf("registry.Load() error = %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	tracker := usage.NewTracker(nil)
	t.Cleanup(func() { tracker.Close() })

	monitor, err := health.NewMonitor(health.Config{UnhealthyThreshold: 5})
	if err != nil {
		t.Fatalf("health.NewMonitor() error = %v", err)
	}

	exec := executor.NewExecutor(tracker, monitor, 5*time.Minute)

	strategy, err := balancer.NewStrategy(balancer.StrategyPriority)
	if err != nil {
		t.Fatalf("balancer.NewStrategy() error = %v", err)
	}

	orch, err := New(Deps{
		Registry:   reg,
		Tracker:    tracker,
		Monitor:    monitor,
		Executor:   exec,
		Strategy:   strategy,
		DailyLimit: dailyLimit,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	return &fixture{orch: orch, tracker: tracker, monitor: monitor}
}

func TestGenerateFirstProviderWins(t *testing.T) {
	primary := newUpstream(t)
	secondary := newUpstream(t)
	f := newFixture(t, 0, slotFor("primary", primary, 1), slotFor("secondary", secondary, 2))

	result := f.orch.Generate(context.Background(), &providers.Payload{
		Messages: []providers.Message{{Role: providers.RoleUser, Content: "hi"}},
	})

	if !result.Success {
		t.Fatalf("Generate() failed: %v", result.Err)
	}
	if result.Provider != "primary" {
		t.Errorf("Provider = %q, want primary", result.Provider)
	}
	if result.Text != "hello" {
		t.Errorf("Text = %q, want hello", result.Text)
	}
	if result.Usage.TotalTokens != 5 {
		t.Errorf("TotalTokens = %d, want 5", result.Usage.TotalTokens)
	}
	if result.RequestID == "" {
		t.Error("RequestID should be set")
	}
	if secondary.calls != 0 {
		t.Errorf("secondary received %d calls, want 0 (first success wins)", secondary.calls)
	}
}

func TestGenerateFallsOverOnFailure(t *testing.T) {
	primary := newUpstream(t)
	primary.fail = true
	secondary := newUpstream(t)
	f := newFixture(t, 0, slotFor("primary", primary, 1), slotFor("secondary", secondary, 2))

	result := f.orch.Generate(context.Background(), &providers.Payload{})

	if !result.Success {
		t.Fatalf("Generate() failed: %v", result.Err)
	}
	if result.Provider != "secondary" {
		t.Errorf("Provider = %q, want secondary", result.Provider)
	}
	if result.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", result.Attempts)
	}

	// The failed provider went into cooldown.
	if f.tracker.CanUse("primary", 0) {
		t.Error("primary should be in cooldown after exhausting its retries")
	}
}

func TestGenerateAllExhausted(t *testing.T) {
	primary := newUpstream(t)
	primary.fail = true
	secondary := newUpstream(t)
	secondary.fail = true
	f := newFixture(t, 0, slotFor("primary", primary, 1), slotFor("secondary", secondary, 2))

	result := f.orch.Generate(context.Background(), &providers.Payload{})

	if result.Success {
		t.Fatal("Generate() succeeded, want exhaustion")
	}

	var exhausted *ExhaustedError
	if !errors.As(result.Err, &exhausted) {
		t.Fatalf("Err = %v, want *ExhaustedError", result.Err)
	}
	if len(exhausted.Tried) != 2 {
		t.Errorf("Tried = %v, want both providers", exhausted.Tried)
	}

	// The exhaustion error carries the last provider's error.
	var invocation *providers.InvocationError
	if !errors.As(result.Err, &invocation) {
		t.Errorf("Err should wrap the last provider error, got %v", result.Err)
	}
}

func TestGenerateNoEligibleProviders(t *testing.T) {
	primary := newUpstream(t)
	slot := slotFor("primary", primary, 1)
	disabled := false
	slot.Enabled = &disabled

	f := newFixture(t, 0, slot)

	result := f.orch.Generate(context.Background(), &providers.Payload{})
	if result.Success {
		t.Fatal("Generate() succeeded, want rejection")
	}
	if !errors.Is(result.Err, ErrNoEligibleProviders) {
		t.Errorf("Err = %v, want ErrNoEligibleProviders", result.Err)
	}
	if primary.calls != 0 {
		t.Errorf("disabled provider received %d calls, want 0", primary.calls)
	}
}

func TestGenerateSkipsProviderOverQuota(t *testing.T) {
	primary := newUpstream(t)
	secondary := newUpstream(t)

	primarySlot := slotFor("primary", primary, 1)
	primarySlot.DailyLimit = 1
	f := newFixture(t, 0, primarySlot, slotFor("secondary", secondary, 2))

	first := f.orch.Generate(context.Background(), &providers.Payload{})
	if !first.Success || first.Provider != "primary" {
		t.Fatalf("first request = %+v, want success via primary", first)
	}

	// Primary has spent its quota; the second request routes around it.
	second := f.orch.Generate(context.Background(), &providers.Payload{})
	if !second.Success || second.Provider != "secondary" {
		t.Fatalf("second request = %+v, want success via secondary", second)
	}
}

func TestGenerateSkipsMaintenanceProvider(t *testing.T) {
	primary := newUpstream(t)
	secondary := newUpstream(t)
	f := newFixture(t, 0, slotFor("primary", primary, 1), slotFor("secondary", secondary, 2))

	if err := f.orch.SetMaintenance("primary", true); err != nil {
		t.Fatalf("SetMaintenance() error = %v", err)
	}

	result := f.orch.Generate(context.Background(), &providers.Payload{})
	if !result.Success || result.Provider != "secondary" {
		t.Fatalf("result = %+v, want success via secondary", result)
	}
	if primary.calls != 0 {
		t.Errorf("maintenance provider received %d calls, want 0", primary.calls)
	}
}

func TestSetStrategy(t *testing.T) {
	primary := newUpstream(t)
	f := newFixture(t, 0, slotFor("primary", primary, 1))

	if err := f.orch.SetStrategy(balancer.StrategyRoundRobin); err != nil {
		t.Fatalf("SetStrategy() error = %v", err)
	}
	if got := f.orch.GetStatus().Strategy; got != balancer.StrategyRoundRobin {
		t.Errorf("Strategy = %q, want round-robin", got)
	}

	if err := f.orch.SetStrategy("bogus"); err == nil {
		t.Error("SetStrategy(\"bogus\") error = nil, want unknown strategy error")
	}
}

func TestAdminProviderLifecycle(t *testing.T) {
	primary := newUpstream(t)
	extra := newUpstream(t)
	f := newFixture(t, 0, slotFor("primary", primary, 1))

	if err := f.orch.AddProvider(slotFor("extra", extra, 0)); err != nil {
		t.Fatalf("AddProvider() error = %v", err)
	}

	// The new provider has lower priority value, so it is selected first.
	result := f.orch.Generate(context.Background(), &providers.Payload{})
	if !result.Success || result.Provider != "extra" {
		t.Fatalf("result = %+v, want success via extra", result)
	}

	if err := f.orch.RemoveProvider("extra"); err != nil {
		t.Fatalf("RemoveProvider() error = %v", err)
	}
	if err := f.orch.RemoveProvider("extra"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("second RemoveProvider() error = %v, want ErrProviderNotFound", err)
	}

	result = f.orch.Generate(context.Background(), &providers.Payload{})
	if !result.Success || result.Provider != "primary" {
		t.Fatalf("result after removal = %+v, want success via primary", result)
	}
}

func TestGetMetricsAndStatus(t *testing.T) {
	primary := newUpstream(t)
	f := newFixture(t, 100, slotFor("primary", primary, 1))

	f.orch.Generate(context.Background(), &providers.Payload{})

	metrics, err := f.orch.GetMetrics("primary")
	if err != nil {
		t.Fatalf("GetMetrics() error = %v", err)
	}
	if metrics.TotalRequests != 1 || metrics.UsageToday != 1 {
		t.Errorf("metrics = %+v, want 1 request and 1 usage", metrics)
	}
	if metrics.DailyLimit != 100 {
		t.Errorf("DailyLimit = %d, want fleet-wide default 100", metrics.DailyLimit)
	}
	if metrics.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", metrics.Status)
	}

	if _, err := f.orch.GetMetrics("ghost"); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("GetMetrics(ghost) error = %v, want ErrProviderNotFound", err)
	}

	report := f.orch.GetStatus()
	if report.Strategy != balancer.StrategyPriority {
		t.Errorf("Strategy = %q, want priority", report.Strategy)
	}
	if len(report.Providers) != 1 || report.Providers[0].Name != "primary" {
		t.Errorf("Providers = %+v, want just primary", report.Providers)
	}
}

func TestApplyConfigReconcilesFleet(t *testing.T) {
	primary := newUpstream(t)
	replacement := newUpstream(t)
	f := newFixture(t, 0, slotFor("primary", primary, 1))

	next := &config.Config{
		Providers: []config.ProviderConfig{
			slotFor("replacement", replacement, 1),
		},
		Routing: config.RoutingConfig{Strategy: balancer.StrategyLeastBusy},
		Limits:  config.LimitsConfig{DailyLimit: 50},
	}
	f.orch.ApplyConfig(next)

	report := f.orch.GetStatus()
	if report.Strategy != balancer.StrategyLeastBusy {
		t.Errorf("Strategy = %q, want least-busy", report.Strategy)
	}
	if len(report.Providers) != 1 || report.Providers[0].Name != "replacement" {
		t.Errorf("Providers = %+v, want just replacement", report.Providers)
	}
	if report.Providers[0].DailyLimit != 50 {
		t.Errorf("DailyLimit = %d, want 50", report.Providers[0].DailyLimit)
	}
}
