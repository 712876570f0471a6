package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Upreak/miv1-sub001/internal/providertest"
	"github.com/Upreak/miv1-sub001/pkg/config"
	"github.com/Upreak/miv1-sub001/pkg/health"
	"github.com/Upreak/miv1-sub001/pkg/providers"
	"github.com/Upreak/miv1-sub001/pkg/registry"
	"github.com/Upreak/miv1-sub001/pkg/usage"
)

func newTestExecutor(t *testing.T) (*Executor, *usage.Tracker, *health.Monitor, *[]time.Duration) {
	t.Helper()

	tracker := usage.NewTracker(nil)
	t.Cleanup(func() { tracker.Close() })

	monitor, err := health.NewMonitor(health.Config{UnhealthyThreshold: 5})
	if err != nil {
		t.Fatalf("NewMonitor() error = %v", err)
	}

	executor := NewExecutor(tracker, monitor, 5*time.Minute)

	// Record backoff waits instead of sleeping.
	var sleeps []time.Duration
	executor.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}

	return executor, tracker, monitor, &sleeps
}

func entryFor(invoker providers.Invoker, maxRetries, maxConcurrent int) *registry.Entry {
	return &registry.Entry{
		Config: config.ProviderConfig{
			Name:          invoker.Name(),
			Type:          "generic",
			MaxRetries:    &maxRetries,
			MaxConcurrent: &maxConcurrent,
			Timeout:       time.Second,
		},
		Invoker: invoker,
	}
}

func TestExecuteSuccessFirstAttempt(t *testing.T) {
	executor, tracker, monitor, sleeps := newTestExecutor(t)
	mock := providertest.NewMockInvoker("openai")

	outcome := executor.Execute(context.Background(), entryFor(mock, 3, 10), &providers.Payload{})

	if outcome.Code != Success {
		t.Fatalf("Code = %v, want success (err=%v)", outcome.Code, outcome.Err)
	}
	if outcome.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", outcome.Attempts)
	}
	if outcome.Result == nil || outcome.Result.Text == "" {
		t.Error("Result should carry the provider response")
	}
	if len(*sleeps) != 0 {
		t.Errorf("backoff waits = %v, want none", *sleeps)
	}
	if state := tracker.GetState("openai"); state.Count != 1 {
		t.Errorf("usage count = %d, want exactly 1", state.Count)
	}
	if snap := monitor.GetSnapshot("openai"); snap.TotalRequests != 1 || snap.TotalFailures != 0 {
		t.Errorf("monitor saw %d/%d, want 1 request 0 failures", snap.TotalRequests, snap.TotalFailures)
	}
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	executor, tracker, monitor, sleeps := newTestExecutor(t)

	calls := 0
	mock := providertest.NewMockInvoker("flaky")
	mock.InvokeFunc = func(ctx context.Context, payload *providers.Payload) (*providers.Result, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("rate limited")
		}
		return &providers.Result{Text: "ok"}, nil
	}

	outcome := executor.Execute(context.Background(), entryFor(mock, 3, 10), &providers.Payload{})

	if outcome.Code != Success {
		t.Fatalf("Code = %v, want success", outcome.Code)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", outcome.Attempts)
	}

	// Backoff doubles: 1s before attempt 2, 2s before attempt 3.
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(*sleeps) != len(want) {
		t.Fatalf("backoff waits = %v, want %v", *sleeps, want)
	}
	for i, d := range want {
		if (*sleeps)[i] != d {
			t.Errorf("backoff wait %d = %v, want %v", i, (*sleeps)[i], d)
		}
	}

	// Success recorded exactly once despite three attempts.
	if state := tracker.GetState("flaky"); state.Count != 1 {
		t.Errorf("usage count = %d, want 1", state.Count)
	}
	// Every attempt counted, success reset the streak.
	snap := monitor.GetSnapshot("flaky")
	if snap.TotalRequests != 3 || snap.TotalFailures != 2 || snap.ConsecutiveFailures != 0 {
		t.Errorf("monitor saw %+v, want 3 requests, 2 failures, streak 0", snap)
	}
}

func TestExecuteExhaustionSetsCooldown(t *testing.T) {
	executor, tracker, _, sleeps := newTestExecutor(t)

	lastErr := errors.New("upstream down")
	mock := providertest.NewMockInvoker("down")
	mock.InvokeFunc = func(ctx context.Context, payload *providers.Payload) (*providers.Result, error) {
		return nil, lastErr
	}

	outcome := executor.Execute(context.Background(), entryFor(mock, 2, 10), &providers.Payload{})

	if outcome.Code != TransientFailure {
		t.Fatalf("Code = %v, want transient failure", outcome.Code)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3 (initial + 2 retries)", outcome.Attempts)
	}
	if !errors.Is(outcome.Err, lastErr) {
		t.Errorf("Err = %v, want last attempt error", outcome.Err)
	}
	if len(*sleeps) != 2 {
		t.Errorf("backoff waits = %v, want 2 waits", *sleeps)
	}

	if tracker.CanUse("down", 0) {
		t.Error("provider should be in cooldown after retry exhaustion")
	}
	if state := tracker.GetState("down"); state.Count != 0 {
		t.Errorf("usage count = %d, want 0 (failures never count)", state.Count)
	}
}

func TestExecuteCancelledOnFinalAttemptSkipsCooldown(t *testing.T) {
	executor, tracker, _, _ := newTestExecutor(t)

	// The caller gives up while the last attempt is in flight: the
	// provider exhausts its budget, but the failure is the caller's.
	ctx, cancel := context.WithCancel(context.Background())
	mock := providertest.NewMockInvoker("abandoned")
	mock.InvokeFunc = func(ctx context.Context, payload *providers.Payload) (*providers.Result, error) {
		cancel()
		return nil, ctx.Err()
	}

	outcome := executor.Execute(ctx, entryFor(mock, 0, 10), &providers.Payload{})

	if outcome.Code != TransientFailure {
		t.Fatalf("Code = %v, want transient failure", outcome.Code)
	}
	if outcome.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", outcome.Attempts)
	}
	if !tracker.CanUse("abandoned", 0) {
		t.Error("caller cancellation must not put the provider in cooldown")
	}
}

func TestExecuteSaturatedFailsFast(t *testing.T) {
	executor, tracker, _, _ := newTestExecutor(t)

	release := make(chan struct{})
	started := make(chan struct{})
	mock := providertest.NewMockInvoker("busy")
	mock.InvokeFunc = func(ctx context.Context, payload *providers.Payload) (*providers.Result, error) {
		close(started)
		<-release
		return &providers.Result{Text: "ok"}, nil
	}

	entry := entryFor(mock, 0, 1)

	done := make(chan Outcome, 1)
	go func() {
		done <- executor.Execute(context.Background(), entry, &providers.Payload{})
	}()
	<-started

	if got := executor.InFlight("busy"); got != 1 {
		t.Errorf("InFlight() = %d, want 1", got)
	}

	// Second request finds the gate full and fails over without invoking.
	outcome := executor.Execute(context.Background(), entry, &providers.Payload{})
	if outcome.Code != Saturated {
		t.Fatalf("Code = %v, want saturated", outcome.Code)
	}
	if outcome.Err != nil {
		t.Errorf("Err = %v, want nil for saturation", outcome.Err)
	}
	if tracker.CanUse("busy", 0) != true {
		t.Error("saturation must not set a cooldown")
	}
	if mock.InvokeCount() != 1 {
		t.Errorf("InvokeCount() = %d, want 1 (saturated call never invokes)", mock.InvokeCount())
	}

	close(release)
	if first := <-done; first.Code != Success {
		t.Errorf("first request Code = %v, want success", first.Code)
	}
	if got := executor.InFlight("busy"); got != 0 {
		t.Errorf("InFlight() after completion = %d, want 0", got)
	}
}

func TestExecuteUnlimitedConcurrency(t *testing.T) {
	executor, _, _, _ := newTestExecutor(t)

	release := make(chan struct{})
	mock := providertest.NewMockInvoker("open")
	mock.InvokeFunc = func(ctx context.Context, payload *providers.Payload) (*providers.Result, error) {
		<-release
		return &providers.Result{Text: "ok"}, nil
	}

	// max_concurrent 0 means no ceiling: none of these may saturate.
	entry := entryFor(mock, 0, 0)
	const parallel = 5
	done := make(chan Outcome, parallel)
	for i := 0; i < parallel; i++ {
		go func() {
			done <- executor.Execute(context.Background(), entry, &providers.Payload{})
		}()
	}

	for executor.InFlight("open") != parallel {
		time.Sleep(time.Millisecond)
	}
	close(release)

	for i := 0; i < parallel; i++ {
		if outcome := <-done; outcome.Code != Success {
			t.Fatalf("outcome %d = %v, want success", i, outcome.Code)
		}
	}
}

func TestExecuteCancelledDuringBackoff(t *testing.T) {
	executor, tracker, _, _ := newTestExecutor(t)

	mock := providertest.NewMockInvoker("slow")
	mock.InvokeFunc = func(ctx context.Context, payload *providers.Payload) (*providers.Result, error) {
		return nil, errors.New("timeout")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := executor.Execute(ctx, entryFor(mock, 3, 10), &providers.Payload{})

	if outcome.Code != TransientFailure {
		t.Fatalf("Code = %v, want transient failure", outcome.Code)
	}
	if outcome.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1 (no retries after cancellation)", outcome.Attempts)
	}
	if tracker.CanUse("slow", 0) != true {
		t.Error("cancellation must not set a cooldown")
	}
}
