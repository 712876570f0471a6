package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequest(t *testing.T) {
	m := New("test")

	m.ObserveRequest("openai", true, 100*time.Millisecond)
	m.ObserveRequest("openai", false, 200*time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("openai")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.failures.WithLabelValues("openai")); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
}

func TestGauges(t *testing.T) {
	m := New("test")

	m.SetHealthScore("openai", 87.5)
	if got := testutil.ToFloat64(m.healthScore.WithLabelValues("openai")); got != 87.5 {
		t.Errorf("health score = %v, want 87.5", got)
	}

	m.SetStatus("openai", "degraded")
	if got := testutil.ToFloat64(m.status.WithLabelValues("openai")); got != 1 {
		t.Errorf("status gauge = %v, want 1 for degraded", got)
	}

	// Unknown status names are ignored rather than exported.
	m.SetStatus("openai", "on-fire")
	if got := testutil.ToFloat64(m.status.WithLabelValues("openai")); got != 1 {
		t.Errorf("status gauge after unknown status = %v, want unchanged 1", got)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	m := New("test")
	m.ObserveRequest("openai", true, 50*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "test_provider_requests_total") {
		t.Error("exposition should contain the namespaced request counter")
	}
}
