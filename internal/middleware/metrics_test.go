package middleware

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newRegisteredMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}
	return m, reg
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	m, reg := newRegisteredMetrics(t)
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_RateLimitDecisions(t *testing.T) {
	m, _ := newRegisteredMetrics(t)

	m.observeRateLimit("/recommendations", "user", true)
	m.observeRateLimit("/recommendations", "user", true)
	m.observeRateLimit("/recommendations", "user", false)
	m.observeRateLimit("/timeline/for-you", "user", false)

	tests := []struct {
		route    string
		decision string
		want     float64
	}{
		{"/recommendations", DecisionAllowed, 2},
		{"/recommendations", DecisionBlocked, 1},
		{"/timeline/for-you", DecisionBlocked, 1},
		{"/timeline/for-you", DecisionAllowed, 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.rateLimitDecisions.WithLabelValues(tt.route, "user", tt.decision))
		if got != tt.want {
			t.Errorf("%s %s = %v, want %v", tt.route, tt.decision, got, tt.want)
		}
	}
}

func TestMetrics_ObserveHTTP(t *testing.T) {
	m, reg := newRegisteredMetrics(t)

	m.observeHTTP("GET", "/recommendations", 200, 40*time.Millisecond, 1200)
	m.observeHTTP("GET", "/recommendations", 200, 60*time.Millisecond, 900)
	m.observeHTTP("GET", "/analytics", 401, time.Millisecond, 80)

	if got := testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/recommendations", "200")); got != 2 {
		t.Errorf("recommendations 200 count = %v, want 2", got)
	}
	if got, _ := testutil.GatherAndCount(reg, MetricHTTPRequestDuration); got != 2 {
		t.Errorf("duration series = %d, want 2", got)
	}
	if got, _ := testutil.GatherAndCount(reg, MetricHTTPResponseSize); got != 2 {
		t.Errorf("response size series = %d, want one per route", got)
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	m.observeRateLimit("/analytics", "user", false)
	m.observeStoreError()
	m.observeHTTP("GET", "/analytics", 200, time.Millisecond, 10)
}
