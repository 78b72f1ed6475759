package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}
}

func TestRegistry_HTTPMetrics(t *testing.T) {
	reg := NewRegistry()

	// Verify HTTP metrics are registered
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	// Should have go runtime metrics at minimum
	if len(mfs) == 0 {
		t.Error("expected some metrics to be registered")
	}
}

func TestRegistry_RecordRequest(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("GET", "/metrics", 200, 0.05)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_requests_total" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected http_requests_total metric")
	}
}

func TestRegistry_RecordRequest_StatusCodes(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{400, "4xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			reg := NewRegistry()
			reg.RecordRequest("GET", "/test", tt.status, 0.01)

			mfs, err := reg.Gather()
			if err != nil {
				t.Fatalf("gather failed: %v", err)
			}

			found := false
			for _, mf := range mfs {
				if mf.GetName() == "http_requests_total" {
					for _, m := range mf.GetMetric() {
						for _, label := range m.GetLabel() {
							if label.GetName() == "status" && label.GetValue() == tt.expected {
								found = true
							}
						}
					}
				}
			}
			if !found {
				t.Errorf("expected status label %s for status code %d", tt.expected, tt.status)
			}
		})
	}
}

func TestRegistry_InFlight(t *testing.T) {
	reg := NewRegistry()

	reg.InFlightInc()
	reg.InFlightInc()
	reg.InFlightDec()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_requests_in_flight" {
			found = true
			for _, m := range mf.GetMetric() {
				if m.GetGauge().GetValue() != 1 {
					t.Errorf("expected in-flight gauge to be 1, got %v", m.GetGauge().GetValue())
				}
			}
		}
	}
	if !found {
		t.Error("expected http_requests_in_flight metric")
	}
}

func TestRegistry_DurationHistogram(t *testing.T) {
	reg := NewRegistry()

	reg.RecordRequest("GET", "/healthz", 200, 0.123)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "http_request_duration_seconds" {
			found = true
			for _, m := range mf.GetMetric() {
				hist := m.GetHistogram()
				if hist.GetSampleCount() != 1 {
					t.Errorf("expected sample count 1, got %d", hist.GetSampleCount())
				}
				if hist.GetSampleSum() < 0.12 || hist.GetSampleSum() > 0.13 {
					t.Errorf("expected sample sum ~0.123, got %v", hist.GetSampleSum())
				}
			}
		}
	}
	if !found {
		t.Error("expected http_request_duration_seconds metric")
	}
}

// Ensure the registry implements prometheus.Gatherer interface
func TestRegistry_ImplementsGatherer(t *testing.T) {
	reg := NewRegistry()
	var _ prometheus.Gatherer = reg
}

func findCounter(t *testing.T, reg *Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, l := range m.GetLabel() {
				if v, ok := labels[l.GetName()]; ok && v == l.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestRegistry_RecordUpstreamAttempt(t *testing.T) {
	reg := NewRegistry()

	reg.RecordUpstreamAttempt("stock_zh_a_spot_em", "error", 0.2)
	reg.RecordUpstreamAttempt("stock_zh_a_spot_em", "ok", 0.4)
	reg.RecordUpstreamAttempt("stock_zh_a_spot_em", "error", 0.1)

	got := findCounter(t, reg, "stockmcp_upstream_attempts_total",
		map[string]string{"dataset": "stock_zh_a_spot_em", "outcome": "error"})
	if got != 2 {
		t.Errorf("expected 2 failed attempts, got %v", got)
	}
}

func TestRegistry_RecordCacheLookup(t *testing.T) {
	reg := NewRegistry()

	reg.RecordCacheLookup("market_data", true)
	reg.RecordCacheLookup("market_data", false)
	reg.RecordCacheLookup("market_data", true)

	hits := findCounter(t, reg, "stockmcp_cache_lookups_total",
		map[string]string{"namespace": "market_data", "result": "hit"})
	misses := findCounter(t, reg, "stockmcp_cache_lookups_total",
		map[string]string{"namespace": "market_data", "result": "miss"})
	if hits != 2 || misses != 1 {
		t.Errorf("expected 2 hits / 1 miss, got %v / %v", hits, misses)
	}
}

func TestRegistry_RecordToolCall(t *testing.T) {
	reg := NewRegistry()

	reg.RecordToolCall("get_market_data", "breadth", "ok", 0.05)

	got := findCounter(t, reg, "stockmcp_tool_calls_total",
		map[string]string{"tool": "get_market_data", "data_type": "breadth", "status": "ok"})
	if got != 1 {
		t.Errorf("expected 1 tool call, got %v", got)
	}
}

func TestRegistry_SetCacheEntries(t *testing.T) {
	reg := NewRegistry()
	reg.SetCacheEntries(7)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "stockmcp_cache_entries" {
			if v := mf.GetMetric()[0].GetGauge().GetValue(); v != 7 {
				t.Errorf("expected 7 entries, got %v", v)
			}
			return
		}
	}
	t.Error("expected stockmcp_cache_entries metric")
}
