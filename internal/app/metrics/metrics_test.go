package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	io_prometheus_client "github.com/prometheus/client_model/go"
)

func TestInstrumentHandlerRecordsMetrics(t *testing.T) {
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/services", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	if !metricCounterGreaterOrEqual(t, "fleet_orchestrator_http_requests_total", map[string]string{
		"method": "GET",
		"path":   "/v1/services",
		"status": "202",
	}, 1) {
		t.Fatalf("expected http request counter to increment")
	}

	if !metricHistogramCountGreaterOrEqual(t, "fleet_orchestrator_http_request_duration_seconds", map[string]string{
		"method": "GET",
		"path":   "/v1/services",
	}, 1) {
		t.Fatalf("expected http duration histogram to record samples")
	}
}

func TestInstrumentHandler_MetricsPathPassthrough(t *testing.T) {
	called := false
	handler := InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("expected /metrics path to pass through to handler")
	}
}

func TestRecordTriggerEvaluation(t *testing.T) {
	RecordTriggerEvaluation("triggered")
	if !metricCounterGreaterOrEqual(t, "fleet_orchestrator_trigger_evaluations_total", map[string]string{
		"status": "triggered",
	}, 1) {
		t.Fatal("expected trigger evaluation counter to increment")
	}
}

func TestRecordScaleAdjustment(t *testing.T) {
	RecordScaleAdjustment("payments", 2)
	if !metricCounterGreaterOrEqual(t, "fleet_orchestrator_loadctl_scale_adjustments_total", map[string]string{
		"service":   "payments",
		"direction": "up",
	}, 1) {
		t.Fatal("expected scale-up counter to increment")
	}

	RecordScaleAdjustment("payments", -1)
	if !metricCounterGreaterOrEqual(t, "fleet_orchestrator_loadctl_scale_adjustments_total", map[string]string{
		"service":   "payments",
		"direction": "down",
	}, 1) {
		t.Fatal("expected scale-down counter to increment")
	}
}

func TestRecordUpgradeExecution(t *testing.T) {
	RecordUpgradeExecution(true)
	if !metricCounterGreaterOrEqual(t, "fleet_orchestrator_upgrade_schedule_runs_total", map[string]string{
		"status": "success",
	}, 1) {
		t.Fatal("expected upgrade success counter to increment")
	}

	RecordUpgradeExecution(false)
	if !metricCounterGreaterOrEqual(t, "fleet_orchestrator_upgrade_schedule_runs_total", map[string]string{
		"status": "failure",
	}, 1) {
		t.Fatal("expected upgrade failure counter to increment")
	}
}

func metricCounterGreaterOrEqual(t *testing.T, name string, labels map[string]string, min float64) bool {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) && metric.GetCounter() != nil {
				return metric.GetCounter().GetValue() >= min
			}
		}
	}
	return false
}

func metricGaugeEquals(t *testing.T, name string, labels map[string]string, expected float64) bool {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) && metric.GetGauge() != nil {
				return metric.GetGauge().GetValue() == expected
			}
		}
	}
	return false
}

func metricHistogramCountGreaterOrEqual(t *testing.T, name string, labels map[string]string, min uint64) bool {
	t.Helper()
	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) && metric.GetHistogram() != nil {
				return metric.GetHistogram().GetSampleCount() >= min
			}
		}
	}
	return false
}

func labelsMatch(metric *io_prometheus_client.Metric, labels map[string]string) bool {
	if len(metric.GetLabel()) < len(labels) {
		return false
	}
	matched := 0
	for _, lbl := range metric.GetLabel() {
		if val, ok := labels[lbl.GetName()]; ok && val == lbl.GetValue() {
			matched++
		}
	}
	return matched == len(labels)
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/", "/"},
		{"//", "/"},
		{"/healthz", "/healthz"},
		{"/v1/system/descriptors", "/v1/system"},
		{"/v1/services", "/v1/services"},
		{"/v1/services/payments", "/v1/services/:name"},
		{"/v1/services/payments/scale", "/v1/services/:name/scale"},
		{"/v1/trigger/rulesets/acme", "/v1/trigger/rulesets/:owner"},
		{"/v1/trigger/rulesets/acme/checkout", "/v1/trigger/rulesets/:owner"},
		{"/v1/load/monitor/payments", "/v1/load/monitor/:service"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := canonicalPath(tt.input)
			if result != tt.expected {
				t.Errorf("canonicalPath(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestStatusRecorder(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}
	sr.WriteHeader(http.StatusNotFound)
	if sr.status != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", sr.status)
	}

	rec2 := httptest.NewRecorder()
	sr2 := &statusRecorder{ResponseWriter: rec2, status: 0}
	n, err := sr2.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != 5 {
		t.Errorf("expected 5 bytes written, got %d", n)
	}
	if sr2.status != http.StatusOK {
		t.Errorf("expected default status 200, got %d", sr2.status)
	}

	rec3 := httptest.NewRecorder()
	sr3 := &statusRecorder{ResponseWriter: rec3, status: http.StatusCreated}
	sr3.Write([]byte("test"))
	if sr3.status != http.StatusCreated {
		t.Errorf("expected status 201 preserved, got %d", sr3.status)
	}
}

func TestMetaLabel(t *testing.T) {
	tests := []struct {
		name     string
		meta     map[string]string
		expected string
	}{
		{"nil map", nil, "unknown"},
		{"empty map", map[string]string{}, "unknown"},
		{"service key", map[string]string{"service": "payments"}, "payments"},
		{"owner key", map[string]string{"owner": "acme"}, "acme"},
		{"resource key", map[string]string{"resource": "res-1"}, "res-1"},
		{"service takes precedence", map[string]string{"service": "payments", "owner": "acme"}, "payments"},
		{"empty service falls through", map[string]string{"service": "", "owner": "acme"}, "acme"},
		{"all empty returns unknown", map[string]string{"service": "", "owner": ""}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := metaLabel(tt.meta)
			if result != tt.expected {
				t.Errorf("metaLabel(%v) = %q, want %q", tt.meta, result, tt.expected)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	h := Handler()
	if h == nil {
		t.Fatal("Handler() should return non-nil handler")
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected non-empty metrics response")
	}
}

func TestObservationHooks(t *testing.T) {
	hooks := ObservationHooks("test_ns", "test_sub", "test_op")

	if hooks.OnStart == nil {
		t.Fatal("OnStart should not be nil")
	}
	if hooks.OnComplete == nil {
		t.Fatal("OnComplete should not be nil")
	}

	hooks.OnStart(nil, map[string]string{"service": "test-svc"})
	hooks.OnComplete(nil, map[string]string{"service": "test-svc"}, nil, 100*time.Millisecond)
	hooks.OnComplete(nil, map[string]string{"service": "test-svc"}, fmt.Errorf("test error"), 50*time.Millisecond)

	hooks2 := ObservationHooks("test_ns", "test_sub", "test_op")
	if hooks2.OnStart == nil || hooks2.OnComplete == nil {
		t.Fatal("cached hooks should be valid")
	}
}

func TestComponentHookFactories(t *testing.T) {
	tests := []struct {
		name  string
		hooks func() any
	}{
		{"LoadCtlSweepHooks", func() any { return LoadCtlSweepHooks() }},
		{"UpgradeScheduleHooks", func() any { return UpgradeScheduleHooks() }},
		{"OrchestratorReconcileHooks", func() any { return OrchestratorReconcileHooks() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.hooks(); result == nil {
				t.Errorf("%s() returned nil", tt.name)
			}
		})
	}
}
