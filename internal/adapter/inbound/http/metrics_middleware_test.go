package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsMiddlewareRecordsDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, nil, nil)

	handler := MetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() != "stockpile_exchange_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "method" && lp.GetValue() == "POST" {
					if m.GetHistogram().GetSampleCount() != 1 {
						t.Errorf("expected 1 observation, got %d", m.GetHistogram().GetSampleCount())
					}
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected exchange_duration_seconds metric with method=POST")
	}
}

func TestMetricsMiddlewareRecordsExchangeCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, nil, nil)

	handler := MetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var m dto.Metric
	if err := metrics.ExchangesTotal.WithLabelValues("POST", "ok").Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.Counter.GetValue() != 1 {
		t.Errorf("expected count 1, got %f", m.Counter.GetValue())
	}
}

func TestMetricsMiddlewareErrorStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, nil, nil)

	handler := MetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var m dto.Metric
	if err := metrics.ExchangesTotal.WithLabelValues("POST", "error").Write(&m); err != nil {
		t.Fatal(err)
	}
	if m.Counter.GetValue() != 1 {
		t.Errorf("expected count 1, got %f", m.Counter.GetValue())
	}
}

func TestMetricsGaugeFuncs(t *testing.T) {
	reg := prometheus.NewRegistry()
	started := false
	NewMetrics(reg,
		func() float64 {
			if started {
				return 1
			}
			return 0
		},
		func() float64 { return 3 },
	)

	read := func(name string) float64 {
		t.Helper()
		metricFamilies, err := reg.Gather()
		if err != nil {
			t.Fatal(err)
		}
		for _, mf := range metricFamilies {
			if mf.GetName() == name {
				return mf.GetMetric()[0].GetGauge().GetValue()
			}
		}
		t.Fatalf("metric %s not registered", name)
		return 0
	}

	if got := read("stockpile_engine_started"); got != 0 {
		t.Errorf("engine_started = %f before startup", got)
	}
	started = true
	if got := read("stockpile_engine_started"); got != 1 {
		t.Errorf("engine_started = %f after startup", got)
	}
	if got := read("stockpile_rate_limit_keys"); got != 3 {
		t.Errorf("rate_limit_keys = %f, want 3", got)
	}
}

func TestMetricsOptionalGaugesAbsent(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, nil, nil)
	if metrics.EngineStarted != nil || metrics.RateLimitKeys != nil {
		t.Error("nil gauge funcs must not register gauges")
	}

	metricFamilies, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "stockpile_engine_started", "stockpile_rate_limit_keys":
			t.Errorf("unexpected metric %s", mf.GetName())
		}
	}
}
