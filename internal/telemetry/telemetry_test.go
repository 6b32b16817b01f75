package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSetupDisabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if p.Enabled() {
		t.Error("provider enabled without configuration")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown: %v", err)
	}

	// Disabled middleware must return the handler unchanged.
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if wrapped := p.Middleware(h); any(wrapped) == nil {
		t.Fatal("nil middleware result")
	}
}

func TestSetupAndMiddleware(t *testing.T) {
	var buf bytes.Buffer
	p, err := Setup(context.Background(), Config{
		Enabled:        true,
		ServiceName:    "stockpile-test",
		ServiceVersion: "0.0.1",
		ExportInterval: time.Hour,
		Writer:         &buf,
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	var called bool
	h := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/mcp", nil))
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("called = %v status = %d", called, rec.Code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "bridge.exchange") {
		t.Errorf("exported data lacks the exchange span:\n%s", out)
	}
	if !strings.Contains(out, "stockpile.exchanges") {
		t.Errorf("exported data lacks the exchange counter:\n%s", out)
	}
}
