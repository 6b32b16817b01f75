package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stockpile-hq/stockpile/internal/domain/exchange"
	"github.com/stockpile-hq/stockpile/internal/domain/runtime"
)

// stubEngine runs a caller-supplied exchange function.
type stubEngine struct {
	fn func(ctx context.Context, scope *exchange.Scope, src *exchange.BodySource, acc *exchange.Accumulator) error
}

func (e *stubEngine) HandleExchange(ctx context.Context, scope *exchange.Scope, src *exchange.BodySource, acc *exchange.Accumulator) error {
	return e.fn(ctx, scope, src, acc)
}

func instantStart(engine exchange.Engine) runtime.StartFunc {
	return func(ctx context.Context) (exchange.Engine, error) {
		return engine, nil
	}
}

func newTestBridge(start runtime.StartFunc, timeout time.Duration) *BridgeHandler {
	logger := slog.New(slog.DiscardHandler)
	return NewBridgeHandler(runtime.NewHandle(start), timeout, nil, logger)
}

// envelope is the synthesized JSON-RPC error response shape. ID is kept raw
// so tests can assert it is a literal null, not merely absent.
type envelope struct {
	JSONRPC string `json:"jsonrpc"`
	Error   struct {
		Code    int64  `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	ID json.RawMessage `json:"id"`
}

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("body is not a JSON-RPC envelope: %v\nbody: %s", err, body)
	}
	if env.JSONRPC != "2.0" {
		t.Errorf("jsonrpc = %q, want 2.0", env.JSONRPC)
	}
	if string(env.ID) != "null" {
		t.Errorf("id = %q, want literal null", env.ID)
	}
	return env
}

func TestBridgeResponseFidelity(t *testing.T) {
	// 0xE9 is latin-1 é: header values must round-trip byte-for-byte.
	weird := []byte{0xE9, 0x20, 0xFF}

	engine := &stubEngine{fn: func(ctx context.Context, scope *exchange.Scope, src *exchange.BodySource, acc *exchange.Accumulator) error {
		ev := src.Next()
		if ev.Kind != exchange.InputBody {
			return errors.New("expected body event first")
		}
		if err := acc.Send(exchange.OutputEvent{
			Kind:   exchange.OutputStart,
			Status: 201,
			Headers: []exchange.HeaderPair{
				{Name: []byte("content-type"), Value: []byte("application/json")},
				{Name: []byte("x-raw-bytes"), Value: weird},
				{Name: []byte("content-length"), Value: []byte("999")},
			},
		}); err != nil {
			return err
		}
		return acc.Send(exchange.OutputEvent{
			Kind: exchange.OutputChunk,
			Body: append([]byte(`{"echo":`), append(ev.Body, '}')...),
			More: false,
		})
	}}

	bridge := newTestBridge(instantStart(engine), time.Second)
	req := httptest.NewRequest("POST", "/mcp", strings.NewReader(`"hi"`))
	rec := httptest.NewRecorder()
	bridge.ServeHTTP(rec, req)

	if rec.Code != 201 {
		t.Fatalf("status = %d, want 201\nbody: %s", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("content-type = %q", got)
	}
	if got := rec.Header().Get("X-Raw-Bytes"); got != string(weird) {
		t.Errorf("x-raw-bytes = %q, want %q", got, weird)
	}
	if rec.Header().Get("Content-Length") != "" {
		t.Error("stale content-length copied from the accumulator")
	}
	if got := rec.Body.String(); got != `{"echo":"hi"}` {
		t.Errorf("body = %q", got)
	}
}

func TestBridgeTimeout(t *testing.T) {
	engine := &stubEngine{fn: func(ctx context.Context, scope *exchange.Scope, src *exchange.BodySource, acc *exchange.Accumulator) error {
		<-ctx.Done()
		return ctx.Err()
	}}

	bridge := newTestBridge(instantStart(engine), 30*time.Millisecond)
	req := httptest.NewRequest("POST", "/mcp", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	bridge.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if env.Error.Code != -32000 {
		t.Errorf("code = %d, want -32000", env.Error.Code)
	}
	if env.Error.Message != "Request timed out" {
		t.Errorf("message = %q", env.Error.Message)
	}
}

func TestBridgeEngineError(t *testing.T) {
	engine := &stubEngine{fn: func(ctx context.Context, scope *exchange.Scope, src *exchange.BodySource, acc *exchange.Accumulator) error {
		return errors.New("runtime broke")
	}}

	bridge := newTestBridge(instantStart(engine), time.Second)
	req := httptest.NewRequest("POST", "/mcp", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	bridge.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if env.Error.Code != -32603 {
		t.Errorf("code = %d, want -32603", env.Error.Code)
	}
}

func TestBridgeStartupFailureThenRetry(t *testing.T) {
	var attempts atomic.Int32
	engine := &stubEngine{fn: func(ctx context.Context, scope *exchange.Scope, src *exchange.BodySource, acc *exchange.Accumulator) error {
		if err := acc.Send(exchange.OutputEvent{Kind: exchange.OutputStart, Status: 200}); err != nil {
			return err
		}
		return acc.Send(exchange.OutputEvent{Kind: exchange.OutputChunk, Body: []byte("ok"), More: false})
	}}
	start := func(ctx context.Context) (exchange.Engine, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("boot failed")
		}
		return engine, nil
	}

	bridge := newTestBridge(start, time.Second)

	rec := httptest.NewRecorder()
	bridge.ServeHTTP(rec, httptest.NewRequest("POST", "/mcp", strings.NewReader(`{}`)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("first request status = %d, want 500", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if env.Error.Message != "Internal server error" {
		t.Errorf("message = %q", env.Error.Message)
	}

	// The failed attempt must not poison the handle.
	rec = httptest.NewRecorder()
	bridge.ServeHTTP(rec, httptest.NewRequest("POST", "/mcp", strings.NewReader(`{}`)))
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("retry status = %d body = %q, want 200 ok", rec.Code, rec.Body)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("startup attempts = %d, want 2", got)
	}
}

func TestBridgeColdStartRunsOnce(t *testing.T) {
	var starts atomic.Int32
	engine := &stubEngine{fn: func(ctx context.Context, scope *exchange.Scope, src *exchange.BodySource, acc *exchange.Accumulator) error {
		if err := acc.Send(exchange.OutputEvent{Kind: exchange.OutputStart, Status: 200}); err != nil {
			return err
		}
		return acc.Send(exchange.OutputEvent{Kind: exchange.OutputChunk, Body: []byte("ok"), More: false})
	}}
	start := func(ctx context.Context) (exchange.Engine, error) {
		starts.Add(1)
		time.Sleep(20 * time.Millisecond) // widen the race window
		return engine, nil
	}

	bridge := newTestBridge(start, time.Second)

	const n = 16
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := httptest.NewRecorder()
			bridge.ServeHTTP(rec, httptest.NewRequest("POST", "/mcp", strings.NewReader(`{}`)))
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	if got := starts.Load(); got != 1 {
		t.Errorf("startup ran %d times, want 1", got)
	}
	for i, code := range codes {
		if code != 200 {
			t.Errorf("request %d status = %d, want 200", i, code)
		}
	}
}

func TestBridgeBodyTooLarge(t *testing.T) {
	engine := &stubEngine{fn: func(ctx context.Context, scope *exchange.Scope, src *exchange.BodySource, acc *exchange.Accumulator) error {
		t.Error("engine must not run for an oversized body")
		return nil
	}}

	bridge := newTestBridge(instantStart(engine), time.Second)
	body := strings.NewReader(strings.Repeat("x", defaultMaxBodyBytes+1))
	rec := httptest.NewRecorder()
	bridge.ServeHTTP(rec, httptest.NewRequest("POST", "/mcp", body))

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	env := decodeEnvelope(t, rec.Body.Bytes())
	if env.Error.Code != -32600 {
		t.Errorf("code = %d, want -32600", env.Error.Code)
	}
}

func TestBridgeAbandonedExchangeIsDiscarded(t *testing.T) {
	release := make(chan struct{})
	engine := &stubEngine{fn: func(ctx context.Context, scope *exchange.Scope, src *exchange.BodySource, acc *exchange.Accumulator) error {
		<-release
		// The bridge has already answered; these sends land in a dropped
		// accumulator and must not panic or block.
		_ = acc.Send(exchange.OutputEvent{Kind: exchange.OutputStart, Status: 200})
		_ = acc.Send(exchange.OutputEvent{Kind: exchange.OutputChunk, Body: []byte("late"), More: false})
		return nil
	}}

	bridge := newTestBridge(instantStart(engine), 20*time.Millisecond)
	rec := httptest.NewRecorder()
	bridge.ServeHTTP(rec, httptest.NewRequest("POST", "/mcp", strings.NewReader(`{}`)))
	close(release)

	if rec.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d, want 504", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "late") {
		t.Error("late output leaked into the timeout response")
	}
}
