// Package http is the inbound HTTP adapter: the request gate that
// authenticates callers and the transport bridge that carries one HTTP
// request through the protocol runtime and back.
package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stockpile-hq/stockpile/internal/domain/exchange"
	"github.com/stockpile-hq/stockpile/internal/domain/runtime"
	"github.com/stockpile-hq/stockpile/pkg/jsonrpc"
)

// DefaultExchangeTimeout bounds one exchange when no timeout is configured.
const DefaultExchangeTimeout = 30 * time.Second

// defaultMaxBodyBytes caps the buffered request body at 4 MiB.
const defaultMaxBodyBytes = 4 << 20

// BridgeHandler carries one HTTP request through the runtime: it buffers
// the body, builds the invocation scope, ensures the engine is started,
// runs the exchange and assembles the accumulated response. An exchange
// that outlives its deadline is abandoned and answered with a timeout
// envelope; whatever the runtime emits afterwards is discarded.
type BridgeHandler struct {
	handle       *runtime.Handle
	timeout      time.Duration
	maxBodyBytes int64
	metrics      *Metrics
	logger       *slog.Logger
}

// NewBridgeHandler creates the bridge over the given engine handle.
func NewBridgeHandler(handle *runtime.Handle, timeout time.Duration, metrics *Metrics, logger *slog.Logger) *BridgeHandler {
	if timeout <= 0 {
		timeout = DefaultExchangeTimeout
	}
	return &BridgeHandler{
		handle:       handle,
		timeout:      timeout,
		maxBodyBytes: defaultMaxBodyBytes,
		metrics:      metrics,
		logger:       logger,
	}
}

func (h *BridgeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFromContext(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, jsonrpc.CodeInvalidRequest, "Request body too large")
			return
		}
		logger.WarnContext(r.Context(), "failed to read request body", "error", err)
		writeError(w, http.StatusBadRequest, jsonrpc.CodeInvalidRequest, "Invalid request body")
		return
	}

	scope := exchange.FromRequest(r, len(body))
	src := exchange.NewBodySource(body)
	acc := exchange.NewAccumulator()

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	engine, err := h.handle.Ensure(ctx)
	if err != nil {
		if ctx.Err() != nil {
			h.timedOut(w, r, logger)
			return
		}
		logger.ErrorContext(r.Context(), "engine startup failed", "error", err)
		writeError(w, http.StatusInternalServerError, jsonrpc.CodeInternal, "Internal server error")
		return
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- engine.HandleExchange(ctx, scope, src, acc)
	}()

	select {
	case <-acc.Complete():
		h.writeResponse(w, acc)

	case err := <-errCh:
		if err == nil {
			// The engine settled and the completion marker raced the
			// error channel; the accumulator holds the full response.
			select {
			case <-acc.Complete():
				h.writeResponse(w, acc)
				return
			default:
			}
		}
		logger.ErrorContext(r.Context(), "exchange failed", "error", err)
		writeError(w, http.StatusInternalServerError, jsonrpc.CodeInternal, "Internal server error")

	case <-ctx.Done():
		h.timedOut(w, r, logger)
	}
}

func (h *BridgeHandler) timedOut(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	logger.WarnContext(r.Context(), "exchange timed out",
		"timeout", h.timeout,
		"path", r.URL.Path)
	if h.metrics != nil {
		h.metrics.TimeoutsTotal.Inc()
	}
	writeError(w, http.StatusGatewayTimeout, jsonrpc.CodeTimeout, "Request timed out")
}

// writeResponse copies the accumulated status, headers and body onto the
// HTTP response. Content-length is recomputed by net/http from the body.
func (h *BridgeHandler) writeResponse(w http.ResponseWriter, acc *exchange.Accumulator) {
	status, headers, body := acc.Response()
	for _, pair := range headers {
		name := string(pair.Name)
		if name == "content-length" {
			continue
		}
		w.Header().Add(http.CanonicalHeaderKey(name), string(pair.Value))
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError emits a synthesized JSON-RPC error envelope with a null id.
func writeError(w http.ResponseWriter, httpStatus int, code int64, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_, _ = w.Write(jsonrpc.ErrorEnvelope(code, message))
}
