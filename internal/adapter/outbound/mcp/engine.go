package mcp

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/stockpile-hq/stockpile/internal/domain/exchange"
)

// Engine runs exchanges against the SDK's streamable HTTP handler. The
// handler is stateless and answers with plain JSON, so one exchange maps
// to exactly one request/response pair.
type Engine struct {
	handler http.Handler
	logger  *slog.Logger
}

// NewEngine wraps an MCP server in the exchange engine port.
func NewEngine(server *mcp.Server, logger *slog.Logger) *Engine {
	handler := mcp.NewStreamableHTTPHandler(
		func(*http.Request) *mcp.Server { return server },
		&mcp.StreamableHTTPOptions{
			Stateless:    true,
			JSONResponse: true,
		},
	)
	return &Engine{handler: handler, logger: logger}
}

// HandleExchange synthesizes an HTTP request from the scope, drains the
// input source, and feeds the runtime's response into the accumulator as
// output events.
func (e *Engine) HandleExchange(ctx context.Context, scope *exchange.Scope, src *exchange.BodySource, acc *exchange.Accumulator) error {
	body := drainBody(src)
	req := synthesizeRequest(ctx, scope, body)

	w := newSinkWriter(acc)
	e.handler.ServeHTTP(w, req)
	return w.finish()
}

// drainBody reads the single body event. The source reports a disconnect
// for every read after that.
func drainBody(src *exchange.BodySource) []byte {
	ev := src.Next()
	if ev.Kind != exchange.InputBody {
		return nil
	}
	return ev.Body
}

// synthesizeRequest rebuilds a server-side http.Request from the scope.
// The scope's flattened headers carry the raw bytes as received, so the
// runtime sees exactly what the client sent.
func synthesizeRequest(ctx context.Context, scope *exchange.Scope, body []byte) *http.Request {
	req := &http.Request{
		Method: scope.Method,
		URL: &url.URL{
			Path:     scope.Path,
			RawPath:  string(scope.RawPath),
			RawQuery: string(scope.Query),
		},
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		RemoteAddr:    net.JoinHostPort(scope.Client.Host, strconv.Itoa(scope.Client.Port)),
	}

	for _, pair := range scope.Headers {
		name := string(pair.Name)
		if name == "host" {
			req.Host = string(pair.Value)
			continue
		}
		req.Header.Add(http.CanonicalHeaderKey(name), string(pair.Value))
	}

	return req.WithContext(ctx)
}

// sinkWriter adapts the accumulator behind http.ResponseWriter. Every
// Write becomes a body chunk with the more-expected flag set; finish
// emits the completion chunk.
type sinkWriter struct {
	acc         *exchange.Accumulator
	header      http.Header
	wroteHeader bool
	err         error
}

func newSinkWriter(acc *exchange.Accumulator) *sinkWriter {
	return &sinkWriter{acc: acc, header: make(http.Header)}
}

func (w *sinkWriter) Header() http.Header {
	return w.header
}

func (w *sinkWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.send(exchange.OutputEvent{
		Kind:    exchange.OutputStart,
		Status:  status,
		Headers: flattenResponseHeaders(w.header),
	})
}

func (w *sinkWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.send(exchange.OutputEvent{
		Kind: exchange.OutputChunk,
		Body: p,
		More: true,
	})
	return len(p), nil
}

// finish emits the completion marker and reports the first send error, if
// any. A runtime that never wrote gets an empty 200 response.
func (w *sinkWriter) finish() error {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.send(exchange.OutputEvent{
		Kind: exchange.OutputChunk,
		More: false,
	})
	return w.err
}

func (w *sinkWriter) send(ev exchange.OutputEvent) {
	if w.err != nil {
		return
	}
	if err := w.acc.Send(ev); err != nil {
		w.err = err
	}
}

// flattenResponseHeaders mirrors the request-side normalization: names
// lower-cased and sorted, values byte-for-byte.
func flattenResponseHeaders(h http.Header) []exchange.HeaderPair {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]exchange.HeaderPair, 0, len(h))
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, value := range h[name] {
			pairs = append(pairs, exchange.HeaderPair{
				Name:  []byte(lower),
				Value: []byte(value),
			})
		}
	}
	return pairs
}

var _ exchange.Engine = (*Engine)(nil)
