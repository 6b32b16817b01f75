package http

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stockpile-hq/stockpile/internal/domain/auth"
	"github.com/stockpile-hq/stockpile/internal/domain/ratelimit"
	"github.com/stockpile-hq/stockpile/internal/domain/runtime"
)

// Transport is the inbound HTTP server: the middleware chain, the bridge
// and the operational endpoints, assembled around the engine handle.
type Transport struct {
	handle          *runtime.Handle
	server          *http.Server
	addr            string
	allowedOrigins  []string
	certFile        string
	keyFile         string
	exchangeTimeout time.Duration
	tokenService    *auth.TokenService
	requireAuth     bool
	rateLimiter     ratelimit.Limiter
	rateLimitConfig ratelimit.Config
	healthChecker   *HealthChecker
	middleware      []func(http.Handler) http.Handler
	logger          *slog.Logger
}

// Option is a functional option for configuring Transport.
type Option func(*Transport)

// WithAddr sets the listen address. Default is "127.0.0.1:8080"
// (localhost only).
func WithAddr(addr string) Option {
	return func(t *Transport) {
		t.addr = addr
	}
}

// WithTLS enables TLS with the provided certificate and key files.
// If not set, the server runs without TLS (plain HTTP).
func WithTLS(certFile, keyFile string) Option {
	return func(t *Transport) {
		t.certFile = certFile
		t.keyFile = keyFile
	}
}

// WithAllowedOrigins sets the allowed origins for DNS rebinding protection.
// If empty, all requests with an Origin header are blocked (local-only mode).
func WithAllowedOrigins(origins []string) Option {
	return func(t *Transport) {
		t.allowedOrigins = origins
	}
}

// WithExchangeTimeout bounds each exchange. Zero or negative keeps the
// default of 30 seconds.
func WithExchangeTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.exchangeTimeout = d
	}
}

// WithAuth sets the token service backing the request gate. When required
// is false, requests pass through without validation.
func WithAuth(svc *auth.TokenService, required bool) Option {
	return func(t *Transport) {
		t.tokenService = svc
		t.requireAuth = required
	}
}

// WithRateLimit enables per-IP rate limiting ahead of the gate.
func WithRateLimit(limiter ratelimit.Limiter, cfg ratelimit.Config) Option {
	return func(t *Transport) {
		t.rateLimiter = limiter
		t.rateLimitConfig = cfg
	}
}

// WithHealthChecker sets the health checker for the /health endpoint.
func WithHealthChecker(hc *HealthChecker) Option {
	return func(t *Transport) {
		t.healthChecker = hc
	}
}

// WithMiddleware appends extra middleware (e.g. tracing) applied around
// the bridge chain, inside the metrics wrapper.
func WithMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(t *Transport) {
		t.middleware = append(t.middleware, mw...)
	}
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates the HTTP transport around the given engine handle.
func NewTransport(handle *runtime.Handle, opts ...Option) *Transport {
	t := &Transport{
		handle:          handle,
		addr:            "127.0.0.1:8080",
		allowedOrigins:  []string{},
		exchangeTimeout: DefaultExchangeTimeout,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Handler assembles the full routing and middleware stack. Middleware
// order, outermost first: Metrics (captures full duration), RequestID,
// RealIP, Origin protection, RateLimit, TokenAuth gate, then the bridge.
func (t *Transport) Handler() http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(reg, t.engineStartedFunc(), t.rateLimitKeysFunc())

	var bridge http.Handler = NewBridgeHandler(t.handle, t.exchangeTimeout, metrics, t.logger)
	bridge = TokenAuthMiddleware(t.tokenService, t.requireAuth, metrics)(bridge)
	bridge = RateLimitMiddleware(t.rateLimiter, t.rateLimitConfig, metrics)(bridge)
	bridge = OriginProtection(t.allowedOrigins)(bridge)
	bridge = RealIPMiddleware(bridge)
	bridge = RequestIDMiddleware(t.logger)(bridge)
	for i := len(t.middleware) - 1; i >= 0; i-- {
		bridge = t.middleware[i](bridge)
	}
	bridge = MetricsMiddleware(metrics)(bridge)

	mux := http.NewServeMux()
	if t.healthChecker != nil {
		mux.Handle("/health", t.healthChecker.Handler())
	}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		Registry: reg,
	}))
	// Keeps browsers from tripping the bridge with favicon probes.
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	mux.Handle("/mcp", bridge)
	mux.Handle("/mcp/", bridge)
	return mux
}

func (t *Transport) engineStartedFunc() func() float64 {
	if t.handle == nil {
		return nil
	}
	return func() float64 {
		if t.handle.Started() {
			return 1
		}
		return 0
	}
}

func (t *Transport) rateLimitKeysFunc() func() float64 {
	sizer, ok := t.rateLimiter.(interface{ Size() int })
	if !ok {
		return nil
	}
	return func() float64 {
		return float64(sizer.Size())
	}
}

// Start begins accepting HTTP connections. It blocks until the context is
// cancelled or the server fails.
func (t *Transport) Start(ctx context.Context) error {
	t.server = &http.Server{
		Addr:    t.addr,
		Handler: t.Handler(),
	}

	if t.certFile != "" && t.keyFile != "" {
		t.server.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if t.certFile != "" && t.keyFile != "" {
			t.logger.Info("starting HTTPS server", "addr", t.addr)
			err = t.server.ListenAndServeTLS(t.certFile, t.keyFile)
		} else {
			t.logger.Info("starting HTTP server", "addr", t.addr)
			err = t.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		t.logger.Info("context cancelled, shutting down HTTP server")
		return t.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown performs graceful shutdown of the HTTP server.
func (t *Transport) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Error("error during server shutdown", "error", err)
		return err
	}

	t.logger.Info("HTTP server shutdown complete")
	return nil
}

// Close gracefully shuts down the transport.
func (t *Transport) Close() error {
	if t.server == nil {
		return nil
	}
	return t.shutdown()
}
