// Package telemetry sets up OpenTelemetry tracing and metrics with stdout
// exporters. Disabled by default; when enabled, every exchange gets a span
// and a request counter increment.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/stockpile-hq/stockpile/internal/telemetry"

// Config controls the telemetry setup.
type Config struct {
	// Enabled turns telemetry on. When false, Setup returns a no-op
	// provider.
	Enabled bool
	// ServiceName identifies this process in exported spans and metrics.
	ServiceName string
	// ServiceVersion is the build version attached to the resource.
	ServiceVersion string
	// SampleRatio is the trace sampling ratio in [0, 1]. Zero means
	// sample everything.
	SampleRatio float64
	// ExportInterval is the metric export interval. Zero means one minute.
	ExportInterval time.Duration
	// Writer receives the exported data. Nil means stderr.
	Writer io.Writer
}

// Provider bundles the tracer and meter providers behind one shutdown.
type Provider struct {
	enabled bool
	tracer  trace.Tracer
	counter metric.Int64Counter

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// Setup initializes tracing and metrics per the config and installs the
// providers globally. The returned provider must be shut down on exit.
func Setup(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	traceExp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace exporter: %w", err)
	}
	sampler := sdktrace.AlwaysSample()
	if cfg.SampleRatio > 0 && cfg.SampleRatio < 1 {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
	)

	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric exporter: %w", err)
	}
	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = time.Minute
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
			sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	counter, err := mp.Meter(instrumentationName).Int64Counter(
		"stockpile.exchanges",
		metric.WithDescription("Number of exchanges carried through the bridge"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: exchange counter: %w", err)
	}

	return &Provider{
		enabled: true,
		tracer:  tp.Tracer(instrumentationName),
		counter: counter,
		tp:      tp,
		mp:      mp,
	}, nil
}

// Enabled reports whether telemetry was turned on at setup.
func (p *Provider) Enabled() bool {
	return p.enabled
}

// Middleware wraps an HTTP handler so each request runs inside a span and
// increments the exchange counter. A no-op when telemetry is disabled.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	if !p.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := p.tracer.Start(r.Context(), "bridge.exchange",
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			),
		)
		defer span.End()

		p.counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("http.method", r.Method),
		))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.enabled {
		return nil
	}
	return errors.Join(p.tp.Shutdown(ctx), p.mp.Shutdown(ctx))
}
