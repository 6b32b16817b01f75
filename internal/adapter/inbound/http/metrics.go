package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the bridge.
// Pass to components that need to record metrics.
type Metrics struct {
	ExchangesTotal    *prometheus.CounterVec
	ExchangeDuration  *prometheus.HistogramVec
	TimeoutsTotal     prometheus.Counter
	AuthFailuresTotal prometheus.Counter
	RateLimitedTotal  prometheus.Counter
	EngineStarted     prometheus.GaugeFunc
	RateLimitKeys     prometheus.GaugeFunc
}

// NewMetrics creates and registers all metrics with the given registry.
// engineStarted reports the startup state of the engine; rateLimitKeys
// reports the number of live limiter keys. Either may be nil when the
// component is not configured.
func NewMetrics(reg prometheus.Registerer, engineStarted, rateLimitKeys func() float64) *Metrics {
	m := &Metrics{
		ExchangesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "stockpile",
				Name:      "exchanges_total",
				Help:      "Total number of exchanges processed",
			},
			[]string{"method", "status"}, // status=ok/error
		),
		ExchangeDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "stockpile",
				Name:      "exchange_duration_seconds",
				Help:      "Exchange duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		TimeoutsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "stockpile",
				Name:      "exchange_timeouts_total",
				Help:      "Total exchanges abandoned at the deadline",
			},
		),
		AuthFailuresTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "stockpile",
				Name:      "auth_failures_total",
				Help:      "Total requests rejected by the gate",
			},
		),
		RateLimitedTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "stockpile",
				Name:      "rate_limited_total",
				Help:      "Total requests rejected by the rate limiter",
			},
		),
	}
	if engineStarted != nil {
		m.EngineStarted = promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "stockpile",
				Name:      "engine_started",
				Help:      "Whether the protocol engine has completed startup (0 or 1)",
			},
			engineStarted,
		)
	}
	if rateLimitKeys != nil {
		m.RateLimitKeys = promauto.With(reg).NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "stockpile",
				Name:      "rate_limit_keys",
				Help:      "Number of active rate limit keys",
			},
			rateLimitKeys,
		)
	}
	return m
}
