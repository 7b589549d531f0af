package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Registry              *prometheus.Registry
	HTTPRequests          *prometheus.CounterVec
	HTTPDuration          *prometheus.HistogramVec
	HTTPInFlight          prometheus.Gauge
	HTTPErrors            *prometheus.CounterVec
	RedisDegraded         *prometheus.CounterVec
	RateLimitDecisions    *prometheus.CounterVec
	RateLimitTrackedKeys  prometheus.Gauge
	RateLimitBreakerOpen  prometheus.Counter
	RateLimitBreakerState prometheus.Gauge
	ViolationWriteErrors  prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_in_flight_requests",
				Help: "Number of in-flight HTTP requests.",
			},
		),
		HTTPErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_errors_total",
				Help: "Total number of HTTP 5xx errors.",
			},
			[]string{"method", "path", "code"},
		),
		RedisDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redis_degraded_total",
				Help: "Total number of Redis degradation events.",
			},
			[]string{"component"},
		),
		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratelimit_decisions_total",
				Help: "Total number of rate limit checks by preset and outcome.",
			},
			[]string{"preset", "outcome"},
		),
		RateLimitTrackedKeys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratelimit_tracked_keys",
				Help: "Number of keys tracked by the in-memory limiter.",
			},
		),
		RateLimitBreakerOpen: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ratelimit_breaker_open_total",
				Help: "Total number of rate limit calls rejected by the open Redis circuit breaker.",
			},
		),
		RateLimitBreakerState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratelimit_breaker_state",
				Help: "Redis rate limit circuit breaker state: 0=closed,1=half_open,2=open.",
			},
		),
		ViolationWriteErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ratelimit_violation_write_errors_total",
				Help: "Total number of failed rate limit violation audit writes.",
			},
		),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.HTTPInFlight,
		m.HTTPErrors,
		m.RedisDegraded,
		m.RateLimitDecisions,
		m.RateLimitTrackedKeys,
		m.RateLimitBreakerOpen,
		m.RateLimitBreakerState,
		m.ViolationWriteErrors,
	)

	return m
}

func (m *Metrics) IncDecision(preset, outcome string) {
	if m == nil {
		return
	}
	m.RateLimitDecisions.WithLabelValues(preset, outcome).Inc()
}

func (m *Metrics) SetTrackedKeys(n int) {
	if m == nil {
		return
	}
	m.RateLimitTrackedKeys.Set(float64(n))
}
