package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RateLimitChecks   *prometheus.CounterVec
	RateLimitDenied   *prometheus.CounterVec
	RateLimitFailOpen prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg so tests can use a private registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RateLimitChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nietos_ratelimit_checks_total",
			Help: "Total number of rate limit checks by endpoint class",
		}, []string{"class"}),
		RateLimitDenied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nietos_ratelimit_denied_total",
			Help: "Total number of requests rejected by the rate limiter",
		}, []string{"class"}),
		RateLimitFailOpen: f.NewCounter(prometheus.CounterOpts{
			Name: "nietos_ratelimit_fail_open_total",
			Help: "Requests let through because the limiter store was unavailable",
		}),
	}
}

func (m *Metrics) RecordCheck(class string, allowed bool) {
	m.RateLimitChecks.WithLabelValues(class).Inc()
	if !allowed {
		m.RateLimitDenied.WithLabelValues(class).Inc()
	}
}

func (m *Metrics) IncrementFailOpen() {
	m.RateLimitFailOpen.Inc()
}
