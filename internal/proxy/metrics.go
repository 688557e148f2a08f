package proxy

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream outcomes used as metric label values.
const (
	OutcomeOK        = "ok"
	OutcomeNon2xx    = "non_2xx"
	OutcomeForbidden = "forbidden"
	OutcomeError     = "error"
)

// upstreamMetrics contains Prometheus metrics for upstream fetches.
type upstreamMetrics struct {
	requestsTotal *prometheus.CounterVec
	duration      *prometheus.HistogramVec
}

// newUpstreamMetrics registers the upstream metrics with registerer. A nil
// registerer keeps the collectors unregistered.
func newUpstreamMetrics(registerer prometheus.Registerer) *upstreamMetrics {
	factory := promauto.With(registerer)
	return &upstreamMetrics{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "geoproxy",
				Subsystem: "upstream",
				Name:      "requests_total",
				Help:      "Total number of upstream requests by outcome",
			},
			[]string{"api_key", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "geoproxy",
				Subsystem: "upstream",
				Name:      "duration_seconds",
				Help:      "Duration of upstream requests",
				Buckets: []float64{
					.01, .025, .05, .1, .25,
					.5, 1, 2.5, 5, 10, 30,
				},
			},
			[]string{"api_key"},
		),
	}
}

func (m *upstreamMetrics) record(apiKey, outcome string, duration time.Duration) {
	m.requestsTotal.WithLabelValues(apiKey, outcome).Inc()
	if outcome != OutcomeForbidden {
		m.duration.WithLabelValues(apiKey).Observe(duration.Seconds())
	}
}
