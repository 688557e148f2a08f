package health

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type probeMetrics struct {
	probes *prometheus.CounterVec
	status *prometheus.GaugeVec
}

// newProbeMetrics creates the probe collectors. A nil registerer leaves
// them unregistered.
func newProbeMetrics(reg prometheus.Registerer) *probeMetrics {
	factory := promauto.With(reg)
	m := &probeMetrics{
		probes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "geoproxy",
				Subsystem: "health",
				Name:      "probes_total",
				Help:      "Total number of health probes served",
			},
			[]string{"type"},
		),
		status: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "geoproxy",
				Subsystem: "health",
				Name:      "check_status",
				Help:      "Current health check status (1=healthy, 0=unhealthy)",
			},
			[]string{"check"},
		),
	}
	for _, probe := range []string{"health", "readiness", "liveness"} {
		m.probes.WithLabelValues(probe)
	}
	return m
}
