package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ProbeMetrics implements probe.Metrics.
type ProbeMetrics struct {
	up      *prometheus.GaugeVec
	latency *prometheus.GaugeVec
	checks  *prometheus.CounterVec
}

// NewProbeMetrics registers the probe collectors on reg.
func NewProbeMetrics(reg prometheus.Registerer) *ProbeMetrics {
	if reg == nil {
		return nil
	}

	return &ProbeMetrics{
		up: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittovec_store_up",
				Help: "Whether the last probe of the store succeeded (1) or failed (0)",
			},
			[]string{"store"},
		),
		latency: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittovec_store_probe_latency_milliseconds",
				Help: "Latency of the last status probe per store in milliseconds",
			},
			[]string{"store"},
		),
		checks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittovec_store_probes_total",
				Help: "Total number of status probes by store and result",
			},
			[]string{"store", "result"},
		),
	}
}

// RecordProbe records one probe observation.
func (m *ProbeMetrics) RecordProbe(storeName string, healthy bool, latency time.Duration) {
	if m == nil {
		return
	}
	up, result := 0.0, "error"
	if healthy {
		up, result = 1, "success"
	}
	m.up.WithLabelValues(storeName).Set(up)
	m.latency.WithLabelValues(storeName).Set(float64(latency.Microseconds()) / 1000)
	m.checks.WithLabelValues(storeName, result).Inc()
}
