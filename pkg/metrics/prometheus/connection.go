package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittovec/pkg/connection"
)

// ConnectionMetrics implements connection.Metrics.
type ConnectionMetrics struct {
	inits        *prometheus.CounterVec
	initDuration *prometheus.HistogramVec
	state        *prometheus.GaugeVec
}

// NewConnectionMetrics registers the store lifecycle collectors on reg.
func NewConnectionMetrics(reg prometheus.Registerer) *ConnectionMetrics {
	if reg == nil {
		return nil
	}

	return &ConnectionMetrics{
		inits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittovec_store_init_total",
				Help: "Total number of backend open attempts by store, kind and result",
			},
			[]string{"store", "kind", "result"},
		),
		initDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittovec_store_init_duration_milliseconds",
				Help:    "Duration of backend open attempts in milliseconds",
				Buckets: []float64{1, 10, 100, 500, 1000, 5000, 30000},
			},
			[]string{"kind"},
		),
		state: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittovec_store_state",
				Help: "Connection state per store: 0 uninitialized, 1 connecting, 2 connected, 3 failed",
			},
			[]string{"store"},
		),
	}
}

// RecordInit records one open attempt.
func (m *ConnectionMetrics) RecordInit(storeName, kind string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.inits.WithLabelValues(storeName, kind, result).Inc()
	m.initDuration.WithLabelValues(kind).Observe(float64(duration.Microseconds()) / 1000)
}

// SetState publishes a state transition.
func (m *ConnectionMetrics) SetState(storeName string, s connection.State) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(storeName).Set(float64(s))
}
