package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// durationBuckets covers in-process indexes through remote full scans.
var durationBuckets = []float64{
	0.5,   // in-memory map
	1,     // embedded index
	5,     // embedded kv
	10,    // local network round trip
	50,    // small remote scan
	100,   //
	500,   // large remote scan
	1000,  // 1s
	5000,  // 5s
	30000, // default deadline
}

// DispatchMetrics implements dispatch.Metrics.
type DispatchMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   *prometheus.GaugeVec
}

// NewDispatchMetrics registers the per-store call collectors on reg.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return nil
	}

	return &DispatchMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittovec_store_operations_total",
				Help: "Total number of store operations by store, kind, operation and result code",
			},
			[]string{"store", "kind", "op", "code"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittovec_store_operation_duration_milliseconds",
				Help:    "Duration of store operations in milliseconds",
				Buckets: durationBuckets,
			},
			[]string{"store", "op"},
		),
		inFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittovec_store_operations_in_flight",
				Help: "Current number of backend calls running per store",
			},
			[]string{"store"},
		),
	}
}

// ObserveCall records a finished unit. An empty code means success.
func (m *DispatchMetrics) ObserveCall(storeName, kind, op string, duration time.Duration, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.operations.WithLabelValues(storeName, kind, op, code).Inc()
	if duration > 0 {
		m.duration.WithLabelValues(storeName, op).Observe(float64(duration.Microseconds()) / 1000)
	}
}

// InFlight adjusts the running-call gauge.
func (m *DispatchMetrics) InFlight(storeName string, delta int) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(storeName).Add(float64(delta))
}
