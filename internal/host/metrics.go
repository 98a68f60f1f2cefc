package host

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus collectors of the host
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	staked     *prometheus.GaugeVec
}

// NewMetrics registers the host collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staking_operations_total",
				Help: "Total number of staking operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "staking_operation_duration_seconds",
				Help:    "Staking operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		staked: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "staking_pool_total_staked",
				Help: "Total principal staked per pool",
			},
			[]string{"pool"},
		),
	}
	reg.MustRegister(m.operations, m.duration, m.staked)
	return m
}
