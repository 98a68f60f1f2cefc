package events

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsSink turns events into prometheus series
type MetricsSink struct {
	events  *prometheus.CounterVec
	staked  *prometheus.CounterVec
	rewards *prometheus.CounterVec
}

// NewMetricsSink creates the collectors and registers them with reg
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	s := &MetricsSink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staking_events_total",
				Help: "Total number of staking events emitted",
			},
			[]string{"pool", "type"},
		),
		staked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staking_flow_amount_total",
				Help: "Cumulative amount staked and unstaked",
			},
			[]string{"pool", "direction"},
		),
		rewards: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "staking_rewards_minted_total",
				Help: "Cumulative rewards minted by claims",
			},
			[]string{"pool"},
		),
	}
	reg.MustRegister(s.events, s.staked, s.rewards)
	return s
}

// Emit implements Sink.
func (s *MetricsSink) Emit(_ context.Context, r Record) {
	s.events.WithLabelValues(r.Pool, string(r.Type)).Inc()
	switch r.Type {
	case TypeStaked:
		s.staked.WithLabelValues(r.Pool, "in").Add(float64(r.Amount))
	case TypeUnstaked:
		s.staked.WithLabelValues(r.Pool, "out").Add(float64(r.Amount))
	case TypeRewardsClaimed:
		s.rewards.WithLabelValues(r.Pool).Add(float64(r.Amount))
	}
}
