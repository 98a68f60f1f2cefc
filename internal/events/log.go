package events

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogSink writes events as structured log lines
type LogSink struct {
	Logger logrus.FieldLogger
}

// NewLogSink returns a sink that logs through the standard logrus logger
func NewLogSink() *LogSink {
	return &LogSink{Logger: logrus.StandardLogger()}
}

// Emit implements Sink.
func (s *LogSink) Emit(_ context.Context, r Record) {
	fields := logrus.Fields{
		"event_id":  r.ID,
		"event":     string(r.Type),
		"pool":      r.Pool,
		"actor":     r.Actor.Hex(),
		"timestamp": r.Timestamp,
	}
	if r.Amount > 0 {
		fields["amount"] = r.Amount
	}
	if r.Rate > 0 {
		fields["rate"] = r.Rate
	}
	if r.Tier != "" {
		fields["tier"] = r.Tier
	}
	for k, v := range r.Attributes {
		fields[k] = v
	}
	s.Logger.WithFields(fields).Info("staking event")
}
