// Package events defines the structured records emitted by every mutating
// staking operation and the sinks that ship them.
package events

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Type names an event
type Type string

const (
	// TypePoolInitialized is emitted once when a pool is created.
	TypePoolInitialized Type = "pool.initialized"
	// TypeStaked is emitted when tokens are staked or re-staked.
	TypeStaked Type = "stake.staked"
	// TypeUnstaked is emitted when tokens leave a position.
	TypeUnstaked Type = "stake.unstaked"
	// TypeRewardsClaimed is emitted when a reward is minted.
	TypeRewardsClaimed Type = "stake.rewardsClaimed"
	// TypeLevelUpdated is emitted when a position's pool tier changes.
	TypeLevelUpdated Type = "stake.levelUpdated"
	// TypeTierRateUpdated is emitted when the authority changes a tier base rate.
	TypeTierRateUpdated Type = "pool.tierRateUpdated"
	// TypeThresholdsUpdated is emitted when the authority changes tier thresholds.
	TypeThresholdsUpdated Type = "pool.thresholdsUpdated"
	// TypeBaseRateUpdated is emitted when a flat pool's rate changes.
	TypeBaseRateUpdated Type = "pool.baseRateUpdated"
)

// Record is a single audit event
type Record struct {
	ID         string            `json:"id"`
	Type       Type              `json:"type"`
	Pool       string            `json:"pool"`
	Actor      common.Address    `json:"actor"`
	Amount     uint64            `json:"amount,omitempty"`
	Rate       uint64            `json:"rate,omitempty"`
	Tier       string            `json:"tier,omitempty"`
	Timestamp  int64             `json:"timestamp"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// New creates a record with a fresh identifier
func New(typ Type, pool string, actor common.Address, timestamp int64) Record {
	return Record{
		ID:        uuid.NewString(),
		Type:      typ,
		Pool:      pool,
		Actor:     actor,
		Timestamp: timestamp,
	}
}

// With attaches an attribute and returns the record
func (r Record) With(key, value string) Record {
	if r.Attributes == nil {
		r.Attributes = make(map[string]string)
	}
	r.Attributes[key] = value
	return r
}

// WithUint attaches a numeric attribute
func (r Record) WithUint(key string, value uint64) Record {
	return r.With(key, strconv.FormatUint(value, 10))
}

// Sink receives events. Emit must not fail the operation that produced the
// event, so it has no error result.
type Sink interface {
	Emit(ctx context.Context, r Record)
}

// NoopSink discards all events.
type NoopSink struct{}

// Emit implements Sink.
func (NoopSink) Emit(context.Context, Record) {}

// Multi fans an event out to several sinks in order.
type Multi []Sink

// Emit implements Sink.
func (m Multi) Emit(ctx context.Context, r Record) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, r)
		}
	}
}

// Recorder keeps every event in memory. Tests use it to inspect emissions.
type Recorder struct {
	Records []Record
}

// Emit implements Sink.
func (r *Recorder) Emit(_ context.Context, rec Record) {
	r.Records = append(r.Records, rec)
}

// Last returns the most recent event, or false when none was emitted.
func (r *Recorder) Last() (Record, bool) {
	if len(r.Records) == 0 {
		return Record{}, false
	}
	return r.Records[len(r.Records)-1], true
}
