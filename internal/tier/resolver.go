package tier

import (
	"fmt"

	"github.com/yourorg/tiered-staking/internal/model"
	"github.com/yourorg/tiered-staking/internal/safemath"
	"github.com/yourorg/tiered-staking/internal/types"
)

// Rate is the breakdown of a resolved effective rate
type Rate struct {
	Base            uint64     `json:"base"`
	StakeMultiplier uint64     `json:"stake_multiplier"`
	LockMultiplier  uint64     `json:"lock_multiplier"`
	Effective       uint64     `json:"effective"`
	Level           model.Tier `json:"level"`
}

// Resolver combines a pool's base rate with the policy multipliers
type Resolver struct {
	policy    Policy
	floorRate uint64
}

// NewResolver builds the resolver for a variant
func NewResolver(variant types.Variant) (Resolver, error) {
	params, err := variant.Params()
	if err != nil {
		return Resolver{}, err
	}
	return Resolver{policy: NewPolicy(params), floorRate: params.FloorRate}, nil
}

// BaseRate picks the pool's base rate for a staker whose tier basis is basis.
// Flat pools always use their configured rate.
func (r Resolver) BaseRate(pool *model.PoolAggregate, basis uint64) uint64 {
	if pool.Variant == types.VariantFlat {
		return pool.BaseRate
	}
	level, reached := Classify(basis, pool.TierThresholds)
	if !reached {
		return r.floorRate
	}
	return pool.TierBaseRates[level]
}

// Level classifies basis into a tier. Tiered pools use their own thresholds,
// flat pools have none and fall back to the bonus multiplier cutoffs.
func (r Resolver) Level(pool *model.PoolAggregate, basis uint64) model.Tier {
	thresholds := pool.TierThresholds
	if pool.Variant == types.VariantFlat {
		thresholds = r.policy.StakeThresholds
	}
	level, _ := Classify(basis, thresholds)
	return level
}

// Resolve computes base * stake multiplier / 100 * lock multiplier / 100 with
// a truncating division after each multiplication.
func (r Resolver) Resolve(pool *model.PoolAggregate, basis uint64, lockSeconds int64) (Rate, error) {
	rate := Rate{
		Base:            r.BaseRate(pool, basis),
		StakeMultiplier: r.policy.StakeMultiplier(basis),
		LockMultiplier:  r.policy.LockMultiplier(lockSeconds),
		Level:           r.Level(pool, basis),
	}
	effective, err := safemath.From(rate.Base).
		Mul(rate.StakeMultiplier).
		Div(100).
		Mul(rate.LockMultiplier).
		Div(100).
		Result()
	if err != nil {
		return Rate{}, fmt.Errorf("resolve rate: %w", err)
	}
	rate.Effective = effective
	return rate, nil
}
