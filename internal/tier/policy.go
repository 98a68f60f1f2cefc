// Package tier maps stake size and lock duration to rate multipliers and
// resolves the effective annual rate that gets frozen into a position.
package tier

import (
	"fmt"
	"math"

	"github.com/yourorg/tiered-staking/internal/model"
	"github.com/yourorg/tiered-staking/internal/safemath"
	"github.com/yourorg/tiered-staking/internal/types"
)

// Multipliers in percent
const (
	MultiplierNone   uint64 = 100
	MultiplierBronze uint64 = 120
	MultiplierSilver uint64 = 150
	MultiplierGold   uint64 = 200
)

// Policy holds the cutoffs for the per-stake bonus multipliers. It is pure
// and stateless.
type Policy struct {
	StakeThresholds [3]uint64
	LockCutoffs     [3]int64
}

// NewPolicy returns the policy for a variant
func NewPolicy(params types.VariantParams) Policy {
	return Policy{
		StakeThresholds: params.StakeThresholds,
		LockCutoffs:     params.LockCutoffs,
	}
}

// StakeMultiplier evaluates gold, then silver, then bronze. A value exactly
// at a threshold qualifies for that tier.
func (p Policy) StakeMultiplier(totalStaked uint64) uint64 {
	switch {
	case totalStaked >= p.StakeThresholds[2]:
		return MultiplierGold
	case totalStaked >= p.StakeThresholds[1]:
		return MultiplierSilver
	case totalStaked >= p.StakeThresholds[0]:
		return MultiplierBronze
	default:
		return MultiplierNone
	}
}

// LockMultiplier evaluates the lock cutoffs longest first.
func (p Policy) LockMultiplier(lockSeconds int64) uint64 {
	switch {
	case lockSeconds >= p.LockCutoffs[2]:
		return MultiplierGold
	case lockSeconds >= p.LockCutoffs[1]:
		return MultiplierSilver
	case lockSeconds >= p.LockCutoffs[0]:
		return MultiplierBronze
	default:
		return MultiplierNone
	}
}

// MonthsToSeconds converts a lock expressed in 30 day months.
func MonthsToSeconds(months uint64) (int64, error) {
	if months > uint64(math.MaxInt64/types.Month) {
		return 0, fmt.Errorf("%w: %d months", safemath.ErrOverflow, months)
	}
	return int64(months) * types.Month, nil
}

// Classify returns the highest tier whose threshold total reaches. The second
// result is false when total is below bronze.
func Classify(total uint64, thresholds [3]uint64) (model.Tier, bool) {
	switch {
	case total >= thresholds[2]:
		return model.TierGold, true
	case total >= thresholds[1]:
		return model.TierSilver, true
	case total >= thresholds[0]:
		return model.TierBronze, true
	default:
		return model.TierBronze, false
	}
}
