// Package model defines the core data structures for the staking engine.
package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yourorg/tiered-staking/internal/types"
)

// Tier is a pool tier bracket
type Tier uint8

// Pool tiers, lowest first
const (
	TierBronze Tier = iota
	TierSilver
	TierGold
)

// String returns the lower-case tier name
func (t Tier) String() string {
	switch t {
	case TierBronze:
		return "bronze"
	case TierSilver:
		return "silver"
	case TierGold:
		return "gold"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// ParseTier converts a tier name into a Tier
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bronze":
		return TierBronze, nil
	case "silver":
		return TierSilver, nil
	case "gold":
		return TierGold, nil
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

// StakePosition is the per-staker, per-pool staking record.
// A position is never deleted; one with zero principal stays addressable.
type StakePosition struct {
	// Pool the position belongs to
	Pool string `json:"pool"`

	// Owner is the staker's identity
	Owner common.Address `json:"owner"`

	// Principal is the amount currently staked
	Principal uint64 `json:"principal"`

	// LockDuration in seconds, fixed by the latest stake call
	LockDuration int64 `json:"lock_duration"`

	// StakeTime is the unix time of the latest stake call
	StakeTime int64 `json:"stake_time"`

	// LastClaimTime only moves forward
	LastClaimTime int64 `json:"last_claim_time"`

	// EffectiveRate is the annual percentage frozen at stake time
	EffectiveRate uint64 `json:"effective_rate"`

	// CumulativeStakeForTier is the running total of every amount staked.
	// Unlike Principal it never shrinks on unstake.
	CumulativeStakeForTier uint64 `json:"cumulative_stake_for_tier"`

	// Level is the pool tier last recorded for the position
	Level Tier `json:"level"`
}

// PoolAggregate is the singleton state of one pool
type PoolAggregate struct {
	ID        string         `json:"id"`
	Variant   types.Variant  `json:"variant"`
	Authority common.Address `json:"authority"`

	TotalStaked             uint64 `json:"total_staked"`
	TotalRewardsDistributed uint64 `json:"total_rewards_distributed"`

	// TierThresholds are the bronze, silver and gold cutoffs, ascending
	TierThresholds [3]uint64 `json:"tier_thresholds"`

	// TierBaseRates are the bronze, silver and gold base rates
	TierBaseRates [3]uint64 `json:"tier_base_rates"`

	// BaseRate is the staking_apr of a flat pool
	BaseRate uint64 `json:"base_rate"`

	CreatedAt int64 `json:"created_at"`
}

// StakingInfo is the read-only projection returned by get_staking_info.
// Level is the stored level, which only update_staking_level changes, so it
// can lag behind the tier a stake event reports for the same position.
type StakingInfo struct {
	Pool            string         `json:"pool"`
	Owner           common.Address `json:"owner"`
	Principal       uint64         `json:"principal"`
	EffectiveRate   uint64         `json:"effective_rate"`
	Level           string         `json:"level"`
	LockDuration    int64          `json:"lock_duration"`
	PendingReward   uint64         `json:"pending_reward"`
	LockRemaining   int64          `json:"lock_remaining"`
	CumulativeStake uint64         `json:"cumulative_stake"`
	LastClaimTime   int64          `json:"last_claim_time"`
	UnlockEligible  bool           `json:"unlock_eligible"`
}
