// Package types contains shared type definitions used across multiple packages
package types

import (
	"fmt"
	"strings"
)

// Variant identifies which staking program a pool behaves like
type Variant string

// Supported pool variants
const (
	// VariantTiered derives the base rate from the pool's own tier table.
	VariantTiered Variant = "tiered"
	// VariantFlat uses a single configured base rate for every staker.
	VariantFlat Variant = "flat"
)

// Day is the length of one day in seconds.
const Day int64 = 24 * 60 * 60

// Month is a fixed 30 day month in seconds. It is not calendar accurate.
const Month int64 = 30 * Day

// VariantParams holds the parameters that differ between the two programs
type VariantParams struct {
	// StakeThresholds are the bronze, silver and gold cutoffs used by the
	// per-stake bonus multiplier.
	StakeThresholds [3]uint64 `json:"stake_thresholds"`

	// LockCutoffs are the lock durations in seconds that earn the 120%, 150%
	// and 200% lock multipliers.
	LockCutoffs [3]int64 `json:"lock_cutoffs"`

	// PoolThresholds are the default pool tier thresholds written at initialize.
	PoolThresholds [3]uint64 `json:"pool_thresholds"`

	// BaseRates are the default bronze, silver and gold base rates.
	BaseRates [3]uint64 `json:"base_rates"`

	// FloorRate applies when a tiered pool's staker is below bronze.
	FloorRate uint64 `json:"floor_rate"`

	// FlatRate is the staking_apr used by flat pools.
	FlatRate uint64 `json:"flat_rate"`
}

var variants = map[Variant]VariantParams{
	VariantTiered: {
		StakeThresholds: [3]uint64{500_000_000, 5_000_000_000, 50_000_000_000},
		LockCutoffs:     [3]int64{3 * Month, 6 * Month, 12 * Month},
		PoolThresholds:  [3]uint64{500_000_000, 5_000_000_000, 50_000_000_000},
		BaseRates:       [3]uint64{5, 10, 15},
		FloorRate:       5,
	},
	VariantFlat: {
		StakeThresholds: [3]uint64{500_000, 5_000_000, 50_000_000},
		LockCutoffs:     [3]int64{90 * Day, 180 * Day, 365 * Day},
		FlatRate:        5,
	},
}

// Params returns the parameters for a variant
func (v Variant) Params() (VariantParams, error) {
	p, ok := variants[v]
	if !ok {
		return VariantParams{}, fmt.Errorf("unknown pool variant %q", string(v))
	}
	return p, nil
}

// Valid reports whether v is a supported variant
func (v Variant) Valid() bool {
	_, ok := variants[v]
	return ok
}

// ParseVariant normalises user input into a Variant
func ParseVariant(s string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return VariantTiered, nil
	}
	if !v.Valid() {
		return "", fmt.Errorf("unknown pool variant %q", s)
	}
	return v, nil
}
