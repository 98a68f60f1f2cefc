package config

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/yourorg/tiered-staking/internal/types"
)

// PoolConfig describes a pool to create at startup. Optional fields override
// the variant defaults through the authority-gated admin operations.
type PoolConfig struct {
	ID        string `toml:"id"`
	Variant   string `toml:"variant"`
	Authority string `toml:"authority"`

	// Thresholds are bronze, silver and gold (tiered pools)
	Thresholds []uint64 `toml:"thresholds"`

	// TierRates are the bronze, silver and gold base rates (tiered pools)
	TierRates []uint64 `toml:"tier_rates"`

	// BaseRate is the staking_apr (flat pools)
	BaseRate *uint64 `toml:"base_rate"`
}

// Validate checks the static shape of the entry
func (p PoolConfig) Validate() error {
	if p.ID == "" {
		return errors.New("pool id is required")
	}
	variant, err := types.ParseVariant(p.Variant)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(p.Authority) {
		return fmt.Errorf("pool %s: authority %q is not an address", p.ID, p.Authority)
	}
	if len(p.Thresholds) != 0 && len(p.Thresholds) != 3 {
		return fmt.Errorf("pool %s: thresholds need three values", p.ID)
	}
	if len(p.TierRates) != 0 && len(p.TierRates) != 3 {
		return fmt.Errorf("pool %s: tier_rates need three values", p.ID)
	}
	if variant == types.VariantFlat && (len(p.Thresholds) > 0 || len(p.TierRates) > 0) {
		return fmt.Errorf("pool %s: flat pools have no tier table", p.ID)
	}
	if variant == types.VariantTiered && p.BaseRate != nil {
		return fmt.Errorf("pool %s: base_rate applies to flat pools only", p.ID)
	}
	return nil
}

// VariantValue returns the parsed variant. Call Validate first.
func (p PoolConfig) VariantValue() types.Variant {
	v, _ := types.ParseVariant(p.Variant)
	return v
}

// AuthorityAddress returns the parsed authority
func (p PoolConfig) AuthorityAddress() common.Address {
	return common.HexToAddress(p.Authority)
}
