// Package accrual computes time-weighted staking rewards with integer-only
// arithmetic and a fixed evaluation order.
package accrual

import (
	"errors"
	"fmt"

	"github.com/yourorg/tiered-staking/internal/model"
	"github.com/yourorg/tiered-staking/internal/safemath"
)

// SecondsPerYear is 365 days; leap years are ignored.
const SecondsPerYear uint64 = 365 * 24 * 60 * 60

// PercentDenominator converts a percentage rate into a fraction.
const PercentDenominator uint64 = 100

// ErrClockRegression is returned when the last claim time lies after now.
var ErrClockRegression = errors.New("last claim time is after the current time")

// Elapsed returns now - lastClaim.
func Elapsed(lastClaim, now int64) (uint64, error) {
	if now < lastClaim {
		return 0, fmt.Errorf("%w: last claim %d, now %d", ErrClockRegression, lastClaim, now)
	}
	return uint64(now - lastClaim), nil
}

// Reward evaluates principal * rate * elapsed / SecondsPerYear / 100 strictly
// left to right. Every multiplication is checked against the 64-bit working
// width. The truncated remainder is dropped.
func Reward(principal, rate, elapsed uint64) (uint64, error) {
	reward, err := safemath.From(principal).
		Mul(rate).
		Mul(elapsed).
		Div(SecondsPerYear).
		Div(PercentDenominator).
		Result()
	if err != nil {
		return 0, fmt.Errorf("accrue reward: %w", err)
	}
	return reward, nil
}

// Pending computes the reward a position has accrued since its last claim.
func Pending(p *model.StakePosition, now int64) (uint64, error) {
	elapsed, err := Elapsed(p.LastClaimTime, now)
	if err != nil {
		return 0, err
	}
	return Reward(p.Principal, p.EffectiveRate, elapsed)
}

// Forfeitable is the pending reward a re-stake discards. It is reported, not
// paid, so the product may use the full 256-bit width and the result
// saturates at MaxUint64 instead of failing.
func Forfeitable(p *model.StakePosition, now int64) (uint64, error) {
	elapsed, err := Elapsed(p.LastClaimTime, now)
	if err != nil {
		return 0, err
	}
	v, _, err := safemath.Wide(p.Principal).
		Mul(p.EffectiveRate).
		Mul(elapsed).
		Div(SecondsPerYear).
		Div(PercentDenominator).
		Saturated()
	return v, err
}
