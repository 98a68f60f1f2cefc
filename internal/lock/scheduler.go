// Package lock answers whether a staked batch may be withdrawn.
package lock

import (
	"github.com/yourorg/tiered-staking/internal/model"
	"github.com/yourorg/tiered-staking/internal/safemath"
)

// Expiry returns stake_time + lock_duration.
func Expiry(p *model.StakePosition) (int64, error) {
	return safemath.AddInt64(p.StakeTime, p.LockDuration)
}

// Eligible reports whether now is at or past the lock expiry. There is no
// grace period.
func Eligible(p *model.StakePosition, now int64) (bool, error) {
	expiry, err := Expiry(p)
	if err != nil {
		return false, err
	}
	return now >= expiry, nil
}

// Remaining returns the seconds left until expiry, or zero once unlocked.
func Remaining(p *model.StakePosition, now int64) (int64, error) {
	expiry, err := Expiry(p)
	if err != nil {
		return 0, err
	}
	if now >= expiry {
		return 0, nil
	}
	return expiry - now, nil
}
