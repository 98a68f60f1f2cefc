// Package validation checks staking request arguments before they reach the
// engine.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/yourorg/tiered-staking/internal/types"
)

var (
	// ErrInvalidAmount is returned for a zero or out of range token amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidArgument is returned for any other malformed argument.
	ErrInvalidArgument = errors.New("invalid argument")
)

var poolIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// ValidationOptions holds configuration for request validation
type ValidationOptions struct {
	// MaxLockDuration caps lock_duration in seconds
	MaxLockDuration int64

	// MaxLockMonths caps the lock expressed in 30 day months
	MaxLockMonths uint64

	// MaxRate caps any configured percentage rate
	MaxRate uint64

	// MaxPoolIDLength caps pool identifiers
	MaxPoolIDLength int
}

// DefaultValidationOptions returns sensible defaults for validation
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		MaxLockDuration: 10 * 365 * types.Day,
		MaxLockMonths:   255, // lock months were a u8
		MaxRate:         255, // rates were a u8
		MaxPoolIDLength: 64,
	}
}

// PoolID checks a pool identifier. It becomes part of storage keys, so the
// separator character is not allowed.
func PoolID(id string, opts ValidationOptions) error {
	if id == "" {
		return fmt.Errorf("%w: pool id is empty", ErrInvalidArgument)
	}
	if len(id) > opts.MaxPoolIDLength {
		return fmt.Errorf("%w: pool id longer than %d", ErrInvalidArgument, opts.MaxPoolIDLength)
	}
	if !poolIDPattern.MatchString(id) {
		return fmt.Errorf("%w: pool id %q has invalid characters", ErrInvalidArgument, id)
	}
	return nil
}

// Amount rejects zero amounts.
func Amount(amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return nil
}

// LockDuration checks a lock given in seconds.
func LockDuration(seconds int64, opts ValidationOptions) error {
	if seconds < 0 {
		return fmt.Errorf("%w: negative lock duration %d", ErrInvalidArgument, seconds)
	}
	if opts.MaxLockDuration > 0 && seconds > opts.MaxLockDuration {
		return fmt.Errorf("%w: lock duration %d exceeds %d", ErrInvalidArgument, seconds, opts.MaxLockDuration)
	}
	return nil
}

// LockMonths checks a lock given in months.
func LockMonths(months uint64, opts ValidationOptions) error {
	if opts.MaxLockMonths > 0 && months > opts.MaxLockMonths {
		return fmt.Errorf("%w: lock of %d months exceeds %d", ErrInvalidArgument, months, opts.MaxLockMonths)
	}
	return nil
}

// Thresholds requires bronze < silver < gold.
func Thresholds(t [3]uint64) error {
	if t[0] == 0 {
		return fmt.Errorf("%w: bronze threshold must be positive", ErrInvalidArgument)
	}
	if t[0] >= t[1] || t[1] >= t[2] {
		return fmt.Errorf("%w: thresholds %d, %d, %d are not strictly ascending", ErrInvalidArgument, t[0], t[1], t[2])
	}
	return nil
}

// Rate checks a percentage rate against the configured cap.
func Rate(rate uint64, opts ValidationOptions) error {
	if rate > opts.MaxRate {
		return fmt.Errorf("%w: rate %d exceeds %d", ErrInvalidArgument, rate, opts.MaxRate)
	}
	return nil
}
