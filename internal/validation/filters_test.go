package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourorg/tiered-staking/internal/types"
)

func TestPoolID(t *testing.T) {
	opts := DefaultValidationOptions()
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "main", false},
		{"with separators", "pool-1.v2_x", false},
		{"empty", "", true},
		{"slash", "a/b", true},
		{"leading dash", "-main", true},
		{"too long", strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PoolID(tt.id, opts)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAmount(t *testing.T) {
	assert.ErrorIs(t, Amount(0), ErrInvalidAmount)
	assert.NoError(t, Amount(1))
}

func TestLockDuration(t *testing.T) {
	opts := DefaultValidationOptions()
	assert.NoError(t, LockDuration(0, opts))
	assert.NoError(t, LockDuration(365*types.Day, opts))
	assert.ErrorIs(t, LockDuration(-1, opts), ErrInvalidArgument)
	assert.ErrorIs(t, LockDuration(opts.MaxLockDuration+1, opts), ErrInvalidArgument)

	opts.MaxLockDuration = 0
	assert.NoError(t, LockDuration(100*365*types.Day, opts), "Zero disables the cap")
}

func TestLockMonths(t *testing.T) {
	opts := DefaultValidationOptions()
	assert.NoError(t, LockMonths(255, opts))
	assert.ErrorIs(t, LockMonths(256, opts), ErrInvalidArgument)
}

func TestThresholds(t *testing.T) {
	tests := []struct {
		name       string
		thresholds [3]uint64
		wantErr    bool
	}{
		{"ascending", [3]uint64{1, 2, 3}, false},
		{"defaults", [3]uint64{500_000_000, 5_000_000_000, 50_000_000_000}, false},
		{"equal", [3]uint64{1, 1, 3}, true},
		{"descending", [3]uint64{3, 2, 1}, true},
		{"zero bronze", [3]uint64{0, 2, 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Thresholds(tt.thresholds)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidArgument)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRate(t *testing.T) {
	opts := DefaultValidationOptions()
	assert.NoError(t, Rate(0, opts))
	assert.NoError(t, Rate(255, opts))
	assert.ErrorIs(t, Rate(256, opts), ErrInvalidArgument)
}
