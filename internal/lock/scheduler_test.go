package lock

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/tiered-staking/internal/model"
	"github.com/yourorg/tiered-staking/internal/safemath"
)

func TestEligible_InclusiveBoundary(t *testing.T) {
	p := &model.StakePosition{StakeTime: 1_700_000_000, LockDuration: 90 * 24 * 60 * 60}
	expiry := p.StakeTime + p.LockDuration

	ok, err := Eligible(p, expiry-1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Eligible(p, expiry)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Eligible(p, expiry+1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEligible_ZeroLock(t *testing.T) {
	p := &model.StakePosition{StakeTime: 100}
	ok, err := Eligible(p, 100)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemaining(t *testing.T) {
	p := &model.StakePosition{StakeTime: 1_000, LockDuration: 500}

	rem, err := Remaining(p, 1_200)
	require.NoError(t, err)
	assert.Equal(t, int64(300), rem)

	rem, err = Remaining(p, 1_500)
	require.NoError(t, err)
	assert.Zero(t, rem)
}

func TestExpiry_Overflow(t *testing.T) {
	p := &model.StakePosition{StakeTime: math.MaxInt64 - 10, LockDuration: 11}
	_, err := Eligible(p, 0)
	assert.ErrorIs(t, err, safemath.ErrOverflow)
}
