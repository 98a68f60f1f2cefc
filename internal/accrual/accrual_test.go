package accrual

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/tiered-staking/internal/model"
	"github.com/yourorg/tiered-staking/internal/safemath"
)

func TestReward(t *testing.T) {
	tests := []struct {
		name      string
		principal uint64
		rate      uint64
		elapsed   uint64
		want      uint64
	}{
		{"one year at 15 percent", 1_000_000, 15, SecondsPerYear, 150_000},
		{"zero elapsed", 1_000_000, 15, 0, 0},
		{"zero principal", 0, 15, SecondsPerYear, 0},
		{"half year", 1_000_000, 10, SecondsPerYear / 2, 50_000},
		// 100*5*86400 = 43,200,000 / 31,536,000 = 1, then /100 = 0
		{"dust is forfeited", 100, 5, 86_400, 0},
		// 1e9*9*86400 = 777,600,000,000,000 / 31,536,000 = 24,657,534 / 100 = 246,575
		{"one day", 1_000_000_000, 9, 86_400, 246_575},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reward(tt.principal, tt.rate, tt.elapsed)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReward_OverflowAborts(t *testing.T) {
	_, err := Reward(math.MaxUint64/10, 60, 1)
	assert.ErrorIs(t, err, safemath.ErrOverflow)

	// principal*rate fits but multiplying by a decade of seconds does not
	_, err = Reward(1<<50, 60, 10*SecondsPerYear)
	assert.ErrorIs(t, err, safemath.ErrOverflow)
}

func TestElapsed_ClockRegression(t *testing.T) {
	_, err := Elapsed(200, 100)
	assert.ErrorIs(t, err, ErrClockRegression)

	got, err := Elapsed(100, 100)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestPending(t *testing.T) {
	p := &model.StakePosition{
		Principal:     1_000_000,
		EffectiveRate: 15,
		LastClaimTime: 1_000,
	}
	got, err := Pending(p, 1_000+int64(SecondsPerYear))
	require.NoError(t, err)
	assert.Equal(t, uint64(150_000), got)
}

func TestForfeitable(t *testing.T) {
	// 60e9 * 60 * 60 days overflows the checked product
	p := &model.StakePosition{
		Principal:     60_000_000_000,
		EffectiveRate: 60,
		LastClaimTime: 0,
	}
	now := int64(60 * 86_400)
	_, err := Pending(p, now)
	require.ErrorIs(t, err, safemath.ErrOverflow)

	got, err := Forfeitable(p, now)
	require.NoError(t, err)
	// 60e9*60*5,184,000 / 31,536,000 / 100
	assert.Equal(t, uint64(5_917_808_219), got)

	p.Principal = math.MaxUint64
	p.EffectiveRate = 255
	got, err = Forfeitable(p, math.MaxInt64)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), got)

	_, err = Forfeitable(p, -1)
	assert.ErrorIs(t, err, ErrClockRegression)
}
