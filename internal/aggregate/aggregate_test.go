package aggregate

import (
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/tiered-staking/internal/model"
)

func position(owner byte, principal, rate uint64, level model.Tier) *model.StakePosition {
	return &model.StakePosition{
		Pool:          "main",
		Owner:         common.BytesToAddress([]byte{owner}),
		Principal:     principal,
		EffectiveRate: rate,
		Level:         level,
	}
}

func TestWeighted(t *testing.T) {
	positions := []*model.StakePosition{
		position(1, 1000, 5, model.TierBronze),
		position(2, 3000, 10, model.TierSilver),
		position(3, 0, 99, model.TierGold),
	}
	// (5*1000 + 10*3000) / 4000
	assert.InDelta(t, 8.75, Weighted(positions), 1e-9)
	assert.Equal(t, float64(0), Weighted(nil))
}

func TestMedian(t *testing.T) {
	rate := func(p *model.StakePosition) float64 { return float64(p.EffectiveRate) }

	odd := []*model.StakePosition{position(1, 1, 9, 0), position(2, 1, 3, 0), position(3, 1, 5, 0)}
	assert.Equal(t, float64(5), Median(odd, rate))

	even := append(odd, position(4, 1, 7, 0))
	assert.Equal(t, float64(6), Median(even, rate))

	assert.Equal(t, float64(0), Median(nil, rate))
}

func TestAudit(t *testing.T) {
	pool := &model.PoolAggregate{ID: "main", TotalStaked: 1_000_000, TotalRewardsDistributed: 12}
	positions := []*model.StakePosition{
		position(1, 1_000_000, 15, model.TierGold),
		position(2, 0, 5, model.TierBronze),
	}

	report, err := Audit(pool, positions, 31_536_000)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, uint64(1_000_000), report.SumPrincipal)
	assert.Equal(t, 2, report.Positions)
	assert.Equal(t, 1, report.ActivePositions)
	assert.Equal(t, uint64(150_000), report.PendingRewards)
	assert.Equal(t, map[string]int{"gold": 1}, report.TierCounts)
	assert.Equal(t, float64(15), report.WeightedRate)
	assert.Equal(t, float64(15), report.MedianRate)
}

func TestAudit_DetectsDrift(t *testing.T) {
	pool := &model.PoolAggregate{ID: "main", TotalStaked: 10}
	report, err := Audit(pool, []*model.StakePosition{position(1, 9, 5, 0)}, 0)
	require.NoError(t, err)
	assert.False(t, report.Consistent)
}

func TestAudit_Overflow(t *testing.T) {
	pool := &model.PoolAggregate{ID: "main"}
	_, err := Audit(pool, []*model.StakePosition{
		position(1, math.MaxUint64, 0, 0),
		position(2, 1, 0, 0),
	}, 0)
	assert.Error(t, err)
}
