package host

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/tiered-staking/internal/config"
	"github.com/yourorg/tiered-staking/internal/ledger"
	"github.com/yourorg/tiered-staking/internal/model"
	"github.com/yourorg/tiered-staking/internal/staking"
	"github.com/yourorg/tiered-staking/internal/store"
)

var (
	admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
)

func newHost(t *testing.T) (*Host, *ledger.Memory, *Metrics) {
	t.Helper()
	l := ledger.NewMemory()
	require.NoError(t, l.Credit(alice, 1_000_000_000))
	now := time.Unix(1_700_000_000, 0)
	engine := staking.New(store.NewMemory(), l, staking.WithClock(func() time.Time { return now }))
	metrics := NewMetrics(prometheus.NewRegistry())
	return New(engine, metrics), l, metrics
}

func TestHost_RecordsOutcomes(t *testing.T) {
	h, _, m := newHost(t)
	ctx := context.Background()

	_, err := h.Initialize(ctx, "main", "tiered", admin)
	require.NoError(t, err)

	_, err = h.Stake(ctx, staking.StakeRequest{Pool: "main", Owner: alice, Amount: 1_000})
	require.NoError(t, err)

	_, err = h.Claim(ctx, "main", alice, common.Address{})
	assert.ErrorIs(t, err, staking.ErrNoRewardsToClaim)

	_, err = h.Initialize(ctx, "bad", "weird", admin)
	assert.ErrorIs(t, err, staking.ErrInvalidArgument)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("stake", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("claim", "NoRewardsToClaim")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("initialize", "InvalidArgument")))
	assert.Equal(t, float64(1_000), testutil.ToFloat64(m.staked.WithLabelValues("main")))
}

func TestHost_SerializesPerPool(t *testing.T) {
	h, l, _ := newHost(t)
	ctx := context.Background()
	_, err := h.Initialize(ctx, "main", "flat", admin)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.Stake(ctx, staking.StakeRequest{Pool: "main", Owner: alice, Amount: 10})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	pool, err := h.Pool(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), pool.TotalStaked)
	assert.Equal(t, uint64(500), l.VaultBalance("main"))

	report, err := h.Audit(ctx, "main")
	require.NoError(t, err)
	assert.True(t, report.Consistent)

	info, err := h.Info(ctx, "main", alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), info.Principal)
}

func TestHost_Bootstrap(t *testing.T) {
	h, _, _ := newHost(t)
	ctx := context.Background()
	flatRate := uint64(9)

	pools := []config.PoolConfig{
		{ID: "main", Variant: "tiered", Authority: admin.Hex(), Thresholds: []uint64{10, 20, 30}, TierRates: []uint64{1, 2, 3}},
		{ID: "token", Variant: "flat", Authority: admin.Hex(), BaseRate: &flatRate},
	}
	require.NoError(t, h.Bootstrap(ctx, pools))

	mainPool, err := h.Pool(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, [3]uint64{10, 20, 30}, mainPool.TierThresholds)
	assert.Equal(t, [3]uint64{1, 2, 3}, mainPool.TierBaseRates)

	token, err := h.Pool(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), token.BaseRate)

	// A second run leaves admin changes made since then alone
	_, err = h.UpdateTierRate(ctx, "main", admin, model.TierGold, 40)
	require.NoError(t, err)
	require.NoError(t, h.Bootstrap(ctx, pools))
	mainPool, err = h.Pool(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), mainPool.TierBaseRates[model.TierGold])
}

func TestHost_BootstrapRejectsBadEntryBeforeWriting(t *testing.T) {
	h, _, _ := newHost(t)
	ctx := context.Background()
	tooHigh := uint64(1_000)

	tests := []struct {
		name string
		bad  config.PoolConfig
	}{
		{"descending thresholds", config.PoolConfig{ID: "bad", Variant: "tiered", Authority: admin.Hex(), Thresholds: []uint64{30, 20, 10}}},
		{"tier rate above cap", config.PoolConfig{ID: "bad", Variant: "tiered", Authority: admin.Hex(), TierRates: []uint64{1, 2, 1_000}}},
		{"base rate above cap", config.PoolConfig{ID: "bad", Variant: "flat", Authority: admin.Hex(), BaseRate: &tooHigh}},
		{"pool id with slash", config.PoolConfig{ID: "a/b", Variant: "flat", Authority: admin.Hex()}},
		{"unknown variant", config.PoolConfig{ID: "bad", Variant: "linear", Authority: admin.Hex()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pools := []config.PoolConfig{
				{ID: "good", Variant: "flat", Authority: admin.Hex()},
				tt.bad,
			}
			err := h.Bootstrap(ctx, pools)
			assert.ErrorIs(t, err, staking.ErrInvalidArgument)

			_, err = h.Pool(ctx, tt.bad.ID)
			assert.ErrorIs(t, err, staking.ErrPoolNotFound)
			_, err = h.Pool(ctx, "good")
			assert.ErrorIs(t, err, staking.ErrPoolNotFound, "Nothing is created when any entry is invalid")
		})
	}
}
