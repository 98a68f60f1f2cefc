// Package host runs the staking engine inside the service. It serializes
// operations per pool, since every mutation touches the pool aggregate, and
// wraps each call in a tracing span.
package host

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yourorg/tiered-staking/internal/aggregate"
	"github.com/yourorg/tiered-staking/internal/config"
	"github.com/yourorg/tiered-staking/internal/model"
	"github.com/yourorg/tiered-staking/internal/otel"
	"github.com/yourorg/tiered-staking/internal/staking"
	"github.com/yourorg/tiered-staking/internal/types"
	"github.com/yourorg/tiered-staking/internal/validation"
)

// Host serializes engine calls per pool
type Host struct {
	engine  *staking.Engine
	metrics *Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a host. metrics may be nil.
func New(engine *staking.Engine, metrics *Metrics) *Host {
	return &Host{
		engine:  engine,
		metrics: metrics,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (h *Host) lockFor(pool string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[pool]
	if !ok {
		l = &sync.Mutex{}
		h.locks[pool] = l
	}
	return l
}

func (h *Host) run(ctx context.Context, op, pool string, fn func(ctx context.Context) error) error {
	ctx, span := otel.Tracer().Start(ctx, "staking."+op, trace.WithAttributes(
		attribute.String("staking.pool", pool),
	))
	defer span.End()

	l := h.lockFor(pool)
	l.Lock()
	defer l.Unlock()

	start := time.Now()
	err := fn(ctx)

	outcome := "ok"
	if err != nil {
		outcome = staking.Kind(err)
		otel.RecordError(ctx, err)
		logrus.WithFields(logrus.Fields{
			"operation": op,
			"pool":      pool,
			"kind":      outcome,
		}).Debugf("Staking operation failed: %v", err)
	}
	if h.metrics != nil {
		h.metrics.operations.WithLabelValues(op, outcome).Inc()
		h.metrics.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
	return err
}

// observeTotal refreshes the staked gauge. Callers hold the pool lock.
func (h *Host) observeTotal(ctx context.Context, pool string) {
	if h.metrics == nil {
		return
	}
	if p, err := h.engine.Pool(ctx, pool); err == nil {
		h.metrics.staked.WithLabelValues(pool).Set(float64(p.TotalStaked))
	}
}

// Initialize creates a pool
func (h *Host) Initialize(ctx context.Context, poolID string, variant string, authority common.Address) (*model.PoolAggregate, error) {
	var pool *model.PoolAggregate
	err := h.run(ctx, "initialize", poolID, func(ctx context.Context) error {
		v, err := parseVariant(variant)
		if err != nil {
			return err
		}
		pool, err = h.engine.Initialize(ctx, poolID, v, authority)
		return err
	})
	return pool, err
}

func parseVariant(s string) (types.Variant, error) {
	v, err := types.ParseVariant(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", staking.ErrInvalidArgument, err)
	}
	return v, nil
}

// Stake forwards to the engine
func (h *Host) Stake(ctx context.Context, req staking.StakeRequest) (*staking.StakeResult, error) {
	var res *staking.StakeResult
	err := h.run(ctx, "stake", req.Pool, func(ctx context.Context) error {
		var err error
		res, err = h.engine.Stake(ctx, req)
		if err == nil {
			h.observeTotal(ctx, req.Pool)
		}
		return err
	})
	return res, err
}

// Unstake forwards to the engine
func (h *Host) Unstake(ctx context.Context, pool string, owner common.Address, amount uint64) (*model.StakePosition, error) {
	var pos *model.StakePosition
	err := h.run(ctx, "unstake", pool, func(ctx context.Context) error {
		var err error
		pos, err = h.engine.Unstake(ctx, pool, owner, amount)
		if err == nil {
			h.observeTotal(ctx, pool)
		}
		return err
	})
	return pos, err
}

// Claim forwards to the engine
func (h *Host) Claim(ctx context.Context, pool string, owner, destination common.Address) (uint64, error) {
	var reward uint64
	err := h.run(ctx, "claim", pool, func(ctx context.Context) error {
		var err error
		reward, err = h.engine.Claim(ctx, pool, owner, destination)
		return err
	})
	return reward, err
}

// RefreshLevel forwards to the engine
func (h *Host) RefreshLevel(ctx context.Context, pool string, owner common.Address) (model.Tier, bool, error) {
	var (
		level   model.Tier
		changed bool
	)
	err := h.run(ctx, "refresh_level", pool, func(ctx context.Context) error {
		var err error
		level, changed, err = h.engine.RefreshLevel(ctx, pool, owner)
		return err
	})
	return level, changed, err
}

// UpdateTierThresholds forwards to the engine
func (h *Host) UpdateTierThresholds(ctx context.Context, pool string, actor common.Address, thresholds [3]uint64) (*model.PoolAggregate, error) {
	var out *model.PoolAggregate
	err := h.run(ctx, "update_tier_thresholds", pool, func(ctx context.Context) error {
		var err error
		out, err = h.engine.UpdateTierThresholds(ctx, pool, actor, thresholds)
		return err
	})
	return out, err
}

// UpdateTierRate forwards to the engine
func (h *Host) UpdateTierRate(ctx context.Context, pool string, actor common.Address, level model.Tier, rate uint64) (*model.PoolAggregate, error) {
	var out *model.PoolAggregate
	err := h.run(ctx, "update_tier_rate", pool, func(ctx context.Context) error {
		var err error
		out, err = h.engine.UpdateTierRate(ctx, pool, actor, level, rate)
		return err
	})
	return out, err
}

// UpdateBaseRate forwards to the engine
func (h *Host) UpdateBaseRate(ctx context.Context, pool string, actor common.Address, rate uint64) (*model.PoolAggregate, error) {
	var out *model.PoolAggregate
	err := h.run(ctx, "update_base_rate", pool, func(ctx context.Context) error {
		var err error
		out, err = h.engine.UpdateBaseRate(ctx, pool, actor, rate)
		return err
	})
	return out, err
}

// Pool returns the pool aggregate
func (h *Host) Pool(ctx context.Context, pool string) (*model.PoolAggregate, error) {
	var out *model.PoolAggregate
	err := h.run(ctx, "get_pool", pool, func(ctx context.Context) error {
		var err error
		out, err = h.engine.Pool(ctx, pool)
		return err
	})
	return out, err
}

// Info returns the staking info of a position
func (h *Host) Info(ctx context.Context, pool string, owner common.Address) (*model.StakingInfo, error) {
	var out *model.StakingInfo
	err := h.run(ctx, "get_staking_info", pool, func(ctx context.Context) error {
		var err error
		out, err = h.engine.Info(ctx, pool, owner)
		return err
	})
	return out, err
}

// Audit returns the pool audit report
func (h *Host) Audit(ctx context.Context, pool string) (aggregate.Report, error) {
	var out aggregate.Report
	err := h.run(ctx, "audit", pool, func(ctx context.Context) error {
		var err error
		out, err = h.engine.Audit(ctx, pool)
		return err
	})
	return out, err
}

// checkPool validates every parameter of a bootstrap entry so that no admin
// update can fail once the pool has been created.
func (h *Host) checkPool(p config.PoolConfig) error {
	opts := h.engine.Validation()
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", staking.ErrInvalidArgument, err)
	}
	if err := validation.PoolID(p.ID, opts); err != nil {
		return err
	}
	if len(p.Thresholds) == 3 {
		if err := validation.Thresholds([3]uint64{p.Thresholds[0], p.Thresholds[1], p.Thresholds[2]}); err != nil {
			return fmt.Errorf("pool %s: %w", p.ID, err)
		}
	}
	for _, rate := range p.TierRates {
		if err := validation.Rate(rate, opts); err != nil {
			return fmt.Errorf("pool %s: %w", p.ID, err)
		}
	}
	if p.BaseRate != nil {
		if err := validation.Rate(*p.BaseRate, opts); err != nil {
			return fmt.Errorf("pool %s: %w", p.ID, err)
		}
	}
	return nil
}

// Bootstrap creates the configured pools. A pool that already exists keeps
// its persisted parameters.
func (h *Host) Bootstrap(ctx context.Context, pools []config.PoolConfig) error {
	for _, p := range pools {
		if err := h.checkPool(p); err != nil {
			return err
		}
	}
	for _, p := range pools {
		authority := p.AuthorityAddress()
		_, err := h.Initialize(ctx, p.ID, p.Variant, authority)
		if errors.Is(err, staking.ErrPoolAlreadyInitialized) {
			logrus.WithField("pool", p.ID).Info("Pool already initialized, keeping stored parameters")
			continue
		}
		if err != nil {
			return err
		}

		if len(p.Thresholds) == 3 {
			if _, err := h.UpdateTierThresholds(ctx, p.ID, authority, [3]uint64{p.Thresholds[0], p.Thresholds[1], p.Thresholds[2]}); err != nil {
				return err
			}
		}
		for i, rate := range p.TierRates {
			if _, err := h.UpdateTierRate(ctx, p.ID, authority, model.Tier(i), rate); err != nil {
				return err
			}
		}
		if p.BaseRate != nil {
			if _, err := h.UpdateBaseRate(ctx, p.ID, authority, *p.BaseRate); err != nil {
				return err
			}
		}
		logrus.WithFields(logrus.Fields{
			"pool":    p.ID,
			"variant": p.VariantValue(),
		}).Info("Pool bootstrapped")
	}
	return nil
}
