// Package staking implements the staking operations: pool initialization,
// stake, unstake, reward claims, level refresh and the authority-gated tier
// administration. Each operation validates and computes every new value
// before it calls the ledger, then commits the pool and position together.
package staking

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/yourorg/tiered-staking/internal/accrual"
	"github.com/yourorg/tiered-staking/internal/aggregate"
	"github.com/yourorg/tiered-staking/internal/events"
	"github.com/yourorg/tiered-staking/internal/ledger"
	"github.com/yourorg/tiered-staking/internal/lock"
	"github.com/yourorg/tiered-staking/internal/model"
	"github.com/yourorg/tiered-staking/internal/safemath"
	"github.com/yourorg/tiered-staking/internal/tier"
	"github.com/yourorg/tiered-staking/internal/types"
	"github.com/yourorg/tiered-staking/internal/validation"
)

// Store persists pools and positions. Commit must write all records or none.
type Store interface {
	Pool(id string) (*model.PoolAggregate, error)
	Position(pool string, owner common.Address) (*model.StakePosition, error)
	Positions(pool string) ([]*model.StakePosition, error)
	Commit(pool *model.PoolAggregate, positions ...*model.StakePosition) error
}

// Engine executes staking operations. It holds no locks; callers serialize
// operations that touch the same pool.
type Engine struct {
	store  Store
	ledger ledger.Ledger
	sink   events.Sink
	opts   validation.ValidationOptions
	now    func() time.Time
	log    logrus.FieldLogger
}

// Option configures an Engine
type Option func(*Engine)

// WithSink sets the event sink
func WithSink(sink events.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithValidation overrides the argument limits
func WithValidation(opts validation.ValidationOptions) Option {
	return func(e *Engine) { e.opts = opts }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an engine over a store and a ledger
func New(st Store, l ledger.Ledger, opts ...Option) *Engine {
	e := &Engine{
		store:  st,
		ledger: l,
		sink:   events.NoopSink{},
		opts:   validation.DefaultValidationOptions(),
		now:    time.Now,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validation returns the argument limits the engine enforces
func (e *Engine) Validation() validation.ValidationOptions {
	return e.opts
}

// StakeRequest are the inputs of a stake call. At most one of LockSeconds
// and LockMonths may be set; months are only accepted by tiered pools.
type StakeRequest struct {
	Pool        string
	Owner       common.Address
	Amount      uint64
	LockSeconds int64
	LockMonths  uint64
}

// StakeResult describes a completed stake
type StakeResult struct {
	Position *model.StakePosition `json:"position"`
	Rate     tier.Rate            `json:"rate"`
	// Forfeited is the pending reward discarded by resetting last_claim_time
	Forfeited uint64 `json:"forfeited_reward"`
}

// Initialize creates a pool with the variant's default parameters. The caller
// becomes the pool authority.
func (e *Engine) Initialize(ctx context.Context, poolID string, variant types.Variant, authority common.Address) (*model.PoolAggregate, error) {
	if err := validation.PoolID(poolID, e.opts); err != nil {
		return nil, err
	}
	params, err := variant.Params()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	_, err = e.store.Pool(poolID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", ErrPoolAlreadyInitialized, poolID)
	case !errors.Is(err, ErrPoolNotFound):
		return nil, err
	}

	now := e.now().Unix()
	pool := &model.PoolAggregate{
		ID:             poolID,
		Variant:        variant,
		Authority:      authority,
		TierThresholds: params.PoolThresholds,
		TierBaseRates:  params.BaseRates,
		BaseRate:       params.FlatRate,
		CreatedAt:      now,
	}
	if err := e.store.Commit(pool); err != nil {
		return nil, err
	}

	e.emit(ctx, events.New(events.TypePoolInitialized, poolID, authority, now).
		With("variant", string(variant)))
	return pool, nil
}

// Pool returns a pool aggregate
func (e *Engine) Pool(_ context.Context, poolID string) (*model.PoolAggregate, error) {
	return e.store.Pool(poolID)
}

// Stake adds amount to the owner's position. The lock, stake time and rate
// are overwritten and last_claim_time moves to now, so any pending reward is
// forfeited.
func (e *Engine) Stake(ctx context.Context, req StakeRequest) (*StakeResult, error) {
	if err := validation.Amount(req.Amount); err != nil {
		return nil, err
	}
	pool, err := e.store.Pool(req.Pool)
	if err != nil {
		return nil, err
	}
	lockSeconds, err := e.lockSeconds(pool, req)
	if err != nil {
		return nil, err
	}

	now := e.now().Unix()
	pos, err := e.store.Position(req.Pool, req.Owner)
	switch {
	case errors.Is(err, ErrPositionNotFound):
		pos = &model.StakePosition{Pool: req.Pool, Owner: req.Owner}
	case err != nil:
		return nil, err
	}

	forfeited, err := accrual.Forfeitable(pos, now)
	if err != nil {
		return nil, err
	}
	principal, err := safemath.Add(pos.Principal, req.Amount)
	if err != nil {
		return nil, arithmetic(err)
	}
	cumulative, err := safemath.Add(pos.CumulativeStakeForTier, req.Amount)
	if err != nil {
		return nil, arithmetic(err)
	}
	total, err := safemath.Add(pool.TotalStaked, req.Amount)
	if err != nil {
		return nil, arithmetic(err)
	}
	if _, err := safemath.AddInt64(now, lockSeconds); err != nil {
		return nil, arithmetic(err)
	}

	resolver, err := tier.NewResolver(pool.Variant)
	if err != nil {
		return nil, err
	}
	rate, err := resolver.Resolve(pool, cumulative, lockSeconds)
	if err != nil {
		return nil, arithmetic(err)
	}

	nextPos := *pos
	nextPos.Principal = principal
	nextPos.CumulativeStakeForTier = cumulative
	nextPos.LockDuration = lockSeconds
	nextPos.StakeTime = now
	nextPos.LastClaimTime = now
	nextPos.EffectiveRate = rate.Effective

	nextPool := *pool
	nextPool.TotalStaked = total

	ctx = ledger.WithIdempotencyKey(ctx, operationKey("stake", pos, req.Amount))
	if err := e.ledger.TransferIn(ctx, req.Pool, req.Owner, req.Amount); err != nil {
		return nil, ledgerError("stake", err)
	}
	if err := e.commit(&nextPool, &nextPos); err != nil {
		return nil, err
	}

	rec := events.New(events.TypeStaked, req.Pool, req.Owner, now)
	rec.Amount = req.Amount
	rec.Rate = rate.Effective
	rec.Tier = rate.Level.String()
	e.emit(ctx, rec.
		WithUint("principal", principal).
		With("lock_duration", fmt.Sprintf("%d", lockSeconds)).
		WithUint("stake_multiplier", rate.StakeMultiplier).
		WithUint("lock_multiplier", rate.LockMultiplier).
		WithUint("forfeited_reward", forfeited))

	return &StakeResult{Position: &nextPos, Rate: rate, Forfeited: forfeited}, nil
}

func (e *Engine) lockSeconds(pool *model.PoolAggregate, req StakeRequest) (int64, error) {
	if req.LockMonths == 0 {
		return req.LockSeconds, validation.LockDuration(req.LockSeconds, e.opts)
	}
	if req.LockSeconds != 0 {
		return 0, fmt.Errorf("%w: lock given in both seconds and months", ErrInvalidArgument)
	}
	if pool.Variant != types.VariantTiered {
		return 0, fmt.Errorf("%w: lock months require a tiered pool", ErrVariantMismatch)
	}
	if err := validation.LockMonths(req.LockMonths, e.opts); err != nil {
		return 0, err
	}
	seconds, err := tier.MonthsToSeconds(req.LockMonths)
	if err != nil {
		return 0, arithmetic(err)
	}
	return seconds, nil
}

// Unstake withdraws amount once the lock has expired. The frozen rate, lock
// duration and stake time are left as they are.
func (e *Engine) Unstake(ctx context.Context, poolID string, owner common.Address, amount uint64) (*model.StakePosition, error) {
	if err := validation.Amount(amount); err != nil {
		return nil, err
	}
	pool, err := e.store.Pool(poolID)
	if err != nil {
		return nil, err
	}
	pos, err := e.store.Position(poolID, owner)
	if err != nil {
		return nil, err
	}

	if amount > pos.Principal {
		return nil, fmt.Errorf("%w: unstake %d exceeds principal %d", ErrInsufficientFunds, amount, pos.Principal)
	}
	now := e.now().Unix()
	eligible, err := lock.Eligible(pos, now)
	if err != nil {
		return nil, arithmetic(err)
	}
	if !eligible {
		remaining, _ := lock.Remaining(pos, now)
		return nil, fmt.Errorf("%w: %d seconds remaining", ErrLockPeriodNotExpired, remaining)
	}

	total, err := safemath.Sub(pool.TotalStaked, amount)
	if err != nil {
		return nil, arithmetic(err)
	}

	nextPos := *pos
	nextPos.Principal = pos.Principal - amount
	nextPool := *pool
	nextPool.TotalStaked = total

	ctx = ledger.WithIdempotencyKey(ctx, operationKey("unstake", pos, amount))
	if err := e.ledger.TransferOut(ctx, poolID, owner, amount); err != nil {
		return nil, ledgerError("unstake", err)
	}
	if err := e.commit(&nextPool, &nextPos); err != nil {
		return nil, err
	}

	rec := events.New(events.TypeUnstaked, poolID, owner, now)
	rec.Amount = amount
	rec.Rate = nextPos.EffectiveRate
	e.emit(ctx, rec.WithUint("principal", nextPos.Principal))
	return &nextPos, nil
}

// Claim mints the reward accrued since the last claim to destination, or to
// the owner when destination is the zero address. The lock is not consulted.
func (e *Engine) Claim(ctx context.Context, poolID string, owner, destination common.Address) (uint64, error) {
	pool, err := e.store.Pool(poolID)
	if err != nil {
		return 0, err
	}
	pos, err := e.store.Position(poolID, owner)
	if err != nil {
		return 0, err
	}

	now := e.now().Unix()
	reward, err := accrual.Pending(pos, now)
	if err != nil {
		return 0, arithmetic(err)
	}
	if reward == 0 {
		return 0, ErrNoRewardsToClaim
	}
	distributed, err := safemath.Add(pool.TotalRewardsDistributed, reward)
	if err != nil {
		return 0, arithmetic(err)
	}

	if destination == (common.Address{}) {
		destination = owner
	}

	nextPos := *pos
	nextPos.LastClaimTime = now
	nextPool := *pool
	nextPool.TotalRewardsDistributed = distributed

	// the reward grows with time, so the key leaves it out
	ctx = ledger.WithIdempotencyKey(ctx, operationKey("claim", pos, 0))
	if err := e.ledger.Mint(ctx, poolID, destination, reward); err != nil {
		return 0, ledgerError("claim", err)
	}
	if err := e.commit(&nextPool, &nextPos); err != nil {
		return 0, err
	}

	rec := events.New(events.TypeRewardsClaimed, poolID, owner, now)
	rec.Amount = reward
	rec.Rate = pos.EffectiveRate
	e.emit(ctx, rec.With("destination", destination.Hex()))
	return reward, nil
}

// RefreshLevel reclassifies the position's pool tier from its cumulative
// stake. The second result reports whether the level changed.
func (e *Engine) RefreshLevel(ctx context.Context, poolID string, owner common.Address) (model.Tier, bool, error) {
	pool, err := e.store.Pool(poolID)
	if err != nil {
		return 0, false, err
	}
	pos, err := e.store.Position(poolID, owner)
	if err != nil {
		return 0, false, err
	}
	resolver, err := tier.NewResolver(pool.Variant)
	if err != nil {
		return 0, false, err
	}

	level := resolver.Level(pool, pos.CumulativeStakeForTier)
	if level == pos.Level {
		return level, false, nil
	}

	nextPos := *pos
	nextPos.Level = level
	if err := e.commit(nil, &nextPos); err != nil {
		return 0, false, err
	}

	rec := events.New(events.TypeLevelUpdated, poolID, owner, e.now().Unix())
	rec.Tier = level.String()
	e.emit(ctx, rec.With("old_level", pos.Level.String()))
	return level, true, nil
}

// UpdateTierThresholds replaces a tiered pool's thresholds. Frozen rates of
// existing positions are unaffected.
func (e *Engine) UpdateTierThresholds(ctx context.Context, poolID string, actor common.Address, thresholds [3]uint64) (*model.PoolAggregate, error) {
	pool, err := e.authorize(poolID, actor, types.VariantTiered)
	if err != nil {
		return nil, err
	}
	if err := validation.Thresholds(thresholds); err != nil {
		return nil, err
	}

	next := *pool
	next.TierThresholds = thresholds
	if err := e.commit(&next); err != nil {
		return nil, err
	}

	e.emit(ctx, events.New(events.TypeThresholdsUpdated, poolID, actor, e.now().Unix()).
		WithUint("bronze", thresholds[0]).
		WithUint("silver", thresholds[1]).
		WithUint("gold", thresholds[2]))
	return &next, nil
}

// UpdateTierRate sets the base rate of one tier of a tiered pool
func (e *Engine) UpdateTierRate(ctx context.Context, poolID string, actor common.Address, level model.Tier, rate uint64) (*model.PoolAggregate, error) {
	pool, err := e.authorize(poolID, actor, types.VariantTiered)
	if err != nil {
		return nil, err
	}
	if level > model.TierGold {
		return nil, fmt.Errorf("%w: unknown tier %d", ErrInvalidArgument, level)
	}
	if err := validation.Rate(rate, e.opts); err != nil {
		return nil, err
	}

	next := *pool
	next.TierBaseRates[level] = rate
	if err := e.commit(&next); err != nil {
		return nil, err
	}

	rec := events.New(events.TypeTierRateUpdated, poolID, actor, e.now().Unix())
	rec.Rate = rate
	rec.Tier = level.String()
	e.emit(ctx, rec)
	return &next, nil
}

// UpdateBaseRate sets the staking_apr of a flat pool
func (e *Engine) UpdateBaseRate(ctx context.Context, poolID string, actor common.Address, rate uint64) (*model.PoolAggregate, error) {
	pool, err := e.authorize(poolID, actor, types.VariantFlat)
	if err != nil {
		return nil, err
	}
	if err := validation.Rate(rate, e.opts); err != nil {
		return nil, err
	}

	next := *pool
	next.BaseRate = rate
	if err := e.commit(&next); err != nil {
		return nil, err
	}

	rec := events.New(events.TypeBaseRateUpdated, poolID, actor, e.now().Unix())
	rec.Rate = rate
	e.emit(ctx, rec)
	return &next, nil
}

func (e *Engine) authorize(poolID string, actor common.Address, variant types.Variant) (*model.PoolAggregate, error) {
	pool, err := e.store.Pool(poolID)
	if err != nil {
		return nil, err
	}
	if actor != pool.Authority {
		return nil, fmt.Errorf("%w: %s is not the authority of %s", ErrUnauthorized, actor.Hex(), poolID)
	}
	if pool.Variant != variant {
		return nil, fmt.Errorf("%w: %s pool", ErrVariantMismatch, pool.Variant)
	}
	return pool, nil
}

// Info returns the read-only view of a position
func (e *Engine) Info(_ context.Context, poolID string, owner common.Address) (*model.StakingInfo, error) {
	pos, err := e.store.Position(poolID, owner)
	if err != nil {
		return nil, err
	}
	now := e.now().Unix()

	pending, err := accrual.Pending(pos, now)
	if err != nil {
		return nil, arithmetic(err)
	}
	remaining, err := lock.Remaining(pos, now)
	if err != nil {
		return nil, arithmetic(err)
	}

	return &model.StakingInfo{
		Pool:            poolID,
		Owner:           owner,
		Principal:       pos.Principal,
		EffectiveRate:   pos.EffectiveRate,
		Level:           pos.Level.String(),
		LockDuration:    pos.LockDuration,
		PendingReward:   pending,
		LockRemaining:   remaining,
		CumulativeStake: pos.CumulativeStakeForTier,
		LastClaimTime:   pos.LastClaimTime,
		UnlockEligible:  remaining == 0,
	}, nil
}

// Audit reports whether the pool total matches its positions
func (e *Engine) Audit(_ context.Context, poolID string) (aggregate.Report, error) {
	pool, err := e.store.Pool(poolID)
	if err != nil {
		return aggregate.Report{}, err
	}
	positions, err := e.store.Positions(poolID)
	if err != nil {
		return aggregate.Report{}, err
	}
	report, err := aggregate.Audit(pool, positions, e.now().Unix())
	if err != nil {
		return aggregate.Report{}, arithmetic(err)
	}
	return report, nil
}

// operationKey identifies one ledger movement by the position state it applies
// to. A replay after a failed commit sees the same state and reuses the key.
func operationKey(op string, pos *model.StakePosition, amount uint64) string {
	return ledger.OperationKey(op, pos.Pool, pos.Owner.Hex(),
		strconv.FormatUint(pos.Principal, 10),
		strconv.FormatUint(pos.CumulativeStakeForTier, 10),
		strconv.FormatInt(pos.StakeTime, 10),
		strconv.FormatInt(pos.LastClaimTime, 10),
		strconv.FormatUint(amount, 10))
}

// commit writes the records. A failure here comes after the ledger call has
// already been applied, so it is logged loudly for reconciliation.
func (e *Engine) commit(pool *model.PoolAggregate, positions ...*model.StakePosition) error {
	if err := e.store.Commit(pool, positions...); err != nil {
		fields := logrus.Fields{"error": err}
		if pool != nil {
			fields["pool"] = pool.ID
		}
		e.log.WithFields(fields).Error("Failed to commit staking records")
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (e *Engine) emit(ctx context.Context, rec events.Record) {
	if e.sink != nil {
		e.sink.Emit(ctx, rec)
	}
}
