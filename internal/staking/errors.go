package staking

import (
	"errors"
	"fmt"

	"github.com/yourorg/tiered-staking/internal/accrual"
	"github.com/yourorg/tiered-staking/internal/ledger"
	"github.com/yourorg/tiered-staking/internal/safemath"
	"github.com/yourorg/tiered-staking/internal/store"
	"github.com/yourorg/tiered-staking/internal/validation"
)

var (
	ErrUnauthorized           = errors.New("stake: unauthorized")
	ErrInsufficientFunds      = errors.New("stake: insufficient funds")
	ErrLockPeriodNotExpired   = errors.New("stake: lock period not expired")
	ErrNoRewardsToClaim       = errors.New("stake: no rewards to claim")
	ErrArithmeticOverflow     = errors.New("stake: arithmetic overflow")
	ErrPoolAlreadyInitialized = errors.New("stake: pool already initialized")
	ErrVariantMismatch        = errors.New("stake: operation not supported by pool variant")
	ErrLedgerFailure          = errors.New("stake: ledger failure")

	ErrInvalidAmount    = validation.ErrInvalidAmount
	ErrInvalidArgument  = validation.ErrInvalidArgument
	ErrPoolNotFound     = store.ErrPoolNotFound
	ErrPositionNotFound = store.ErrPositionNotFound
	ErrClockRegression  = accrual.ErrClockRegression
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrUnauthorized, "Unauthorized"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrLockPeriodNotExpired, "LockPeriodNotExpired"},
	{ErrNoRewardsToClaim, "NoRewardsToClaim"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrInvalidAmount, "InvalidAmount"},
	{ErrInvalidArgument, "InvalidArgument"},
	{ErrPoolNotFound, "PoolNotFound"},
	{ErrPoolAlreadyInitialized, "PoolAlreadyInitialized"},
	{ErrPositionNotFound, "PositionNotFound"},
	{ErrClockRegression, "ClockRegression"},
	{ErrVariantMismatch, "VariantMismatch"},
	{ErrLedgerFailure, "LedgerFailure"},
}

// Kind returns the stable name of the error's kind, or "Internal".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}

// arithmetic tags errors from checked math with ErrArithmeticOverflow.
func arithmetic(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, safemath.ErrOverflow) || errors.Is(err, safemath.ErrDivisionByZero) {
		return fmt.Errorf("%w: %w", ErrArithmeticOverflow, err)
	}
	return err
}

// ledgerError maps a ledger failure onto the engine's taxonomy.
func ledgerError(op string, err error) error {
	if errors.Is(err, ledger.ErrInsufficientBalance) {
		return fmt.Errorf("%s: %w: %w", op, ErrInsufficientFunds, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrLedgerFailure, err)
}
