package staking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourorg/tiered-staking/internal/ledger"
	"github.com/yourorg/tiered-staking/internal/safemath"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnauthorized, "Unauthorized"},
		{fmt.Errorf("wrapped: %w", ErrLockPeriodNotExpired), "LockPeriodNotExpired"},
		{arithmetic(fmt.Errorf("x: %w", safemath.ErrOverflow)), "ArithmeticOverflow"},
		{arithmetic(safemath.ErrDivisionByZero), "ArithmeticOverflow"},
		{ledgerError("stake", ledger.ErrInsufficientBalance), "InsufficientFunds"},
		{ledgerError("stake", ledger.ErrUnavailable), "LedgerFailure"},
		{ErrPoolNotFound, "PoolNotFound"},
		{ErrClockRegression, "ClockRegression"},
		{errors.New("disk on fire"), "Internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err))
	}
}

func TestArithmetic_PassesOtherErrorsThrough(t *testing.T) {
	other := errors.New("other")
	assert.Equal(t, other, arithmetic(other))
	assert.Nil(t, arithmetic(nil))
}
