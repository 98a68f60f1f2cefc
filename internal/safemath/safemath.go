// Package safemath provides checked uint64 arithmetic. Intermediate values are
// held in a 256-bit integer so an overflow is detected before the result is
// narrowed back to the 64-bit working width.
package safemath

import (
	"errors"
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

var (
	// ErrOverflow is returned when a result does not fit the working width.
	ErrOverflow = errors.New("arithmetic overflow")
	// ErrDivisionByZero is returned for a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")
)

// Expr evaluates a left-to-right chain of checked operations. The first
// failure sticks and every later step is skipped.
type Expr struct {
	v    uint256.Int
	err  error
	wide bool
}

// From starts a chain with x.
func From(x uint64) *Expr {
	e := &Expr{}
	e.v.SetUint64(x)
	return e
}

// Wide starts a chain whose intermediates may use the full 256 bits. Only the
// final value has to fit the working width, see Result and Saturated.
func Wide(x uint64) *Expr {
	e := From(x)
	e.wide = true
	return e
}

// Mul multiplies the running value by y.
func (e *Expr) Mul(y uint64) *Expr {
	if e.err != nil {
		return e
	}
	var z uint256.Int
	if _, overflow := z.MulOverflow(&e.v, uint256.NewInt(y)); overflow || (!e.wide && !z.IsUint64()) {
		e.err = fmt.Errorf("%w: %s * %d", ErrOverflow, e.v.Dec(), y)
		return e
	}
	e.v = z
	return e
}

// Add adds y to the running value.
func (e *Expr) Add(y uint64) *Expr {
	if e.err != nil {
		return e
	}
	var z uint256.Int
	if _, overflow := z.AddOverflow(&e.v, uint256.NewInt(y)); overflow || (!e.wide && !z.IsUint64()) {
		e.err = fmt.Errorf("%w: %s + %d", ErrOverflow, e.v.Dec(), y)
		return e
	}
	e.v = z
	return e
}

// Sub subtracts y from the running value. Going below zero is an overflow.
func (e *Expr) Sub(y uint64) *Expr {
	if e.err != nil {
		return e
	}
	var z uint256.Int
	if _, underflow := z.SubOverflow(&e.v, uint256.NewInt(y)); underflow {
		e.err = fmt.Errorf("%w: %s - %d", ErrOverflow, e.v.Dec(), y)
		return e
	}
	e.v = z
	return e
}

// Div performs integer division of the running value by y.
func (e *Expr) Div(y uint64) *Expr {
	if e.err != nil {
		return e
	}
	if y == 0 {
		e.err = ErrDivisionByZero
		return e
	}
	e.v.Div(&e.v, uint256.NewInt(y))
	return e
}

// Result returns the final value or the first error encountered.
func (e *Expr) Result() (uint64, error) {
	if e.err != nil {
		return 0, e.err
	}
	if !e.v.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrOverflow, e.v.Dec())
	}
	return e.v.Uint64(), nil
}

// Saturated returns the final value clamped to math.MaxUint64 and reports
// whether it was clamped.
func (e *Expr) Saturated() (uint64, bool, error) {
	if e.err != nil {
		return 0, false, e.err
	}
	if !e.v.IsUint64() {
		return math.MaxUint64, true, nil
	}
	return e.v.Uint64(), false, nil
}

// Add returns a + b.
func Add(a, b uint64) (uint64, error) {
	return From(a).Add(b).Result()
}

// Sub returns a - b.
func Sub(a, b uint64) (uint64, error) {
	return From(a).Sub(b).Result()
}

// Mul returns a * b.
func Mul(a, b uint64) (uint64, error) {
	return From(a).Mul(b).Result()
}

// AddInt64 returns a + b for signed timestamps and durations.
func AddInt64(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return a + b, nil
}
