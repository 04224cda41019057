package types

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// FixedAccuracy is the denominator of FixedU128: 18 decimals.
var FixedAccuracy = uint256.NewInt(1_000_000_000_000_000_000)

var errZeroDenominator = errors.New("zero denominator")

// FixedU128 is an unsigned fixed-point number with 18 decimals of precision,
// stored as its inner integer representation (value * 10^18).
type FixedU128 uint256.Int

// FixedFromInner wraps an already scaled inner value.
func FixedFromInner(inner Balance) FixedU128 {
	return FixedU128(inner)
}

// FixedFromInt returns the fixed-point representation of a whole number.
func FixedFromInt(v uint64) FixedU128 {
	var x uint256.Int
	x.Mul(uint256.NewInt(v), FixedAccuracy)
	return FixedU128(x)
}

// FixedFromRational returns n/d, rounded down.
func FixedFromRational(n, d uint64) (FixedU128, error) {
	if d == 0 {
		return FixedU128{}, errZeroDenominator
	}
	var x uint256.Int
	x.Mul(uint256.NewInt(n), FixedAccuracy)
	x.Div(&x, uint256.NewInt(d))
	if Balance(x).Gt(MaxBalance) {
		return FixedU128{}, fmt.Errorf("%w: %d/%d", ErrOverflow, n, d)
	}
	return FixedU128(x), nil
}

// MustFixedFromRational is FixedFromRational for constants and tests.
func MustFixedFromRational(n, d uint64) FixedU128 {
	out, err := FixedFromRational(n, d)
	if err != nil {
		panic(err)
	}
	return out
}

func (f FixedU128) Inner() Balance {
	return Balance(f)
}

func (f FixedU128) IsZero() bool {
	return (*uint256.Int)(&f).IsZero()
}

// MulInt returns v * f, rounded down.
func (f FixedU128) MulInt(v Balance) (Balance, error) {
	var out uint256.Int
	_, overflow := out.MulDivOverflow((*uint256.Int)(&v), (*uint256.Int)(&f), FixedAccuracy)
	if overflow || Balance(out).Gt(MaxBalance) {
		return ZeroBalance, fmt.Errorf("%w: %s * %s", ErrOverflow, v, f)
	}
	return Balance(out), nil
}

// DivInt returns v / f, rounded down.
func (f FixedU128) DivInt(v Balance) (Balance, error) {
	if f.IsZero() {
		return ZeroBalance, errZeroDenominator
	}
	var out uint256.Int
	_, overflow := out.MulDivOverflow((*uint256.Int)(&v), FixedAccuracy, (*uint256.Int)(&f))
	if overflow || Balance(out).Gt(MaxBalance) {
		return ZeroBalance, fmt.Errorf("%w: %s / %s", ErrOverflow, v, f)
	}
	return Balance(out), nil
}

// String prints the value as a decimal fraction, e.g. "0.013333333333333333".
func (f FixedU128) String() string {
	var whole, frac uint256.Int
	whole.DivMod((*uint256.Int)(&f), FixedAccuracy, &frac)
	return fmt.Sprintf("%s.%018d", whole.Dec(), frac.Uint64())
}

// MarshalText encodes the inner representation as a decimal number.
func (f FixedU128) MarshalText() ([]byte, error) {
	return Balance(f).MarshalText()
}

func (f *FixedU128) UnmarshalText(data []byte) error {
	return (*Balance)(f).UnmarshalText(data)
}
